package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
//
// MemoryBackend is thread-safe and supports concurrent access using sync.RWMutex.
type MemoryBackend struct {
	// quotas maps policy date (YYYY-MM-DD) to per-kind counters.
	quotas map[string]map[string]int64

	// whitelist maps entity ID to its entry.
	whitelist map[string]*WhitelistEntry

	// emergency is the interlock singleton. Nil means never written.
	emergency *EmergencyState

	// mu protects all state maps.
	mu sync.RWMutex
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		quotas:    make(map[string]map[string]int64),
		whitelist: make(map[string]*WhitelistEntry),
	}
}

// QuotaUsage returns the per-kind counters for a policy date.
func (m *MemoryBackend) QuotaUsage(ctx context.Context, date string) (map[string]int64, error) {
	if date == "" {
		return nil, fmt.Errorf("date cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	usage := make(map[string]int64, len(m.quotas[date]))
	for kind, used := range m.quotas[date] {
		usage[kind] = used
	}
	return usage, nil
}

// IncrementQuota atomically adds count to the counter for (date, kind),
// refusing the increment if it would push the counter past max.
func (m *MemoryBackend) IncrementQuota(ctx context.Context, date string, kind string, count int64, max int64) (int64, error) {
	if date == "" {
		return 0, fmt.Errorf("date cannot be empty")
	}
	if kind == "" {
		return 0, fmt.Errorf("kind cannot be empty")
	}
	if count <= 0 {
		return 0, fmt.Errorf("count must be positive, got %d", count)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	counters, exists := m.quotas[date]
	if !exists {
		counters = make(map[string]int64)
		m.quotas[date] = counters
	}

	used := counters[kind]
	if max >= 0 && used+count > max {
		return used, ErrQuotaCapExceeded
	}

	counters[kind] = used + count
	return counters[kind], nil
}

// ResetQuota zeroes all counters for a policy date.
func (m *MemoryBackend) ResetQuota(ctx context.Context, date string) error {
	if date == "" {
		return fmt.Errorf("date cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.quotas, date)
	return nil
}

// ListWhitelist returns all whitelist entries.
func (m *MemoryBackend) ListWhitelist(ctx context.Context) ([]*WhitelistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*WhitelistEntry, 0, len(m.whitelist))
	for _, entry := range m.whitelist {
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries, nil
}

// AddWhitelistEntry stores a new entry, enforcing EntityID uniqueness.
func (m *MemoryBackend) AddWhitelistEntry(ctx context.Context, entry *WhitelistEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.EntityID == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.whitelist[entry.EntityID]; exists {
		return fmt.Errorf("entity %q: %w", entry.EntityID, ErrDuplicateEntry)
	}

	copied := *entry
	m.whitelist[entry.EntityID] = &copied
	return nil
}

// RemoveWhitelistEntry deletes the entry for an entity ID.
func (m *MemoryBackend) RemoveWhitelistEntry(ctx context.Context, entityID string) (bool, error) {
	if entityID == "" {
		return false, fmt.Errorf("entity ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.whitelist[entityID]
	delete(m.whitelist, entityID)
	return exists, nil
}

// EmergencyState returns the current interlock state.
func (m *MemoryBackend) EmergencyState(ctx context.Context) (*EmergencyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.emergency == nil {
		return &EmergencyState{Active: false}, nil
	}

	copied := *m.emergency
	return &copied, nil
}

// SetEmergencyState replaces the interlock state. Last writer wins.
func (m *MemoryBackend) SetEmergencyState(ctx context.Context, state *EmergencyState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	m.emergency = &copied
	return nil
}

// Close releases any resources held by the backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the number of dates with quota counters.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quotas)
}
