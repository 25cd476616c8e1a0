package storage

import (
	"context"
	"errors"
	"time"
)

// Backend defines the interface for policy state persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// QuotaUsage returns the per-kind counters for a policy date.
	// Dates without counters return an empty map, never an error.
	QuotaUsage(ctx context.Context, date string) (map[string]int64, error)

	// IncrementQuota atomically adds count to the counter for (date, kind),
	// refusing the increment if it would push the counter past max.
	// Returns the counter value after the increment. A refused increment
	// returns the unchanged value and ErrQuotaCapExceeded.
	// A negative max means no cap is enforced; a max of zero refuses
	// every increment.
	IncrementQuota(ctx context.Context, date string, kind string, count int64, max int64) (int64, error)

	// ResetQuota zeroes all counters for a policy date.
	// No-op if the date has no counters.
	ResetQuota(ctx context.Context, date string) error

	// ListWhitelist returns all whitelist entries.
	// Returns an empty slice if no entries exist.
	ListWhitelist(ctx context.Context) ([]*WhitelistEntry, error)

	// AddWhitelistEntry stores a new entry. Entries are unique by EntityID;
	// adding a duplicate returns ErrDuplicateEntry.
	AddWhitelistEntry(ctx context.Context, entry *WhitelistEntry) error

	// RemoveWhitelistEntry deletes the entry for an entity ID.
	// Returns true if an entry was removed.
	RemoveWhitelistEntry(ctx context.Context, entityID string) (bool, error)

	// EmergencyState returns the current emergency interlock state.
	// If no state has ever been written, an inactive state is returned.
	EmergencyState(ctx context.Context) (*EmergencyState, error)

	// SetEmergencyState replaces the emergency interlock state.
	// Last writer wins.
	SetEmergencyState(ctx context.Context, state *EmergencyState) error

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// WhitelistEntry is a protected entity that must never receive destructive
// actions. Entries are addressed by EntityID; EntityText is an optional
// fallback match key (matched case-insensitively).
type WhitelistEntry struct {
	// ID is the unique record identifier.
	ID string `json:"id"`

	// EntityID is the advertising entity identifier (e.g. keyword ID).
	EntityID string `json:"entity_id"`

	// EntityText is an optional human-readable match key (e.g. keyword text).
	EntityText string `json:"entity_text,omitempty"`

	// Reason records why the entity is protected.
	Reason string `json:"reason,omitempty"`

	// AddedAt is when the entry was created.
	AddedAt time.Time `json:"added_at"`
}

// EmergencyState is the global interlock singleton. While Active, every
// proposed action is vetoed unconditionally. The state has no expiry; it
// survives until explicitly deactivated.
type EmergencyState struct {
	// Active indicates whether the interlock is engaged.
	Active bool `json:"active"`

	// Reason records why the interlock was engaged.
	Reason string `json:"reason,omitempty"`

	// TriggeredBy identifies who or what engaged the interlock.
	TriggeredBy string `json:"triggered_by,omitempty"`

	// ActivatedAt is when the interlock was engaged.
	ActivatedAt time.Time `json:"activated_at,omitzero"`
}

// Error types for storage failures and constraint violations.
var (
	// ErrQuotaCapExceeded is returned when an increment would exceed the cap.
	ErrQuotaCapExceeded = errors.New("quota cap exceeded")

	// ErrDuplicateEntry is returned when a whitelist entity ID already exists.
	ErrDuplicateEntry = errors.New("duplicate whitelist entry")
)
