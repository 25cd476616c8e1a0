package whitelist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"adwatch-hq/sentinel/pkg/storage"
)

// Guard looks up protected entities in the storage backend.
type Guard struct {
	backend storage.Backend
	logger  *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewGuard creates a guard over the given backend.
func NewGuard(backend storage.Backend, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		backend: backend,
		logger:  logger.With("component", "whitelist.guard"),
		now:     time.Now,
	}
}

// Match returns the protecting entry for an entity, or nil if the entity is
// not protected. Lookup matches by entity ID first, falling back to a
// case-insensitive comparison against the entry text when the caller
// supplies one.
func (g *Guard) Match(ctx context.Context, entityID string, entityText string) (*storage.WhitelistEntry, error) {
	entries, err := g.backend.ListWhitelist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}

	for _, entry := range entries {
		if entityID != "" && entry.EntityID == entityID {
			return entry, nil
		}
	}

	if entityText == "" {
		return nil, nil
	}
	lowered := strings.ToLower(strings.TrimSpace(entityText))
	for _, entry := range entries {
		if entry.EntityText != "" && strings.ToLower(strings.TrimSpace(entry.EntityText)) == lowered {
			return entry, nil
		}
	}

	return nil, nil
}

// Add protects an entity. The entry's ID and AddedAt are assigned here;
// entity IDs are unique and duplicates are rejected.
func (g *Guard) Add(ctx context.Context, entityID string, entityText string, reason string) (*storage.WhitelistEntry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity ID cannot be empty")
	}

	entry := &storage.WhitelistEntry{
		ID:         uuid.New().String(),
		EntityID:   entityID,
		EntityText: entityText,
		Reason:     reason,
		AddedAt:    g.now().UTC(),
	}

	if err := g.backend.AddWhitelistEntry(ctx, entry); err != nil {
		return nil, err
	}

	g.logger.Info("entity whitelisted",
		"entity_id", entityID,
		"reason", reason,
	)
	return entry, nil
}

// Remove withdraws protection from an entity. Returns true if an entry
// was removed.
func (g *Guard) Remove(ctx context.Context, entityID string) (bool, error) {
	if entityID == "" {
		return false, fmt.Errorf("entity ID cannot be empty")
	}

	removed, err := g.backend.RemoveWhitelistEntry(ctx, entityID)
	if err != nil {
		return false, fmt.Errorf("failed to remove whitelist entry: %w", err)
	}

	if removed {
		g.logger.Info("entity removed from whitelist", "entity_id", entityID)
	}
	return removed, nil
}

// List returns all whitelist entries.
func (g *Guard) List(ctx context.Context) ([]*storage.WhitelistEntry, error) {
	entries, err := g.backend.ListWhitelist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}
	return entries, nil
}
