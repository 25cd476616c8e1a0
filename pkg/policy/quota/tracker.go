package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adwatch-hq/sentinel/pkg/storage"
)

// ErrLimitReached is returned by Record when the increment would push a
// counter past its daily maximum.
var ErrLimitReached = errors.New("daily limit reached")

// KindUsage is the counter view for a single action kind.
type KindUsage struct {
	// Used is the number of confirmed executions today.
	Used int64 `json:"used"`

	// Max is the configured daily maximum.
	Max int64 `json:"max"`

	// Remaining is Max - Used, floored at zero.
	Remaining int64 `json:"remaining"`
}

// Snapshot is the counter state for one policy date, taken at a point in
// time. Snapshots attached to decisions are advisory; the capped increment
// in Record is authoritative.
type Snapshot struct {
	// Date is the policy date (YYYY-MM-DD).
	Date string `json:"date"`

	// Kinds maps action kind to its usage.
	Kinds map[string]KindUsage `json:"kinds"`
}

// Tracker maintains the per-date counters over a storage backend.
//
// Tracker never caches counter values: every read goes to the backend so
// that multiple processes sharing a durable backend agree on usage.
type Tracker struct {
	backend storage.Backend
	logger  *slog.Logger

	// location determines the policy date boundary.
	location *time.Location

	// now is injectable for tests.
	now func() time.Time
}

// Config contains configuration for the tracker.
type Config struct {
	// Location determines when the policy day rolls over.
	// Default: time.Local.
	Location *time.Location

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewTracker creates a tracker over the given backend.
func NewTracker(backend storage.Backend, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		backend:  backend,
		logger:   logger.With("component", "quota.tracker"),
		location: cfg.Location,
		now:      cfg.Now,
	}
}

// Today returns the current policy date.
func (t *Tracker) Today() string {
	return t.now().In(t.location).Format("2006-01-02")
}

// Snapshot reads today's counters and joins them with the given maxima.
// Kinds present in maxima but without counters report zero usage.
func (t *Tracker) Snapshot(ctx context.Context, maxima map[string]int64) (*Snapshot, error) {
	date := t.Today()

	usage, err := t.backend.QuotaUsage(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota counters: %w", err)
	}

	snap := &Snapshot{
		Date:  date,
		Kinds: make(map[string]KindUsage, len(maxima)),
	}
	for kind, max := range maxima {
		used := usage[kind]
		remaining := max - used
		if remaining < 0 {
			remaining = 0
		}
		snap.Kinds[kind] = KindUsage{Used: used, Max: max, Remaining: remaining}
	}
	return snap, nil
}

// Remaining returns the remaining capacity for a kind today.
func (t *Tracker) Remaining(ctx context.Context, kind string, max int64) (int64, error) {
	usage, err := t.backend.QuotaUsage(ctx, t.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counters: %w", err)
	}

	remaining := max - usage[kind]
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Record increments the counter for a kind after a confirmed execution.
// The increment is atomic and capped at max; ErrLimitReached is returned
// when the cap would be exceeded, leaving the counter unchanged. A negative
// max means the kind is uncapped; a zero max refuses every increment.
func (t *Tracker) Record(ctx context.Context, kind string, count int64, max int64) (int64, error) {
	if count <= 0 {
		count = 1
	}

	date := t.Today()
	used, err := t.backend.IncrementQuota(ctx, date, kind, count, max)
	if err != nil {
		if errors.Is(err, storage.ErrQuotaCapExceeded) {
			return used, fmt.Errorf("%s: %w", kind, ErrLimitReached)
		}
		return 0, fmt.Errorf("failed to increment quota: %w", err)
	}

	t.logger.Info("execution recorded",
		"kind", kind,
		"count", count,
		"date", date,
		"used", used,
		"max", max,
	)
	return used, nil
}

// Reset zeroes today's counters. Admin operation; the reason is logged.
func (t *Tracker) Reset(ctx context.Context, reason string) error {
	date := t.Today()
	if err := t.backend.ResetQuota(ctx, date); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}

	t.logger.Warn("quota counters reset",
		"date", date,
		"reason", reason,
	)
	return nil
}
