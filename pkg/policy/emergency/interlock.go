package emergency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adwatch-hq/sentinel/pkg/storage"
)

// Interlock is the global emergency stop over the storage-backed singleton
// state. All writes are last-writer-wins.
type Interlock struct {
	backend storage.Backend
	logger  *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewInterlock creates an interlock over the given backend.
func NewInterlock(backend storage.Backend, logger *slog.Logger) *Interlock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interlock{
		backend: backend,
		logger:  logger.With("component", "emergency.interlock"),
		now:     time.Now,
	}
}

// State returns the current interlock state.
func (i *Interlock) State(ctx context.Context) (*storage.EmergencyState, error) {
	state, err := i.backend.EmergencyState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read emergency state: %w", err)
	}
	return state, nil
}

// Activate engages the interlock. Callers that omit reason or trigger
// metadata get explicit placeholders so the audit trail is never blank.
func (i *Interlock) Activate(ctx context.Context, reason string, triggeredBy string) (*storage.EmergencyState, error) {
	if reason == "" {
		reason = "unspecified"
	}
	if triggeredBy == "" {
		triggeredBy = "MANUAL"
	}

	state := &storage.EmergencyState{
		Active:      true,
		Reason:      reason,
		TriggeredBy: triggeredBy,
		ActivatedAt: i.now().UTC(),
	}

	if err := i.backend.SetEmergencyState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to activate emergency stop: %w", err)
	}

	i.logger.Error("EMERGENCY STOP ACTIVATED",
		"reason", reason,
		"triggered_by", triggeredBy,
	)
	return state, nil
}

// Deactivate disengages the interlock and clears its metadata. Queued or
// previously blocked actions are not replayed; callers must resubmit.
func (i *Interlock) Deactivate(ctx context.Context, deactivatedBy string, reason string) (*storage.EmergencyState, error) {
	if deactivatedBy == "" {
		deactivatedBy = "MANUAL"
	}

	state := &storage.EmergencyState{Active: false}
	if err := i.backend.SetEmergencyState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to deactivate emergency stop: %w", err)
	}

	i.logger.Warn("emergency stop deactivated",
		"deactivated_by", deactivatedBy,
		"reason", reason,
	)
	return state, nil
}
