package audit

import (
	"context"
	"fmt"
	"time"
)

// EventType classifies an audit record.
type EventType string

const (
	// EventDecision is an evaluation outcome.
	EventDecision EventType = "decision"

	// EventExecution is a confirmed downstream execution.
	EventExecution EventType = "execution"

	// EventEmergency is an interlock activation or deactivation.
	EventEmergency EventType = "emergency"

	// EventWhitelist is a whitelist add or remove.
	EventWhitelist EventType = "whitelist"

	// EventQuotaReset is an admin quota reset.
	EventQuotaReset EventType = "quota_reset"
)

// Record is a single audit trail entry. Records are immutable once stored.
type Record struct {
	// ID is the unique record identifier.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// EventType classifies the event.
	EventType EventType `json:"event_type"`

	// Kind is the action kind involved, when applicable.
	Kind string `json:"kind,omitempty"`

	// TargetID is the entity the event concerned, when applicable.
	TargetID string `json:"target_id,omitempty"`

	// Allowed is the decision outcome. Decision events only.
	Allowed bool `json:"allowed"`

	// ReasonCode is the decision reason code. Decision events only.
	ReasonCode string `json:"reason_code,omitempty"`

	// Details is the human-readable explanation.
	Details string `json:"details,omitempty"`

	// Actor identifies who or what caused the event (an operator name, an
	// automated trigger, or empty for engine-originated events).
	Actor string `json:"actor,omitempty"`
}

// Store persists audit records.
type Store interface {
	// Store persists one record.
	Store(ctx context.Context, record *Record) error

	// ListRecent returns up to limit records, newest first, optionally
	// filtered by event type (empty matches all).
	ListRecent(ctx context.Context, eventType EventType, limit int) ([]*Record, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// PruneBefore deletes records older than cutoff and returns the number
	// deleted.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}

// StorageError wraps a store failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
