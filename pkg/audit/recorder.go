package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"adwatch-hq/sentinel/pkg/policy/engine"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables audit recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit records asynchronously so that evaluation requests
// never block on the audit store. A full buffer drops records with an error
// log rather than stalling the caller.
type Recorder struct {
	store      Store
	config     *Config
	recordChan chan *Record
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewRecorder creates a recorder over the given store and starts its
// background writer.
func NewRecorder(store Store, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:      store,
		config:     config,
		recordChan: make(chan *Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "audit.recorder"),
		now:        time.Now,
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// RecordDecision records an evaluation outcome. Returns immediately.
func (r *Recorder) RecordDecision(action *engine.Action, decision *engine.Decision) {
	kind, targetID := "", ""
	if action != nil {
		kind = string(action.Kind)
		targetID = action.TargetID
	}
	r.enqueue(&Record{
		EventType:  EventDecision,
		Kind:       kind,
		TargetID:   targetID,
		Allowed:    decision.Allowed,
		ReasonCode: string(decision.ReasonCode),
		Details:    decision.Details,
	})
}

// RecordExecution records a confirmed downstream execution.
func (r *Recorder) RecordExecution(kind string, count int64) {
	r.enqueue(&Record{
		EventType: EventExecution,
		Kind:      kind,
		Details:   fmt.Sprintf("%d execution(s) confirmed", count),
		Allowed:   true,
	})
}

// RecordEmergency records an interlock transition.
func (r *Recorder) RecordEmergency(active bool, reason string, actor string) {
	details := "emergency stop deactivated"
	if active {
		details = "emergency stop activated: " + reason
	}
	r.enqueue(&Record{
		EventType: EventEmergency,
		Details:   details,
		Actor:     actor,
	})
}

// RecordWhitelistChange records a whitelist add or remove.
func (r *Recorder) RecordWhitelistChange(entityID string, added bool, reason string) {
	details := "entity removed from whitelist"
	if added {
		details = "entity whitelisted: " + reason
	}
	r.enqueue(&Record{
		EventType: EventWhitelist,
		TargetID:  entityID,
		Details:   details,
	})
}

// RecordQuotaReset records an admin quota reset.
func (r *Recorder) RecordQuotaReset(reason string, actor string) {
	r.enqueue(&Record{
		EventType: EventQuotaReset,
		Details:   "quota counters reset: " + reason,
		Actor:     actor,
	})
}

func (r *Recorder) enqueue(record *Record) {
	if !r.config.Enabled {
		return
	}
	record.ID = uuid.New().String()
	record.Timestamp = r.now().UTC()

	select {
	case r.recordChan <- record:
	default:
		r.logger.Error("audit channel full, dropping record",
			"event_type", record.EventType,
			"channel_capacity", r.config.AsyncBuffer,
		)
	}
}

// Close shuts the recorder down, draining pending writes first.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)
		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"event_type", record.EventType,
			"error", err,
		)
	}
}
