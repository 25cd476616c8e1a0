package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id          TEXT PRIMARY KEY,
	timestamp   DATETIME NOT NULL,
	event_type  TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	target_id   TEXT NOT NULL DEFAULT '',
	allowed     INTEGER NOT NULL DEFAULT 0,
	reason_code TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '',
	actor       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records (timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_records (event_type, timestamp);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite-backed audit store and initializes its
// schema.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return &StorageError{Op: "enable_wal", Err: err}
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return &StorageError{Op: "set_busy_timeout", Err: err}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return &StorageError{Op: "create_schema", Err: err}
	}
	return nil
}

// Store persists one record.
func (s *SQLiteStore) Store(ctx context.Context, record *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, timestamp, event_type, kind, target_id,
			allowed, reason_code, details, actor
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UTC(),
		string(record.EventType),
		record.Kind,
		record.TargetID,
		boolToInt(record.Allowed),
		record.ReasonCode,
		record.Details,
		record.Actor,
	)
	if err != nil {
		return &StorageError{Op: "store", Err: err}
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, eventType EventType, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, event_type, kind, target_id,
		       allowed, reason_code, details, actor
		FROM audit_records`
	args := []any{}
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, string(eventType))
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		var eventType string
		var allowed int
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &eventType, &r.Kind, &r.TargetID,
			&allowed, &r.ReasonCode, &r.Details, &r.Actor,
		); err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		r.EventType = EventType(eventType)
		r.Allowed = allowed != 0
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return records, nil
}

// Count returns the total number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return count, nil
}

// PruneBefore deletes records older than cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_records WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, &StorageError{Op: "prune", Err: err}
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "prune", Err: err}
	}
	return deleted, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
