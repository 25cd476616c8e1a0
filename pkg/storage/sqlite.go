package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// This backend provides durable storage and is suitable for single-instance
// deployments where quota counters, whitelist entries and emergency state
// must survive restarts.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent read
// performance and a single-writer connection pool, which SQLite requires.
type SQLiteBackend struct {
	db     *sql.DB
	dbPath string

	// preparedStatements contains pre-compiled SQL statements for the hot paths.
	usageStmt    *sql.Stmt
	selectStmt   *sql.Stmt
	upsertStmt   *sql.Stmt
	resetStmt    *sql.Stmt
	listWLStmt   *sql.Stmt
	addWLStmt    *sql.Stmt
	removeWLStmt *sql.Stmt
	getEmergStmt *sql.Stmt
	setEmergStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a new SQLite storage backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath:      dbPath,
		BusyTimeout: 5 * time.Second,
	})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	// Open database with WAL mode and busy timeout
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:     db,
		dbPath: cfg.DBPath,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quota_counters (
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, kind)
	);

	CREATE TABLE IF NOT EXISTS whitelist_entries (
		entity_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		entity_text TEXT,
		reason TEXT,
		added_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS emergency_state (
		singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
		active INTEGER NOT NULL,
		reason TEXT,
		triggered_by TEXT,
		activated_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_quota_date ON quota_counters(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.usageStmt, err = s.db.Prepare(`
		SELECT kind, used FROM quota_counters WHERE date = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare usage statement: %w", err)
	}

	s.selectStmt, err = s.db.Prepare(`
		SELECT used FROM quota_counters WHERE date = ? AND kind = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare select statement: %w", err)
	}

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO quota_counters (date, kind, used) VALUES (?, ?, ?)
		ON CONFLICT (date, kind) DO UPDATE SET used = excluded.used
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	s.resetStmt, err = s.db.Prepare(`
		DELETE FROM quota_counters WHERE date = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare reset statement: %w", err)
	}

	s.listWLStmt, err = s.db.Prepare(`
		SELECT entity_id, id, entity_text, reason, added_at
		FROM whitelist_entries ORDER BY added_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare whitelist list statement: %w", err)
	}

	s.addWLStmt, err = s.db.Prepare(`
		INSERT INTO whitelist_entries (entity_id, id, entity_text, reason, added_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare whitelist add statement: %w", err)
	}

	s.removeWLStmt, err = s.db.Prepare(`
		DELETE FROM whitelist_entries WHERE entity_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare whitelist remove statement: %w", err)
	}

	s.getEmergStmt, err = s.db.Prepare(`
		SELECT active, reason, triggered_by, activated_at FROM emergency_state WHERE singleton = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare emergency get statement: %w", err)
	}

	s.setEmergStmt, err = s.db.Prepare(`
		INSERT INTO emergency_state (singleton, active, reason, triggered_by, activated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET
			active = excluded.active,
			reason = excluded.reason,
			triggered_by = excluded.triggered_by,
			activated_at = excluded.activated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare emergency set statement: %w", err)
	}

	return nil
}

// QuotaUsage returns the per-kind counters for a policy date.
func (s *SQLiteBackend) QuotaUsage(ctx context.Context, date string) (map[string]int64, error) {
	if date == "" {
		return nil, fmt.Errorf("date cannot be empty")
	}

	rows, err := s.usageStmt.QueryContext(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query quota usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int64)
	for rows.Next() {
		var kind string
		var used int64
		if err := rows.Scan(&kind, &used); err != nil {
			return nil, fmt.Errorf("failed to scan quota row: %w", err)
		}
		usage[kind] = used
	}

	return usage, rows.Err()
}

// IncrementQuota atomically adds count to the counter for (date, kind).
// The read and write run inside one transaction; combined with the
// single-writer connection pool this makes the increment indivisible.
func (s *SQLiteBackend) IncrementQuota(ctx context.Context, date string, kind string, count int64, max int64) (int64, error) {
	if date == "" {
		return 0, fmt.Errorf("date cannot be empty")
	}
	if kind == "" {
		return 0, fmt.Errorf("kind cannot be empty")
	}
	if count <= 0 {
		return 0, fmt.Errorf("count must be positive, got %d", count)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var used int64
	err = tx.StmtContext(ctx, s.selectStmt).QueryRowContext(ctx, date, kind).Scan(&used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read quota counter: %w", err)
	}

	if max >= 0 && used+count > max {
		return used, ErrQuotaCapExceeded
	}

	newUsed := used + count
	if _, err := tx.StmtContext(ctx, s.upsertStmt).ExecContext(ctx, date, kind, newUsed); err != nil {
		return used, fmt.Errorf("failed to write quota counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return used, fmt.Errorf("failed to commit quota increment: %w", err)
	}

	return newUsed, nil
}

// ResetQuota zeroes all counters for a policy date.
func (s *SQLiteBackend) ResetQuota(ctx context.Context, date string) error {
	if date == "" {
		return fmt.Errorf("date cannot be empty")
	}

	if _, err := s.resetStmt.ExecContext(ctx, date); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}

// ListWhitelist returns all whitelist entries.
func (s *SQLiteBackend) ListWhitelist(ctx context.Context) ([]*WhitelistEntry, error) {
	rows, err := s.listWLStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query whitelist: %w", err)
	}
	defer rows.Close()

	entries := make([]*WhitelistEntry, 0)
	for rows.Next() {
		var entry WhitelistEntry
		var entityText, reason sql.NullString
		var addedAt int64
		if err := rows.Scan(&entry.EntityID, &entry.ID, &entityText, &reason, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist row: %w", err)
		}
		entry.EntityText = entityText.String
		entry.Reason = reason.String
		entry.AddedAt = time.Unix(addedAt, 0).UTC()
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// AddWhitelistEntry stores a new entry, enforcing EntityID uniqueness.
func (s *SQLiteBackend) AddWhitelistEntry(ctx context.Context, entry *WhitelistEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.EntityID == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	_, err := s.addWLStmt.ExecContext(ctx,
		entry.EntityID, entry.ID, entry.EntityText, entry.Reason, entry.AddedAt.Unix())
	if err != nil {
		// Primary key violation means the entity is already protected
		if isUniqueViolation(err) {
			return fmt.Errorf("entity %q: %w", entry.EntityID, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to add whitelist entry: %w", err)
	}
	return nil
}

// RemoveWhitelistEntry deletes the entry for an entity ID.
func (s *SQLiteBackend) RemoveWhitelistEntry(ctx context.Context, entityID string) (bool, error) {
	if entityID == "" {
		return false, fmt.Errorf("entity ID cannot be empty")
	}

	result, err := s.removeWLStmt.ExecContext(ctx, entityID)
	if err != nil {
		return false, fmt.Errorf("failed to remove whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// EmergencyState returns the current interlock state.
func (s *SQLiteBackend) EmergencyState(ctx context.Context) (*EmergencyState, error) {
	var state EmergencyState
	var active int
	var reason, triggeredBy sql.NullString
	var activatedAt sql.NullInt64

	err := s.getEmergStmt.QueryRowContext(ctx).Scan(&active, &reason, &triggeredBy, &activatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &EmergencyState{Active: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read emergency state: %w", err)
	}

	state.Active = active != 0
	state.Reason = reason.String
	state.TriggeredBy = triggeredBy.String
	if activatedAt.Valid {
		state.ActivatedAt = time.Unix(activatedAt.Int64, 0).UTC()
	}
	return &state, nil
}

// SetEmergencyState replaces the interlock state. Last writer wins.
func (s *SQLiteBackend) SetEmergencyState(ctx context.Context, state *EmergencyState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	active := 0
	if state.Active {
		active = 1
	}

	var activatedAt interface{}
	if !state.ActivatedAt.IsZero() {
		activatedAt = state.ActivatedAt.Unix()
	}

	_, err := s.setEmergStmt.ExecContext(ctx, active, state.Reason, state.TriggeredBy, activatedAt)
	if err != nil {
		return fmt.Errorf("failed to write emergency state: %w", err)
	}
	return nil
}

// Close releases any resources held by the backend.
func (s *SQLiteBackend) Close() error {
	stmts := []*sql.Stmt{
		s.usageStmt, s.selectStmt, s.upsertStmt, s.resetStmt,
		s.listWLStmt, s.addWLStmt, s.removeWLStmt,
		s.getEmergStmt, s.setEmergStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite reports constraint violations in the error text;
	// SQLITE_CONSTRAINT_PRIMARYKEY and _UNIQUE both mention "constraint failed".
	return strings.Contains(err.Error(), "constraint failed")
}
