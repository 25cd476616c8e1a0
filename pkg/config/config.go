package config

import (
	"time"
)

// Config is the root configuration for the sentinel service.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Storage configures the engine state store (quota, whitelist,
	// emergency state).
	Storage StorageConfig `yaml:"storage"`

	// Ruleset configures where policy rules are loaded from.
	Ruleset RulesetConfig `yaml:"ruleset"`

	// Quota configures the daily counter behavior.
	Quota QuotaConfig `yaml:"quota"`

	// Audit configures the audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the API listens on.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the engine state backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains sqlite backend settings.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RulesetConfig controls policy rule loading.
type RulesetConfig struct {
	// Path is the rules YAML file. Empty uses the built-in defaults.
	Path string `yaml:"path"`

	// Watch reloads the rules file on change.
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces rapid file change events.
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// QuotaConfig controls daily counter behavior.
type QuotaConfig struct {
	// Timezone is the IANA zone that defines the policy day boundary.
	// Empty uses the process-local zone.
	Timezone string `yaml:"timezone"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	// Enabled turns audit recording on.
	Enabled bool `yaml:"enabled"`

	// SQLitePath is the audit database file path.
	SQLitePath string `yaml:"sqlite_path"`

	// AsyncBuffer is the async write channel size.
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each audit store write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Retention configures record pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls audit record pruning.
type RetentionConfig struct {
	// Days is how long audit records are kept. Zero disables pruning.
	Days int `yaml:"days"`

	// PruneSchedule is the cron expression for scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metric recording on.
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric name subsystem.
	Subsystem string `yaml:"subsystem"`
}
