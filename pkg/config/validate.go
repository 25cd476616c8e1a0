package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the configuration for internal consistency. All problems
// are collected and reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddress == "" {
		errs = append(errs, errors.New("server.listen_address cannot be empty"))
	}

	switch cfg.Storage.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be \"memory\" or \"sqlite\", got %q", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.SQLite.Path == "" {
		errs = append(errs, errors.New("storage.sqlite.path cannot be empty"))
	}

	if cfg.Ruleset.Watch && cfg.Ruleset.Path == "" {
		errs = append(errs, errors.New("ruleset.watch requires ruleset.path"))
	}

	if cfg.Quota.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("quota.timezone %q is not a valid IANA zone: %w", cfg.Quota.Timezone, err))
		}
	}

	if cfg.Audit.Enabled && cfg.Audit.SQLitePath == "" {
		errs = append(errs, errors.New("audit.sqlite_path cannot be empty when audit is enabled"))
	}
	if cfg.Audit.Retention.Days < 0 {
		errs = append(errs, errors.New("audit.retention.days cannot be negative"))
	}

	return errors.Join(errs...)
}
