package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"adwatch-hq/sentinel/pkg/audit"
	"adwatch-hq/sentinel/pkg/config"
	"adwatch-hq/sentinel/pkg/policy/emergency"
	"adwatch-hq/sentinel/pkg/policy/engine"
	"adwatch-hq/sentinel/pkg/policy/quota"
	"adwatch-hq/sentinel/pkg/policy/ruleset"
	"adwatch-hq/sentinel/pkg/policy/whitelist"
	"adwatch-hq/sentinel/pkg/server"
	"adwatch-hq/sentinel/pkg/storage"
	"adwatch-hq/sentinel/pkg/telemetry/logging"
	"adwatch-hq/sentinel/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Sentinel API server",
	Long: `Start the Sentinel API server with the specified configuration.

The server exposes the evaluation endpoint, the execution confirmation
endpoint, and the admin surface for quota, whitelist, and emergency state.

Examples:
  # Start with built-in defaults
  sentinel run

  # Start with a custom config
  sentinel run --config /etc/sentinel/config.yaml

  # Override listen address
  sentinel run --listen 0.0.0.0:8080

  # Validate config without starting
  sentinel run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// State backend
	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "memory":
		backend = storage.NewMemoryBackend()
	default:
		backend, err = storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
			DBPath:      cfg.Storage.SQLite.Path,
			BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
	}
	defer backend.Close()

	logger.Info("state store initialized", "backend", cfg.Storage.Backend)

	// Rule provider
	var rules ruleset.Provider
	if cfg.Ruleset.Path != "" {
		fileProvider, err := ruleset.NewFileProvider(ruleset.FileProviderConfig{
			Path:             cfg.Ruleset.Path,
			DebounceInterval: cfg.Ruleset.DebounceInterval,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		if cfg.Ruleset.Watch {
			go func() {
				if err := fileProvider.Watch(ctx); err != nil && ctx.Err() == nil {
					logger.Error("rule watcher stopped", "error", err)
				}
			}()
		}
		rules = fileProvider
	} else {
		staticProvider, err := ruleset.NewStaticProvider(ruleset.Default())
		if err != nil {
			return err
		}
		rules = staticProvider
		logger.Info("using built-in default rules")
	}

	// Policy day boundary
	location := time.Local
	if cfg.Quota.Timezone != "" {
		location, err = time.LoadLocation(cfg.Quota.Timezone)
		if err != nil {
			return fmt.Errorf("invalid quota timezone: %w", err)
		}
	}

	// Metrics
	var collector *metrics.Collector
	var recorder engine.MetricsRecorder
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.Config{
			Enabled:   true,
			Namespace: cfg.Telemetry.Metrics.Namespace,
			Subsystem: cfg.Telemetry.Metrics.Subsystem,
		}, nil)
		recorder = collector
	}

	eng, err := engine.New(engine.Options{
		Rules:     rules,
		Quota:     quota.NewTracker(backend, quota.Config{Location: location}, logger),
		Whitelist: whitelist.NewGuard(backend, logger),
		Emergency: emergency.NewInterlock(backend, logger),
		Logger:    logger,
		Metrics:   recorder,
	})
	if err != nil {
		return err
	}

	// Audit trail
	var auditor *audit.Recorder
	var auditStore audit.Store
	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(&audit.SQLiteConfig{
			Path: cfg.Audit.SQLitePath,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		defer store.Close()
		auditStore = store

		auditor = audit.NewRecorder(store, &audit.Config{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		}, logger)
		defer auditor.Close()

		pruner := audit.NewPruner(store, audit.RetentionConfig{
			RetentionDays: cfg.Audit.Retention.Days,
			PruneSchedule: cfg.Audit.Retention.PruneSchedule,
		}, logger)
		scheduler := audit.NewScheduler(pruner, logger)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	opts := server.Options{
		Config:     cfg.Server,
		Engine:     eng,
		Auditor:    auditor,
		AuditStore: auditStore,
		Logger:     logger,
	}
	if collector != nil {
		opts.MetricsPath = cfg.Telemetry.Metrics.Path
		opts.MetricsHandler = collector.Handler()
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
