package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Provider supplies rule set snapshots to the engine. Current must return a
// snapshot that stays immutable for the duration of one evaluation.
type Provider interface {
	// Current returns the active rule set. An error means no valid rule set
	// is available, in which case the engine refuses all actions.
	Current() (*RuleSet, error)
}

// StaticProvider wraps a fixed rule set.
type StaticProvider struct {
	rs *RuleSet
}

// NewStaticProvider validates the rule set and wraps it.
func NewStaticProvider(rs *RuleSet) (*StaticProvider, error) {
	if rs == nil {
		return nil, fmt.Errorf("rule set cannot be nil")
	}
	if err := Validate(rs); err != nil {
		return nil, err
	}
	return &StaticProvider{rs: rs}, nil
}

// Current returns the wrapped rule set.
func (p *StaticProvider) Current() (*RuleSet, error) {
	return p.rs, nil
}

// FileProvider loads a rule set from a YAML file and optionally watches it
// for changes. Reloads are debounced to prevent reload storms while an
// editor writes the file.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current *RuleSet

	debounceInterval time.Duration
}

// FileProviderConfig contains configuration for the file provider.
type FileProviderConfig struct {
	// Path is the rule file to load.
	Path string

	// DebounceInterval is the time to wait before reloading after a change
	// (default: 200ms).
	DebounceInterval time.Duration
}

// NewFileProvider loads the rule file and returns the provider. The initial
// load must succeed; a broken rule file at startup is a hard error.
func NewFileProvider(cfg FileProviderConfig, logger *slog.Logger) (*FileProvider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("rule file path cannot be empty")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	rs, err := LoadFile(cfg.Path)
	if err != nil {
		return nil, err
	}

	return &FileProvider{
		path:             cfg.Path,
		logger:           logger.With("component", "ruleset.provider"),
		current:          rs,
		debounceInterval: cfg.DebounceInterval,
	}, nil
}

// Current returns the active rule set snapshot.
func (p *FileProvider) Current() (*RuleSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return nil, fmt.Errorf("no valid rule set loaded")
	}
	return p.current, nil
}

// Watch watches the rule file for changes and reloads it. A reload that
// fails validation keeps the previous snapshot active; the engine never
// runs without rules. Blocks until the context is cancelled.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files atomically
	// via rename, which drops a direct file watch.
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	p.logger.Info("watching rule file", "path", p.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(p.debounceInterval, p.reload)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("rule file watch error", "error", watchErr)
		}
	}
}

// reload loads the rule file and swaps the snapshot on success.
func (p *FileProvider) reload() {
	rs, err := LoadFile(p.path)
	if err != nil {
		p.logger.Error("rule reload failed, keeping previous rules",
			"path", p.path,
			"error", err,
		)
		return
	}

	p.mu.Lock()
	p.current = rs
	p.mu.Unlock()

	p.logger.Info("rule set reloaded",
		"path", p.path,
		"version", rs.Version,
		"allowed_kinds", len(rs.AllowedKinds),
		"forbidden_kinds", len(rs.ForbiddenKinds),
	)
}
