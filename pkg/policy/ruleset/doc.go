// Package ruleset defines the versioned policy rule schema for the
// decision engine.
//
// # Overview
//
// A RuleSet holds the static policy constants the engine evaluates against:
// allowed and forbidden action kinds, per-kind eligibility thresholds,
// bid-adjustment bounds, the minimum confidence score, and per-kind daily
// maxima. Rule sets are loaded from YAML, carry defaults for every field,
// and are validated before use.
//
// # Precedence
//
// Forbidden-kind membership always wins over allowed-kind membership. A kind
// listed in both sets (a configuration error) is treated as forbidden.
//
// # Providers
//
// The engine consumes rule sets through the Provider interface, which returns
// an immutable snapshot per evaluation. StaticProvider wraps a fixed rule set;
// FileProvider loads from a YAML file and can watch it for changes with a
// debounced fsnotify watcher, so rule tuning does not require a restart.
package ruleset
