// Package metrics exposes the engine's Prometheus instrumentation.
package metrics
