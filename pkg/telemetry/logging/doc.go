// Package logging configures the process-wide structured logger.
//
// All components log through log/slog; this package owns the one place
// where level, format, and destination are decided.
package logging
