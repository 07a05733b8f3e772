// Package logging assembles structured slog loggers and formatting helpers used
// across splicer.
//
// It owns the console and JSON handlers, level and output plumbing, the
// standard field names shared by every component, and helpers that enforce
// the warning shape (cause, impact, next step). A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
