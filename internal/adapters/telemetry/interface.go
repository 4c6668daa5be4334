// Package telemetry provides telemetry adapter interfaces for diff and migration runs.
package telemetry

import (
	"context"
	"time"
)

// Telemetry defines the telemetry adapter interface.
type Telemetry interface {
	// RecordDiff records a finished diff run.
	RecordDiff(ctx context.Context, info DiffInfo)

	// RecordMigration records one applied (or failed) migration.
	RecordMigration(ctx context.Context, info MigrationInfo)

	// RecordError records an error.
	RecordError(ctx context.Context, info ErrorInfo)

	// Flush writes out collected metrics.
	Flush(ctx context.Context) error

	// Close closes the telemetry adapter.
	Close(ctx context.Context) error
}

// DiffInfo contains information about a diff run.
type DiffInfo struct {
	// Dialect is the dialect of the compared databases.
	Dialect string

	// Duration is how long the run took.
	Duration time.Duration

	// Success indicates if the run produced a change set.
	Success bool

	// Entries counts change entries by status.
	Entries map[string]int
}

// MigrationInfo contains information about one migration.
type MigrationInfo struct {
	Version  string
	Duration time.Duration
	Success  bool
}

// ErrorInfo contains information about an error.
type ErrorInfo struct {
	// Error is the error that occurred.
	Error error

	// Operation is the command that failed (diff, up, compact, ...).
	Operation string
}

// Config holds telemetry configuration.
type Config struct {
	// Type is the telemetry type (noop, prometheus).
	Type string

	// Namespace prefixes every metric name.
	Namespace string

	// Textfile is where Flush writes metrics in the text exposition format. Empty disables writing.
	Textfile string
}
