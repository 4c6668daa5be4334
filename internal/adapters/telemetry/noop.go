package telemetry

import (
	"context"
)

// NoopTelemetry is used when metrics are disabled.
type NoopTelemetry struct{}

// NewNoopTelemetry creates a new no-op telemetry adapter.
func NewNoopTelemetry() *NoopTelemetry {
	return &NoopTelemetry{}
}

func (n *NoopTelemetry) RecordDiff(ctx context.Context, info DiffInfo) {}

func (n *NoopTelemetry) RecordMigration(ctx context.Context, info MigrationInfo) {}

func (n *NoopTelemetry) RecordError(ctx context.Context, info ErrorInfo) {}

func (n *NoopTelemetry) Flush(ctx context.Context) error { return nil }

func (n *NoopTelemetry) Close(ctx context.Context) error { return nil }

// Ensure NoopTelemetry implements Telemetry interface.
var _ Telemetry = (*NoopTelemetry)(nil)
