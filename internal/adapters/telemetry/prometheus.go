package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satishbabariya/dbdelta/internal/debug"
)

// PrometheusTelemetry collects metrics in a private registry and writes them to a node_exporter
// textfile on Flush.
type PrometheusTelemetry struct {
	registry *prometheus.Registry
	textfile string

	diffDuration      *prometheus.HistogramVec
	diffEntries       *prometheus.CounterVec
	migrationDuration prometheus.Histogram
	migrationsTotal   *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewPrometheusTelemetry creates a new Prometheus telemetry adapter.
func NewPrometheusTelemetry(config *Config) *PrometheusTelemetry {
	ns := config.Namespace
	if ns == "" {
		ns = "dbdelta"
	}
	p := &PrometheusTelemetry{
		registry: prometheus.NewRegistry(),
		textfile: config.Textfile,
		diffDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "diff_duration_seconds",
			Help:      "Duration of diff runs.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"dialect", "result"}),
		diffEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "diff_entries_total",
			Help:      "Change entries produced by diff runs.",
		}, []string{"status"}),
		migrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "migration_duration_seconds",
			Help:      "Duration of applied migrations.",
			Buckets:   prometheus.DefBuckets,
		}),
		migrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "migrations_total",
			Help:      "Migrations applied, by result.",
		}, []string{"result"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "errors_total",
			Help:      "Failed operations.",
		}, []string{"operation"}),
	}
	p.registry.MustRegister(p.diffDuration, p.diffEntries, p.migrationDuration, p.migrationsTotal, p.errorsTotal)
	return p
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordDiff records a diff run.
func (p *PrometheusTelemetry) RecordDiff(ctx context.Context, info DiffInfo) {
	p.diffDuration.WithLabelValues(info.Dialect, result(info.Success)).Observe(info.Duration.Seconds())
	for status, n := range info.Entries {
		p.diffEntries.WithLabelValues(status).Add(float64(n))
	}
}

// RecordMigration records one migration.
func (p *PrometheusTelemetry) RecordMigration(ctx context.Context, info MigrationInfo) {
	p.migrationsTotal.WithLabelValues(result(info.Success)).Inc()
	if info.Success {
		p.migrationDuration.Observe(info.Duration.Seconds())
	}
}

// RecordError records an error.
func (p *PrometheusTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	p.errorsTotal.WithLabelValues(info.Operation).Inc()
}

// Registry exposes the collectors, e.g. for tests.
func (p *PrometheusTelemetry) Registry() *prometheus.Registry {
	return p.registry
}

// Flush writes the registry to the configured textfile.
func (p *PrometheusTelemetry) Flush(ctx context.Context) error {
	if p.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(p.textfile, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", p.textfile, err)
	}
	debug.Debug("wrote metrics", "file", p.textfile)
	return nil
}

// Close flushes the adapter.
func (p *PrometheusTelemetry) Close(ctx context.Context) error {
	return p.Flush(ctx)
}

// Ensure PrometheusTelemetry implements Telemetry interface.
var _ Telemetry = (*PrometheusTelemetry)(nil)
