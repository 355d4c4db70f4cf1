// Package metrics exposes prometheus instrumentation for schema synchronization.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// Migration outcome labels
const (
	OutcomeSuccess             = "success"
	OutcomeFailed              = "failed"
	OutcomePendingConfirmation = "pending_confirmation"
	OutcomeLockContention      = "lock_contention"
)

// Collector holds the metric vectors on its own registry. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Changes           *prometheus.CounterVec
	Migrations        *prometheus.CounterVec
	MigrationDuration *prometheus.HistogramVec
	TablesGenerated   *prometheus.CounterVec
}

// New creates a Collector under the given namespace
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_changes_total",
			Help:      "Structural changes executed, by change type and status",
		}, []string{"change_type", "status"}),
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Migration runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		MigrationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_duration_seconds",
			Help:      "Duration of migration runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		TablesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_generated_total",
			Help:      "Tables created by full schema generation, by status",
		}, []string{"status"}),
	}

	reg.MustRegister(c.Changes, c.Migrations, c.MigrationDuration, c.TablesGenerated)
	return c
}

// Registry returns the private registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes the current values to path for the node exporter
// textfile collector. One-shot CLI runs use this instead of an HTTP endpoint.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// RecordChange counts one executed change
func (c *Collector) RecordChange(changeType, status string) {
	if c == nil {
		return
	}
	c.Changes.WithLabelValues(changeType, status).Inc()
}

// RecordMigration counts a migration run and observes its duration
func (c *Collector) RecordMigration(mode, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Migrations.WithLabelValues(mode, outcome).Inc()
	c.MigrationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordGeneration counts the tables a full generation created and failed
func (c *Collector) RecordGeneration(created, failed int) {
	if c == nil {
		return
	}
	c.TablesGenerated.WithLabelValues(StatusApplied).Add(float64(created))
	c.TablesGenerated.WithLabelValues(StatusFailed).Add(float64(failed))
}
