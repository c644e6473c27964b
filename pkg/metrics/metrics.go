// Package metrics exposes run outcomes as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/watchless/watchless/pkg/types"
)

// Metrics tracks per-run outcome counts and run totals.
//
// Gauges reflect the most recent run; counters accumulate over the process
// lifetime.
type Metrics struct {
	scanned prometheus.Gauge
	updated prometheus.Gauge
	stale   prometheus.Gauge
	failed  prometheus.Gauge
	skipped prometheus.Gauge

	runsTotal        prometheus.Counter
	runsDroppedTotal prometheus.Counter
}

// NewWithRegistry creates a Metrics handler registered against the given
// Prometheus registerer.
//
// Parameters:
//   - registry: Registerer for the collectors.
//
// Returns:
//   - *Metrics: Registered handler.
//   - error: Non-nil on duplicate registration.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchless_containers_scanned",
			Help: "Number of containers examined during the last run",
		}),
		updated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchless_containers_updated",
			Help: "Number of containers updated during the last run",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchless_containers_stale",
			Help: "Number of containers with an update available but not applied during the last run",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchless_containers_failed",
			Help: "Number of containers whose update failed during the last run",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchless_containers_skipped",
			Help: "Number of containers that could not be checked during the last run",
		}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchless_runs_total",
			Help: "Number of completed runs since Watchless started",
		}),
		runsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchless_runs_dropped_total",
			Help: "Number of run triggers dropped because a run was already in progress",
		}),
	}

	collectors := []prometheus.Collector{
		m.scanned,
		m.updated,
		m.stale,
		m.failed,
		m.skipped,
		m.runsTotal,
		m.runsDroppedTotal,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// Default creates a Metrics handler on the default Prometheus registry,
// panicking on duplicate registration.
func Default() *Metrics {
	m, err := NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return m
}

// RegisterRun records a completed run's outcome counts.
//
// Parameters:
//   - report: The run summary.
func (m *Metrics) RegisterRun(report types.Report) {
	m.runsTotal.Inc()
	m.scanned.Set(float64(len(report.Results())))
	m.updated.Set(float64(len(report.Updated())))
	m.stale.Set(float64(len(report.Stale())))
	m.failed.Set(float64(len(report.Failed())))
	m.skipped.Set(float64(len(report.Skipped())))
}

// RegisterDroppedRun records a trigger dropped because a run was in flight.
func (m *Metrics) RegisterDroppedRun() {
	m.runsDroppedTotal.Inc()
}
