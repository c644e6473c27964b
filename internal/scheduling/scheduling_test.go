package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchless/watchless/internal/actions"
	"github.com/watchless/watchless/pkg/metrics"
	"github.com/watchless/watchless/pkg/session"
	"github.com/watchless/watchless/pkg/types"
)

// fakeNotifier records delivered summaries.
type fakeNotifier struct {
	mutex   sync.Mutex
	reports []types.Report
	closed  bool
}

func (f *fakeNotifier) SendSummary(report types.Report) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.reports = append(f.reports, report)
}

func (f *fakeNotifier) Close() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.closed = true
}

func (f *fakeNotifier) delivered() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return len(f.reports)
}

func newTestMetrics(t *testing.T) (*metrics.Metrics, *prometheus.Registry) {
	t.Helper()

	registry := prometheus.NewRegistry()

	m, err := metrics.NewWithRegistry(registry)
	require.NoError(t, err)

	return m, registry
}

func metricValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() == name {
			metric := family.GetMetric()[0]

			return metric.GetGauge().GetValue() + metric.GetCounter().GetValue()
		}
	}

	return 0
}

func staticTrigger(report types.Report, err error) TriggerFunc {
	return func(_ context.Context) (types.Report, error) {
		return report, err
	}
}

func TestRunAndReportRegistersRunAndNotifies(t *testing.T) {
	m, registry := newTestMetrics(t)
	notifier := &fakeNotifier{}
	report := session.NewProgress().Report()

	runAndReport(t.Context(), staticTrigger(report, nil), notifier, m)

	assert.Equal(t, 1, notifier.delivered())
	assert.InDelta(t, 1, metricValue(t, registry, "watchless_runs_total"), 0)
}

func TestRunAndReportCountsDroppedRuns(t *testing.T) {
	m, registry := newTestMetrics(t)
	notifier := &fakeNotifier{}
	busy := fmt.Errorf("trigger rejected: %w", actions.ErrRunInProgress)

	runAndReport(t.Context(), staticTrigger(nil, busy), notifier, m)

	assert.Equal(t, 0, notifier.delivered())
	assert.InDelta(t, 1, metricValue(t, registry, "watchless_runs_dropped_total"), 0)
	assert.InDelta(t, 0, metricValue(t, registry, "watchless_runs_total"), 0)
}

func TestRunAndReportSwallowsRunFailures(t *testing.T) {
	m, registry := newTestMetrics(t)
	notifier := &fakeNotifier{}

	runAndReport(t.Context(), staticTrigger(nil, errors.New("engine unreachable")), notifier, m)

	assert.Equal(t, 0, notifier.delivered())
	assert.InDelta(t, 0, metricValue(t, registry, "watchless_runs_total"), 0)
}

func TestRunOnce(t *testing.T) {
	m, registry := newTestMetrics(t)
	notifier := &fakeNotifier{}
	report := session.NewProgress().Report()

	require.NoError(t, RunOnce(t.Context(), staticTrigger(report, nil), notifier, m))

	assert.Equal(t, 1, notifier.delivered())
	assert.True(t, notifier.closed)
	assert.InDelta(t, 1, metricValue(t, registry, "watchless_runs_total"), 0)
}

func TestRunOnceReturnsRunError(t *testing.T) {
	m, _ := newTestMetrics(t)
	notifier := &fakeNotifier{}

	err := RunOnce(t.Context(), staticTrigger(nil, errors.New("engine unreachable")), notifier, m)
	require.Error(t, err)
	assert.True(t, notifier.closed)
}

func TestRunOnScheduleRejectsInvalidSpec(t *testing.T) {
	m, _ := newTestMetrics(t)
	notifier := &fakeNotifier{}

	err := RunOnSchedule(t.Context(), "not a cron spec", staticTrigger(nil, nil), notifier, m, true)
	require.Error(t, err)
}

func TestRunOnScheduleStopsOnContextCancel(t *testing.T) {
	m, _ := newTestMetrics(t)
	notifier := &fakeNotifier{}

	ctx, cancel := context.WithCancel(t.Context())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := RunOnSchedule(ctx, "@every 1h", staticTrigger(nil, nil), notifier, m, true)
	require.NoError(t, err)
	assert.True(t, notifier.closed)
}

func TestWaitForRunningUpdateWithIdleLock(t *testing.T) {
	lock := make(chan bool, 1)
	lock <- true

	done := make(chan struct{})

	go func() {
		WaitForRunningUpdate(t.Context(), lock)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForRunningUpdate blocked on an idle lock")
	}
}

func TestWaitForRunningUpdateWaitsForRelease(t *testing.T) {
	// Empty channel simulates a run holding the token.
	lock := make(chan bool, 1)

	go func() {
		time.Sleep(50 * time.Millisecond)
		lock <- true
	}()

	start := time.Now()
	WaitForRunningUpdate(t.Context(), lock)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
