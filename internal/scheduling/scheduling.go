// Package scheduling drives periodic runs: it executes the runner on a cron
// schedule, forwards each run's summary to the notifier and the metrics
// registry, and shuts down gracefully on interrupt.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/internal/actions"
	"github.com/watchless/watchless/pkg/metrics"
	"github.com/watchless/watchless/pkg/types"
)

// runWaitTimeout bounds how long shutdown waits for an in-flight run.
const runWaitTimeout = 60 * time.Second

// TriggerFunc starts a run and returns its report.
type TriggerFunc func(ctx context.Context) (types.Report, error)

// WaitForRunningUpdate waits for any currently running update to complete
// before proceeding with shutdown.
//
// Parameters:
//   - ctx: Context for cancellation, allowing early shutdown.
//   - lock: Channel synchronizing scheduled runs.
func WaitForRunningUpdate(ctx context.Context, lock chan bool) {
	logrus.Debug("Checking lock status before shutdown")

	if len(lock) == 0 {
		select {
		case <-lock:
			logrus.Debug("Lock acquired, update finished")
		case <-time.After(runWaitTimeout):
			logrus.Warn("Timeout waiting for running update to finish, proceeding with shutdown")
		case <-ctx.Done():
			logrus.Warn("Context cancelled while waiting for running update")
		}
	} else {
		logrus.Debug("No update running, lock available")
	}
}

// runAndReport executes one run and forwards its outcome.
//
// A trigger rejected because a run is already in flight counts as a dropped
// run; the runner's on-busy policy decides whether a follow-up still happens.
func runAndReport(ctx context.Context, trigger TriggerFunc, notifier types.Notifier, m *metrics.Metrics) {
	report, err := trigger(ctx)
	if err != nil {
		if errors.Is(err, actions.ErrRunInProgress) {
			m.RegisterDroppedRun()
			logrus.Debug("Skipped scheduled run, another run already in progress")

			return
		}

		logrus.WithError(err).Error("Scheduled run failed")

		return
	}

	m.RegisterRun(report)
	notifier.SendSummary(report)
}

// RunOnSchedule executes runs according to the cron specification until the
// context is cancelled or an interrupt signal arrives.
//
// Parameters:
//   - ctx: Context controlling the scheduler's lifecycle.
//   - scheduleSpec: Cron-formatted schedule for periodic runs.
//   - trigger: Function starting a run.
//   - notifier: Destination for run summaries.
//   - m: Metrics registry recording run outcomes.
//   - noStartupMessage: Suppresses the startup log line when true.
//
// Returns:
//   - error: Non-nil if the cron specification is invalid.
func RunOnSchedule(
	ctx context.Context,
	scheduleSpec string,
	trigger TriggerFunc,
	notifier types.Notifier,
	m *metrics.Metrics,
	noStartupMessage bool,
) error {
	// Capacity one, token present when no scheduled run is executing.
	lock := make(chan bool, 1)
	lock <- true

	scheduler := cron.New()

	err := scheduler.AddFunc(scheduleSpec, func() {
		select {
		case v := <-lock:
			defer func() { lock <- v }()

			runAndReport(ctx, trigger, notifier, m)
		default:
			m.RegisterDroppedRun()
			logrus.Debug("Skipped scheduled run, previous scheduled run still executing")
		}

		nextRuns := scheduler.Entries()
		if len(nextRuns) > 0 {
			logrus.Debug("Scheduled next run: " + nextRuns[0].Next.String())
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule runs: %w", err)
	}

	if !noStartupMessage {
		firstRun := scheduler.Entries()[0].Schedule.Next(time.Now())
		logrus.WithFields(logrus.Fields{
			"schedule":  scheduleSpec,
			"first_run": firstRun.Format(time.RFC3339),
		}).Info("Starting Watchless scheduler")
	}

	scheduler.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logrus.Debug("Context cancelled, stopping scheduler")
	case <-interrupt:
		logrus.Debug("Received interrupt signal, stopping scheduler")
	}

	scheduler.Stop()
	signal.Stop(interrupt)

	WaitForRunningUpdate(ctx, lock)

	notifier.Close()

	return nil
}

// RunOnce performs a single run and delivers its summary.
//
// Returns:
//   - error: Non-nil if the run could not start or failed fatally.
func RunOnce(ctx context.Context, trigger TriggerFunc, notifier types.Notifier, m *metrics.Metrics) error {
	defer notifier.Close()

	report, err := trigger(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	m.RegisterRun(report)
	notifier.SendSummary(report)

	return nil
}
