package actions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/pkg/session"
	"github.com/watchless/watchless/pkg/types"
)

// Runner executes update runs: discovery, exclusion, classification, serial
// mutation, and image cleanup.
//
// At most one run executes at a time. Triggers arriving mid-run are dropped
// or queued according to the configured on-busy policy; queued triggers
// coalesce into a single follow-up run.
type Runner struct {
	client   types.Client
	resolver DigestResolver
	config   types.Config
	filter   types.Filter

	runMutex sync.Mutex
	running  atomic.Bool
	pending  atomic.Bool
}

// NewRunner creates a Runner over the given engine client and resolver.
//
// Parameters:
//   - client: Engine operations, the run's sole mutation path.
//   - resolver: Registry digest resolution.
//   - config: Validated run configuration.
//   - filter: Exclusion filter; excluded containers trigger no registry calls.
//
// Returns:
//   - *Runner: Runner ready for triggers.
func NewRunner(
	client types.Client,
	resolver DigestResolver,
	config types.Config,
	filter types.Filter,
) *Runner {
	return &Runner{
		client:   client,
		resolver: resolver,
		config:   config,
		filter:   filter,
	}
}

// Trigger starts a run unless one is already executing.
//
// A busy runner applies the on-busy policy: drop returns ErrRunInProgress
// immediately; queue marks at most one follow-up run and returns
// ErrRunInProgress for the trigger itself. The queued run executes on the
// in-flight trigger's goroutine after its run finishes, and its report goes
// to that caller.
//
// Parameters:
//   - ctx: Context bounding the run.
//
// Returns:
//   - types.Report: Summary of the executed run, nil when not executed.
//   - error: ErrRunInProgress when busy, or a fatal discovery error.
func (r *Runner) Trigger(ctx context.Context) (types.Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		if r.config.OnBusy == types.OnBusyQueue {
			if r.pending.CompareAndSwap(false, true) {
				logrus.Info("Run in progress, queued one follow-up run")
			} else {
				logrus.Debug("Run in progress and a follow-up is already queued, dropping trigger")
			}
		} else {
			logrus.Info("Run in progress, dropping trigger")
		}

		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	report, err := r.run(ctx)

	// Execute at most the coalesced follow-up that queued while we ran.
	for r.pending.CompareAndSwap(true, false) {
		if ctx.Err() != nil {
			break
		}

		logrus.Info("Executing queued follow-up run")

		report, err = r.run(ctx)
	}

	return report, err
}

// run executes one full update run.
func (r *Runner) run(ctx context.Context) (types.Report, error) {
	// Serializes follow-up runs against stragglers; Trigger already keeps
	// concurrent triggers out.
	r.runMutex.Lock()
	defer r.runMutex.Unlock()

	progress := session.NewProgress()

	containers, err := r.client.ListContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	logrus.WithField("count", len(containers)).Info("Starting run")

	// Exclusion happens before any registry traffic.
	var candidates []*target

	for _, container := range containers {
		status := session.NewContainerStatus(container)
		progress.Add(status)

		if r.filter != nil && !r.filter(container) {
			logrus.WithFields(logrus.Fields{
				"container": container.Name(),
				"image":     container.ImageName(),
			}).Debug("Excluded from checking")
			status.SetOutcome(session.OutcomeSkippedExcluded)

			continue
		}

		// A container that vanished or failed inspection during discovery is
		// reported as skipped; it was never mutated and cannot be checked.
		if source, ok := container.(interface{ InspectError() error }); ok {
			if inspectErr := source.InspectError(); inspectErr != nil {
				logrus.WithFields(logrus.Fields{
					"container": container.Name(),
					"image":     container.ImageName(),
				}).WithError(inspectErr).Info("Container could not be inspected, skipping")
				status.Skip(inspectErr)

				continue
			}
		}

		candidates = append(candidates, &target{container: container, status: status})
	}

	classify(ctx, r.resolver, candidates, r.config.Concurrency)

	if r.config.AutoUpdate {
		r.applyUpdates(ctx, candidates)
	}

	if r.config.Cleanup {
		r.cleanupImages(ctx, progress.Statuses())
	}

	report := progress.Report()

	logrus.WithFields(logrus.Fields{
		"scanned": len(report.Results()),
		"updated": len(report.Updated()),
		"failed":  len(report.Failed()),
	}).Info("Run finished")

	return report, nil
}

// applyUpdates recreates every update-available container, strictly
// sequentially in discovery order. A failure affects only its container;
// cancellation leaves the remaining containers unattempted but reported.
func (r *Runner) applyUpdates(ctx context.Context, candidates []*target) {
	for _, t := range candidates {
		if t.status.Result() != session.OutcomeUpdateAvailable {
			continue
		}

		if err := ctx.Err(); err != nil {
			logrus.WithField("container", t.container.Name()).
				Warn("Run cancelled, leaving container on its current image")
			t.status.Skip(fmt.Errorf("%w: %w", errRunCancelled, err))

			continue
		}

		r.updateContainer(ctx, t)
	}
}

// updateContainer snapshots and replaces a single container.
func (r *Runner) updateContainer(ctx context.Context, t *target) {
	clog := logrus.WithFields(logrus.Fields{
		"container": t.container.Name(),
		"image":     t.container.ImageName(),
	})

	snapshot, err := r.client.CaptureSnapshot(t.container)
	if err != nil {
		// Nothing was mutated; the container keeps running on its old image.
		clog.WithError(err).Error("Failed to capture config snapshot, skipping update")
		t.status.Skip(err)

		return
	}

	t.status.AddWarnings(snapshot.Warnings)

	for _, warning := range snapshot.Warnings {
		clog.Warn(warning)
	}

	newID, err := r.client.ReplaceContainer(ctx, t.container, snapshot)
	if err != nil {
		clog.WithError(err).Error("Failed to update container")
		t.status.Fail(err)

		return
	}

	clog.WithField("new_id", newID.ShortID()).Info("Updated container")
	t.status.MarkUpdated(newID)
}

// cleanupImages removes the images superseded by this run's updates, skipping
// any still referenced by a container on the host.
func (r *Runner) cleanupImages(ctx context.Context, statuses []*session.ContainerStatus) {
	removed := map[types.ImageID]struct{}{}

	for _, status := range statuses {
		if status.Result() != session.OutcomeUpdated {
			continue
		}

		imageID := status.OldImageID()
		if imageID == "" {
			continue
		}

		if _, done := removed[imageID]; done {
			continue
		}

		removed[imageID] = struct{}{}

		clog := logrus.WithFields(logrus.Fields{
			"image_id": imageID.ShortID(),
			"image":    status.ImageName(),
		})

		referenced, err := r.client.ImageReferenced(ctx, imageID)
		if err != nil {
			clog.WithError(err).Warn("Could not check image references, leaving image in place")

			continue
		}

		if referenced {
			clog.Debug("Superseded image still referenced, leaving it in place")

			continue
		}

		if err := r.client.RemoveImage(ctx, imageID, status.ImageName()); err != nil {
			clog.WithError(err).Warn("Failed to remove superseded image")
		}
	}
}
