package session

import (
	"time"

	"github.com/watchless/watchless/pkg/types"
)

// Progress accumulates container statuses in discovery order during a run.
type Progress struct {
	statuses []*ContainerStatus
	started  time.Time
}

// NewProgress starts tracking a run beginning now.
func NewProgress() *Progress {
	return &Progress{started: time.Now()}
}

// Add appends a container's status, preserving discovery order.
func (p *Progress) Add(status *ContainerStatus) {
	p.statuses = append(p.statuses, status)
}

// Statuses returns the tracked statuses in discovery order.
func (p *Progress) Statuses() []*ContainerStatus {
	return p.statuses
}

// Report seals the progress into the run summary.
//
// Returns:
//   - types.Report: Summary with discovery-ordered results and timestamps.
func (p *Progress) Report() types.Report {
	return &report{
		statuses: p.statuses,
		started:  p.started,
		finished: time.Now(),
	}
}

// report implements types.Report over the run's statuses.
type report struct {
	statuses []*ContainerStatus
	started  time.Time
	finished time.Time
}

// Results returns every result in discovery order.
func (r *report) Results() []types.ContainerReport {
	out := make([]types.ContainerReport, 0, len(r.statuses))
	for _, status := range r.statuses {
		out = append(out, status)
	}

	return out
}

// Updated returns containers recreated on a newer image.
func (r *report) Updated() []types.ContainerReport { return r.withOutcome(OutcomeUpdated) }

// Fresh returns containers already running the registry's digest.
func (r *report) Fresh() []types.ContainerReport { return r.withOutcome(OutcomeUpToDate) }

// Stale returns containers with an unapplied update available.
func (r *report) Stale() []types.ContainerReport { return r.withOutcome(OutcomeUpdateAvailable) }

// Excluded returns containers filtered out before checking.
func (r *report) Excluded() []types.ContainerReport { return r.withOutcome(OutcomeSkippedExcluded) }

// Skipped returns containers that could not be checked.
func (r *report) Skipped() []types.ContainerReport { return r.withOutcome(OutcomeSkipped) }

// Failed returns containers whose update attempt failed.
func (r *report) Failed() []types.ContainerReport { return r.withOutcome(OutcomeFailed) }

// Started returns the run start timestamp.
func (r *report) Started() time.Time { return r.started }

// Finished returns the run end timestamp.
func (r *report) Finished() time.Time { return r.finished }

// withOutcome filters results by outcome, preserving discovery order.
func (r *report) withOutcome(outcome Outcome) []types.ContainerReport {
	var out []types.ContainerReport

	for _, status := range r.statuses {
		if status.outcome == outcome {
			out = append(out, status)
		}
	}

	return out
}
