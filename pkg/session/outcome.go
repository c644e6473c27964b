// Package session tracks the per-container results of one orchestrator run
// and assembles them into the run summary handed to notifications.
package session

// Outcome classifies what happened to one container during a run.
type Outcome int

// Outcome values, in increasing order of operator attention required.
const (
	// OutcomeUnknown is the zero value before classification.
	OutcomeUnknown Outcome = iota
	// OutcomeUpToDate means the local digest matches the registry.
	OutcomeUpToDate
	// OutcomeUpdated means the container was recreated on a newer image.
	OutcomeUpdated
	// OutcomeUpdateAvailable means a newer image exists but auto-update is
	// disabled, so the container was left untouched.
	OutcomeUpdateAvailable
	// OutcomeSkippedExcluded means the exclusion filter removed the container
	// before any checking.
	OutcomeSkippedExcluded
	// OutcomeSkipped means the container could not be checked or prepared
	// (unresolvable digest, vanished container); it was never mutated.
	OutcomeSkipped
	// OutcomeFailed means an update was attempted and failed.
	OutcomeFailed
)

// String returns the machine-readable outcome name used in reports and
// notifications.
func (o Outcome) String() string {
	switch o {
	case OutcomeUpToDate:
		return "up_to_date"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUpdateAvailable:
		return "update_available_not_applied"
	case OutcomeSkippedExcluded:
		return "skipped_excluded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}
