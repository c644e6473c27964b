package types

import "time"

// ContainerReport is the per-container entry of a run summary.
type ContainerReport interface {
	// ID returns the container's engine identifier.
	ID() ContainerID

	// Name returns the container name.
	Name() string

	// ImageName returns the image reference the container runs.
	ImageName() string

	// LocalDigest returns the digest the container was running, if known.
	LocalDigest() string

	// RemoteDigest returns the digest the registry advertised, or an empty
	// string if resolution did not happen or failed.
	RemoteDigest() string

	// Outcome returns the machine-readable outcome name (e.g., "updated",
	// "skipped_excluded").
	Outcome() string

	// Error returns the human-readable reason for a skipped or failed
	// outcome, or an empty string.
	Error() string

	// Warnings returns capture-time caveats surfaced to operators, such as
	// non-reproducible anonymous volumes.
	Warnings() []string
}

// Report is the summary of one orchestrator run, handed to the notification
// dispatcher at run end.
type Report interface {
	// Results returns every discovered container's result in discovery order.
	Results() []ContainerReport

	// Updated returns containers that were recreated on a newer image.
	Updated() []ContainerReport

	// Fresh returns containers already running the registry's digest.
	Fresh() []ContainerReport

	// Stale returns containers with an update available that was not applied.
	Stale() []ContainerReport

	// Excluded returns containers filtered out before any checking.
	Excluded() []ContainerReport

	// Skipped returns containers that could not be checked or prepared, with
	// a reason each.
	Skipped() []ContainerReport

	// Failed returns containers whose update attempt failed, with a reason.
	Failed() []ContainerReport

	// Started returns the run start timestamp.
	Started() time.Time

	// Finished returns the run end timestamp.
	Finished() time.Time
}

// Notifier fans a completed run summary out to the configured channels. A
// single channel's failure never affects the others or the run itself.
type Notifier interface {
	// SendSummary delivers the report to every configured channel.
	SendSummary(report Report)

	// Close releases channel resources during shutdown.
	Close()
}
