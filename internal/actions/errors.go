package actions

import (
	"errors"
)

// ErrRunInProgress is returned when a run trigger arrives while another run
// is still executing and the on-busy policy drops it.
var ErrRunInProgress = errors.New("a run is already in progress")

// Errors for classification in classify.go.
var (
	// errNoLocalDigest indicates the engine records no repository digest for
	// the container's image, so no comparison is possible.
	errNoLocalDigest = errors.New("no local digest recorded for image")
)

// Errors for run execution in run.go.
var (
	// errListContainersFailed indicates the engine could not be queried; the
	// run is aborted.
	errListContainersFailed = errors.New("failed to list containers")
	// errRunCancelled indicates the run context was cancelled before the
	// container's update was attempted.
	errRunCancelled = errors.New("run cancelled before update was attempted")
)
