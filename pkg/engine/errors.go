package engine

import (
	"errors"
)

// Errors for discovery operations in client.go.
var (
	// errListContainersFailed indicates a failure to list containers from the engine.
	errListContainersFailed = errors.New("failed to list containers")
	// errInspectContainerFailed indicates a failure to inspect a container's details.
	errInspectContainerFailed = errors.New("failed to inspect container")
)

// Errors for snapshot capture in snapshot.go.
var (
	// errNoContainerInfo indicates the container lacks inspection data required for capture.
	errNoContainerInfo = errors.New("no container info available")
	// errInvalidConfig indicates the container's configuration is incomplete for recreation.
	errInvalidConfig = errors.New("invalid container configuration")
)

// Errors for the recreation sequence in recreate.go.
var (
	// errPullImageFailed indicates a failure to pull the new image from the registry.
	errPullImageFailed = errors.New("failed to pull image")
	// errReadPullResponseFailed indicates a failure to read the pull response stream.
	errReadPullResponseFailed = errors.New("failed to read pull response")
	// errStopContainerFailed indicates a failure to stop the old container.
	errStopContainerFailed = errors.New("failed to stop container")
	// errRemoveContainerFailed indicates a failure to remove the old container.
	errRemoveContainerFailed = errors.New("failed to remove container")
	// errCreateContainerFailed indicates a failure to create the replacement container.
	errCreateContainerFailed = errors.New("failed to create container")
	// errConnectNetworkFailed indicates a failure to reconnect a secondary network.
	errConnectNetworkFailed = errors.New("failed to connect network")
	// errStartContainerFailed indicates a failure to start the replacement container.
	errStartContainerFailed = errors.New("failed to start container")
	// errRollbackFailed indicates the best-effort rollback also failed, leaving the
	// container absent from the host.
	errRollbackFailed = errors.New("rollback failed")
	// errHealthCheckTimeout indicates the replacement started but did not report
	// healthy within the configured window.
	errHealthCheckTimeout = errors.New("container did not become healthy within timeout")
)

// Errors for image cleanup in client.go.
var (
	// errRemoveImageFailed indicates a failure to remove a superseded image.
	errRemoveImageFailed = errors.New("failed to remove image")
)
