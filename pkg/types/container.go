package types

import (
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
)

// Container is the read-only view of a discovered container used during a run.
//
// It wraps the engine inspection data captured at discovery time; all
// accessors derive from that capture and never trigger further engine calls.
type Container interface {
	// ID returns the engine identifier of the container.
	ID() ContainerID

	// Name returns the container name without the leading slash.
	Name() string

	// ImageName returns the image reference the container was created from,
	// normalized to include a tag (e.g., "nginx:latest").
	ImageName() string

	// ImageID returns the identifier of the image backing the container, or
	// an empty ID if image metadata is unavailable.
	ImageID() ImageID

	// LocalDigest returns the repository digest of the running image as
	// recorded in engine-local metadata, or an empty string if the engine has
	// no digest for it (e.g., locally built images).
	LocalDigest() string

	// IsRunning reports whether the container was running when inspected.
	IsRunning() bool

	// ContainerInfo exposes the raw inspection data for snapshot capture.
	ContainerInfo() *dockerContainerType.InspectResponse

	// ImageInfo exposes the raw image inspection data, or nil if unavailable.
	ImageInfo() *dockerImageType.InspectResponse
}
