package types

import (
	"context"
)

// Client abstracts the container engine operations Watchless consumes.
//
// Every method carries a context; implementations apply the per-call timeout
// from the run configuration. The interface is the mutation boundary of the
// system: all engine state changes go through it, serially within a run.
type Client interface {
	// ListContainers returns the running containers on the host in engine
	// discovery order, each fully inspected. A failure here means the engine
	// itself is unreachable and is fatal to the run.
	ListContainers(ctx context.Context) ([]Container, error)

	// CaptureSnapshot derives a ConfigSnapshot from the container's
	// inspection data captured at discovery. It performs no engine calls.
	CaptureSnapshot(container Container) (*ConfigSnapshot, error)

	// ReplaceContainer drives the full recreation sequence for one container:
	// pull new image, stop, remove, create from snapshot, reconnect networks,
	// start. It returns the new container's ID on success. On failure after
	// the old container is removed it attempts one rollback from the
	// snapshot's original image before returning the error.
	ReplaceContainer(
		ctx context.Context,
		container Container,
		snapshot *ConfigSnapshot,
	) (ContainerID, error)

	// ImageReferenced reports whether any existing container still uses the
	// given image.
	ImageReferenced(ctx context.Context, imageID ImageID) (bool, error)

	// RemoveImage deletes an image from the engine by ID.
	RemoveImage(ctx context.Context, imageID ImageID, imageName string) error

	// APIVersion returns the negotiated engine API version.
	APIVersion() string
}
