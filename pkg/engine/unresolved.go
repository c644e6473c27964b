package engine

import (
	"strings"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"

	"github.com/watchless/watchless/pkg/types"
)

// unresolvedContainer stands in for a listed container whose inspection
// failed. It carries the identity known from the list summary and the
// inspection error, so the run can report the container instead of aborting.
type unresolvedContainer struct {
	id      types.ContainerID
	name    string
	image   string
	imageID types.ImageID
	err     error
}

func newUnresolvedContainer(
	summary dockerContainerType.Summary,
	err error,
) *unresolvedContainer {
	var name string
	if len(summary.Names) > 0 {
		name = strings.TrimPrefix(summary.Names[0], "/")
	}

	return &unresolvedContainer{
		id:      types.ContainerID(summary.ID),
		name:    name,
		image:   summary.Image,
		imageID: types.ImageID(summary.ImageID),
		err:     err,
	}
}

// ID returns the engine identifier of the container.
func (c *unresolvedContainer) ID() types.ContainerID { return c.id }

// Name returns the container name from the list summary.
func (c *unresolvedContainer) Name() string { return c.name }

// ImageName returns the image reference from the list summary.
func (c *unresolvedContainer) ImageName() string { return c.image }

// ImageID returns the backing image's identifier from the list summary.
func (c *unresolvedContainer) ImageID() types.ImageID { return c.imageID }

// LocalDigest returns an empty digest; without inspection data none is known.
func (c *unresolvedContainer) LocalDigest() string { return "" }

// IsRunning reports true; the container was running when listed.
func (c *unresolvedContainer) IsRunning() bool { return true }

// ContainerInfo returns nil; inspection failed.
func (c *unresolvedContainer) ContainerInfo() *dockerContainerType.InspectResponse { return nil }

// ImageInfo returns nil; inspection failed.
func (c *unresolvedContainer) ImageInfo() *dockerImageType.InspectResponse { return nil }

// InspectError returns why the container could not be inspected.
func (c *unresolvedContainer) InspectError() error { return c.err }
