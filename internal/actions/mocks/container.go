package mocks

import (
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/pkg/types"
)

// MockContainer is a minimal types.Container for orchestration tests.
type MockContainer struct {
	ContainerID  types.ContainerID
	Named        string
	Image        string
	ImageIdent   types.ImageID
	Digest       string
	PlatformInfo *ocispec.Platform

	// InspectFailure marks the container as uninspectable at discovery time.
	InspectFailure error
}

// CreateMockContainer builds a running mock container.
//
// Parameters:
//   - id: Container ID.
//   - name: Container name.
//   - image: Image reference.
//   - localDigest: Digest recorded in engine-local metadata, empty for none.
//
// Returns:
//   - *MockContainer: Mock container instance.
func CreateMockContainer(id, name, image, localDigest string) *MockContainer {
	return &MockContainer{
		ContainerID:  types.ContainerID(id),
		Named:        name,
		Image:        image,
		ImageIdent:   types.ImageID("sha256:image-" + name),
		Digest:       localDigest,
		PlatformInfo: &ocispec.Platform{OS: "linux", Architecture: "amd64"},
	}
}

// ID returns the container ID.
func (c *MockContainer) ID() types.ContainerID { return c.ContainerID }

// Name returns the container name.
func (c *MockContainer) Name() string { return c.Named }

// ImageName returns the image reference.
func (c *MockContainer) ImageName() string { return c.Image }

// ImageID returns the backing image ID.
func (c *MockContainer) ImageID() types.ImageID { return c.ImageIdent }

// LocalDigest returns the scripted local digest.
func (c *MockContainer) LocalDigest() string { return c.Digest }

// IsRunning always reports true.
func (c *MockContainer) IsRunning() bool { return true }

// ContainerInfo returns minimal inspection data.
func (c *MockContainer) ContainerInfo() *dockerContainerType.InspectResponse {
	return &dockerContainerType.InspectResponse{
		ContainerJSONBase: &dockerContainerType.ContainerJSONBase{
			ID:         string(c.ContainerID),
			Name:       "/" + c.Named,
			HostConfig: &dockerContainerType.HostConfig{},
		},
		Config: &dockerContainerType.Config{Image: c.Image},
	}
}

// ImageInfo returns minimal image inspection data.
func (c *MockContainer) ImageInfo() *dockerImageType.InspectResponse {
	return &dockerImageType.InspectResponse{ID: string(c.ImageIdent)}
}

// Platform returns the scripted platform.
func (c *MockContainer) Platform() *ocispec.Platform { return c.PlatformInfo }

// InspectError returns the scripted discovery-time inspection failure.
func (c *MockContainer) InspectError() error { return c.InspectFailure }
