package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerNetworkType "github.com/docker/docker/api/types/network"
)

func TestCaptureSnapshotIdentity(t *testing.T) {
	container := mockContainer(withImageName("app:1.2"))

	snapshot, err := CaptureSnapshot(container)
	require.NoError(t, err)

	assert.Equal(t, "app", snapshot.ContainerName)
	assert.Equal(t, "app:1.2", snapshot.ImageName)
	assert.Equal(t, container.ImageID(), snapshot.ImageID)
	assert.Equal(t, "app:1.2", snapshot.Config.Image)
	assert.False(t, snapshot.CapturedAt.IsZero())
}

func TestCaptureSnapshotRejectsIncompleteInspection(t *testing.T) {
	source := mockContainer()
	source.ContainerInfo().Config = nil

	_, err := CaptureSnapshot(source)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestCaptureSnapshotNetworkOrdering(t *testing.T) {
	container := mockContainer(withNetworks("backend", map[string]*dockerNetworkType.EndpointSettings{
		"frontend": {},
		"backend":  {},
		"admin":    {},
	}))

	snapshot, err := CaptureSnapshot(container)
	require.NoError(t, err)

	require.Len(t, snapshot.Networks, 3)
	// NetworkMode network first, remainder sorted.
	assert.Equal(t, "backend", snapshot.Networks[0].Name)
	assert.Equal(t, "admin", snapshot.Networks[1].Name)
	assert.Equal(t, "frontend", snapshot.Networks[2].Name)

	primary := snapshot.PrimaryNetwork()
	require.NotNil(t, primary)
	assert.Equal(t, "backend", primary.Name)
	assert.Len(t, snapshot.SecondaryNetworks(), 2)
}

func TestCaptureSnapshotFiltersEngineAlias(t *testing.T) {
	container := mockContainer(withNetworks("backend", map[string]*dockerNetworkType.EndpointSettings{
		"backend": {
			// First 12 characters of the mock container ID.
			Aliases: []string{"6f15ab15a2f6", "app", "app-primary"},
		},
	}))

	snapshot, err := CaptureSnapshot(container)
	require.NoError(t, err)

	require.Len(t, snapshot.Networks, 1)
	assert.Equal(t, []string{"app", "app-primary"}, snapshot.Networks[0].Aliases)
}

func TestCaptureSnapshotStaticAddresses(t *testing.T) {
	container := mockContainer(withNetworks("backend", map[string]*dockerNetworkType.EndpointSettings{
		"backend": {
			IPAMConfig: &dockerNetworkType.EndpointIPAMConfig{
				IPv4Address: "10.0.0.5",
				IPv6Address: "fd00::5",
			},
			IPAddress:  "10.0.0.5",
			MacAddress: "02:42:0a:00:00:05",
		},
		"frontend": {
			// Dynamic assignment: runtime address must not be pinned.
			IPAddress: "172.18.0.7",
		},
	}))

	snapshot, err := CaptureSnapshot(container)
	require.NoError(t, err)

	require.Len(t, snapshot.Networks, 2)
	assert.Equal(t, "10.0.0.5", snapshot.Networks[0].IPv4Address)
	assert.Equal(t, "fd00::5", snapshot.Networks[0].IPv6Address)
	assert.Equal(t, "02:42:0a:00:00:05", snapshot.Networks[0].MacAddress)
	assert.Empty(t, snapshot.Networks[1].IPv4Address)
}

func TestCaptureSnapshotFlagsAnonymousVolumes(t *testing.T) {
	container := mockContainer(withMounts(
		dockerContainerType.MountPoint{
			Type:        "volume",
			Name:        "4c1b2a3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
			Destination: "/var/lib/data",
		},
		dockerContainerType.MountPoint{
			Type:        "volume",
			Name:        "app-data",
			Destination: "/var/lib/named",
		},
		dockerContainerType.MountPoint{
			Type:        "bind",
			Source:      "/srv/config",
			Destination: "/etc/app",
		},
	))

	snapshot, err := CaptureSnapshot(container)
	require.NoError(t, err)

	require.Len(t, snapshot.Warnings, 1)
	assert.Contains(t, snapshot.Warnings[0], "anonymous volume")
	assert.Contains(t, snapshot.Warnings[0], "/var/lib/data")
}

func TestCaptureSnapshotNoNetworks(t *testing.T) {
	container := mockContainer()
	container.ContainerInfo().NetworkSettings = nil

	snapshot, err := CaptureSnapshot(container)
	require.NoError(t, err)

	assert.Empty(t, snapshot.Networks)
	assert.Nil(t, snapshot.PrimaryNetwork())
}
