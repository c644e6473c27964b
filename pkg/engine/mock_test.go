package engine

import (
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
	dockerNetworkType "github.com/docker/docker/api/types/network"
	dockerNat "github.com/docker/go-connections/nat"
	dockerspec "github.com/moby/docker-image-spec/specs-go/v1"
)

type mockContainerUpdate func(*dockerContainerType.InspectResponse, *dockerImageType.InspectResponse)

// mockContainer builds a Container from inspection data with sensible
// defaults, letting each test override only what it exercises.
func mockContainer(updates ...mockContainerUpdate) *Container {
	containerInfo := dockerContainerType.InspectResponse{
		ContainerJSONBase: &dockerContainerType.ContainerJSONBase{
			ID:    "6f15ab15a2f6e9b1f32a06a0c1e9d38cc6b9a3d42e6a21c093a54a0bd7b7b8f1",
			Image: "sha256:0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
			Name:  "/app",
			State: &dockerContainerType.State{Running: true},
			HostConfig: &dockerContainerType.HostConfig{
				NetworkMode: "bridge",
			},
		},
		Config: &dockerContainerType.Config{
			Image:  "app:latest",
			Labels: map[string]string{},
		},
		NetworkSettings: &dockerContainerType.NetworkSettings{
			Networks: map[string]*dockerNetworkType.EndpointSettings{},
		},
	}
	imageInfo := dockerImageType.InspectResponse{
		ID:           "sha256:0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
		Os:           "linux",
		Architecture: "amd64",
		Config:       &dockerspec.DockerOCIImageConfig{},
	}

	for _, update := range updates {
		update(&containerInfo, &imageInfo)
	}

	return NewContainer(&containerInfo, &imageInfo)
}

func withImageName(name string) mockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, i *dockerImageType.InspectResponse) {
		c.Config.Image = name
		i.RepoTags = append(i.RepoTags, name)
	}
}

func withRepoDigests(repoDigests ...string) mockContainerUpdate {
	return func(_ *dockerContainerType.InspectResponse, i *dockerImageType.InspectResponse) {
		i.RepoDigests = repoDigests
	}
}

func withImageConfig(config dockerspec.DockerOCIImageConfig) mockContainerUpdate {
	return func(_ *dockerContainerType.InspectResponse, i *dockerImageType.InspectResponse) {
		i.Config = &config
	}
}

func withContainerConfig(config dockerContainerType.Config) mockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		c.Config = &config
	}
}

func withPortBindings(ports ...string) mockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		bindings := dockerNat.PortMap{}
		for _, port := range ports {
			bindings[dockerNat.Port(port)] = []dockerNat.PortBinding{}
		}

		c.HostConfig.PortBindings = bindings
	}
}

func withNetworks(
	mode string,
	networks map[string]*dockerNetworkType.EndpointSettings,
) mockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		c.HostConfig.NetworkMode = dockerContainerType.NetworkMode(mode)
		c.NetworkSettings.Networks = networks
	}
}

func withMounts(mounts ...dockerContainerType.MountPoint) mockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		c.Mounts = mounts
	}
}
