package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerNat "github.com/docker/go-connections/nat"
	dockerspec "github.com/moby/docker-image-spec/specs-go/v1"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestContainerImageName(t *testing.T) {
	tests := []struct {
		name     string
		image    string
		expected string
	}{
		{name: "untagged gets latest", image: "nginx", expected: "nginx:latest"},
		{name: "tag preserved", image: "nginx:1.27", expected: "nginx:1.27"},
		{
			name:     "digest pin preserved",
			image:    "nginx@sha256:0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
			expected: "nginx@sha256:0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9",
		},
		{
			name:     "registry host with port untagged",
			image:    "registry.example.com:5000/app",
			expected: "registry.example.com:5000/app",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			container := mockContainer(withImageName(test.image))

			assert.Equal(t, test.expected, container.ImageName())
		})
	}
}

func TestContainerName(t *testing.T) {
	container := mockContainer()

	assert.Equal(t, "app", container.Name())
}

func TestContainerLocalDigest(t *testing.T) {
	const nginxDigest = "sha256:aaaa567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"

	const mirrorDigest = "sha256:bbbb567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"

	tests := []struct {
		name        string
		image       string
		repoDigests []string
		expected    string
	}{
		{
			name:        "single repo digest",
			image:       "nginx:latest",
			repoDigests: []string{"nginx@" + nginxDigest},
			expected:    nginxDigest,
		},
		{
			name:  "matching repository wins",
			image: "nginx:latest",
			repoDigests: []string{
				"mirror.example.com/nginx@" + mirrorDigest,
				"nginx@" + nginxDigest,
			},
			expected: nginxDigest,
		},
		{
			name:        "no repo digests yields empty",
			image:       "locally-built:latest",
			repoDigests: nil,
			expected:    "",
		},
		{
			name:        "no match falls back to first entry",
			image:       "nginx:latest",
			repoDigests: []string{"mirror.example.com/nginx@" + mirrorDigest},
			expected:    mirrorDigest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			container := mockContainer(
				withImageName(test.image),
				withRepoDigests(test.repoDigests...),
			)

			assert.Equal(t, test.expected, container.LocalDigest())
		})
	}
}

func TestContainerLocalDigestWithoutImageInfo(t *testing.T) {
	source := mockContainer()
	container := NewContainer(source.ContainerInfo(), nil)

	assert.Empty(t, container.LocalDigest())
	assert.Empty(t, string(container.ImageID()))
	assert.Nil(t, container.Platform())
}

func TestContainerPlatform(t *testing.T) {
	container := mockContainer()

	platform := container.Platform()
	require.NotNil(t, platform)
	assert.Equal(t, "linux", platform.OS)
	assert.Equal(t, "amd64", platform.Architecture)
}

func TestCreateConfigSubtractsImageDefaults(t *testing.T) {
	container := mockContainer(
		withContainerConfig(dockerContainerType.Config{
			Image:      "app:latest",
			Env:        []string{"PATH=/usr/bin", "APP_MODE=prod"},
			Labels:     map[string]string{"maintainer": "upstream", "env": "prod"},
			WorkingDir: "/srv",
			User:       "app",
			ExposedPorts: map[dockerNat.Port]struct{}{
				"80/tcp":   {},
				"9090/tcp": {},
			},
		}),
		withImageConfig(dockerspec.DockerOCIImageConfig{
			ImageConfig: ocispec.ImageConfig{
				Env:          []string{"PATH=/usr/bin"},
				Labels:       map[string]string{"maintainer": "upstream"},
				WorkingDir:   "/srv",
				User:         "app",
				ExposedPorts: map[string]struct{}{"80/tcp": {}},
			},
		}),
		withPortBindings("8080/tcp"),
	)

	config := container.createConfig()

	assert.Equal(t, []string{"APP_MODE=prod"}, []string(config.Env))
	assert.Equal(t, map[string]string{"env": "prod"}, config.Labels)
	assert.Empty(t, config.WorkingDir)
	assert.Empty(t, config.User)
	assert.Equal(t, "app:latest", config.Image)

	assert.NotContains(t, config.ExposedPorts, dockerNat.Port("80/tcp"))
	assert.Contains(t, config.ExposedPorts, dockerNat.Port("9090/tcp"))
	assert.Contains(t, config.ExposedPorts, dockerNat.Port("8080/tcp"))
}

func TestCreateConfigClearsMatchingEntrypoint(t *testing.T) {
	container := mockContainer(
		withContainerConfig(dockerContainerType.Config{
			Image:      "app:latest",
			Entrypoint: []string{"/entrypoint.sh"},
			Cmd:        []string{"serve"},
		}),
		withImageConfig(dockerspec.DockerOCIImageConfig{
			ImageConfig: ocispec.ImageConfig{
				Entrypoint: []string{"/entrypoint.sh"},
				Cmd:        []string{"serve"},
			},
		}),
	)

	config := container.createConfig()

	assert.Nil(t, config.Entrypoint)
	assert.Nil(t, config.Cmd)
}

func TestCreateConfigKeepsOverriddenCmd(t *testing.T) {
	container := mockContainer(
		withContainerConfig(dockerContainerType.Config{
			Image:      "app:latest",
			Entrypoint: []string{"/entrypoint.sh"},
			Cmd:        []string{"serve", "--debug"},
		}),
		withImageConfig(dockerspec.DockerOCIImageConfig{
			ImageConfig: ocispec.ImageConfig{
				Entrypoint: []string{"/entrypoint.sh"},
				Cmd:        []string{"serve"},
			},
		}),
	)

	config := container.createConfig()

	assert.Nil(t, config.Entrypoint)
	assert.Equal(t, []string{"serve", "--debug"}, []string(config.Cmd))
}

func TestCreateHostConfigNormalizesLinks(t *testing.T) {
	container := mockContainer()
	container.ContainerInfo().HostConfig.Links = []string{"db:alias", "cache:/cache-alias"}

	hostConfig := container.createHostConfig()

	assert.Equal(t, []string{"db:/alias", "cache:/cache-alias"}, hostConfig.Links)
}
