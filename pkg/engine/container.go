package engine

import (
	"strings"

	"github.com/distribution/reference"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/internal/util"
	"github.com/watchless/watchless/pkg/types"
)

// Container wraps the inspection data of one discovered container.
//
// It implements types.Container. All accessors derive from the inspection
// responses captured at discovery time; none of them call the engine.
type Container struct {
	containerInfo *dockerContainerType.InspectResponse
	imageInfo     *dockerImageType.InspectResponse
}

// NewContainer creates a Container from its inspection data.
//
// Parameters:
//   - containerInfo: Engine container metadata.
//   - imageInfo: Engine image metadata, nil when the image is gone.
//
// Returns:
//   - *Container: Initialized container instance.
func NewContainer(
	containerInfo *dockerContainerType.InspectResponse,
	imageInfo *dockerImageType.InspectResponse,
) *Container {
	return &Container{
		containerInfo: containerInfo,
		imageInfo:     imageInfo,
	}
}

// ID returns the engine identifier of the container.
func (c *Container) ID() types.ContainerID {
	return types.ContainerID(c.containerInfo.ID)
}

// Name returns the container name without the leading slash.
func (c *Container) Name() string {
	return strings.TrimPrefix(c.containerInfo.Name, "/")
}

// ImageName returns the image reference the container was created from,
// appending ":latest" when no tag or digest is present.
//
// Returns:
//   - string: Image reference (e.g., "nginx:latest").
func (c *Container) ImageName() string {
	imageName := c.containerInfo.Config.Image

	if !strings.ContainsAny(imageName, ":@") {
		imageName += ":latest"
	}

	return imageName
}

// ImageID returns the identifier of the image backing the container, or an
// empty ID if image metadata is unavailable.
func (c *Container) ImageID() types.ImageID {
	if c.imageInfo == nil {
		return ""
	}

	return types.ImageID(c.imageInfo.ID)
}

// IsRunning reports whether the container was running when inspected.
func (c *Container) IsRunning() bool {
	if c.containerInfo == nil || c.containerInfo.State == nil {
		return false
	}

	return c.containerInfo.State.Running
}

// ContainerInfo returns the raw container inspection data.
func (c *Container) ContainerInfo() *dockerContainerType.InspectResponse {
	return c.containerInfo
}

// ImageInfo returns the raw image inspection data, or nil if unavailable.
func (c *Container) ImageInfo() *dockerImageType.InspectResponse {
	return c.imageInfo
}

// LocalDigest returns the repository digest of the running image as recorded
// in engine-local metadata.
//
// The engine records one repo digest per repository the image was pulled
// from; the entry matching the container's image repository wins. Locally
// built images carry no repo digest and yield an empty string, which callers
// treat as "cannot compare", never as "update available".
//
// Returns:
//   - string: Digest in "sha256:..." form, or empty if the engine has none.
func (c *Container) LocalDigest() string {
	if c.imageInfo == nil || len(c.imageInfo.RepoDigests) == 0 {
		return ""
	}

	repository := c.imageRepository()

	for _, repoDigest := range c.imageInfo.RepoDigests {
		name, digestValue, found := strings.Cut(repoDigest, "@")
		if !found {
			continue
		}

		if repository == "" || name == repository {
			return digestValue
		}
	}

	// No entry matched the repository; fall back to the first well-formed one.
	if _, digestValue, found := strings.Cut(c.imageInfo.RepoDigests[0], "@"); found {
		logrus.WithFields(logrus.Fields{
			"container": c.Name(),
			"image":     c.ImageName(),
		}).Debug("No repo digest matched image repository, using first entry")

		return digestValue
	}

	return ""
}

// Platform returns the image's platform for manifest list selection, or nil
// when image metadata is unavailable.
func (c *Container) Platform() *ocispec.Platform {
	if c.imageInfo == nil {
		return nil
	}

	return &ocispec.Platform{
		OS:           c.imageInfo.Os,
		Architecture: c.imageInfo.Architecture,
		Variant:      c.imageInfo.Variant,
	}
}

// imageRepository returns the familiar repository name of the container's
// image (e.g., "nginx", "ghcr.io/acme/app"), or empty if it cannot be parsed.
func (c *Container) imageRepository() string {
	named, err := reference.ParseNormalizedNamed(c.containerInfo.Config.Image)
	if err != nil {
		return ""
	}

	return reference.FamiliarName(reference.TrimNamed(named))
}

// createConfig derives the container configuration for recreation.
//
// The engine folds image defaults into the inspected config; passing those
// back verbatim would pin the old image's defaults onto the new container.
// Subtracting the image defaults leaves only the overrides the user supplied
// at creation time, so the new image's own defaults apply underneath them.
//
// Returns:
//   - *dockerContainerType.Config: Configuration for container creation.
func (c *Container) createConfig() *dockerContainerType.Config {
	clog := logrus.WithField("container", c.Name())
	config := c.containerInfo.Config
	hostConfig := c.containerInfo.HostConfig

	if c.imageInfo == nil {
		clog.Warn("No image info available, using container config as-is")

		config.Image = c.ImageName()

		return config
	}

	imageConfig := c.imageInfo.Config
	if config.WorkingDir == imageConfig.WorkingDir {
		config.WorkingDir = ""
	}

	if config.User == imageConfig.User {
		config.User = ""
	}

	// The engine derives the hostname in these modes; carrying it over breaks creation.
	if hostConfig.NetworkMode.IsContainer() || hostConfig.UTSMode != "" {
		config.Hostname = ""
	}

	if util.SliceEqual(config.Entrypoint, imageConfig.Entrypoint) {
		config.Entrypoint = nil
		if util.SliceEqual(config.Cmd, imageConfig.Cmd) {
			config.Cmd = nil
		}
	}

	if config.Healthcheck != nil && imageConfig.Healthcheck != nil {
		if util.SliceEqual(config.Healthcheck.Test, imageConfig.Healthcheck.Test) {
			config.Healthcheck.Test = nil
		}

		if config.Healthcheck.Retries == imageConfig.Healthcheck.Retries {
			config.Healthcheck.Retries = 0
		}

		if config.Healthcheck.Interval == imageConfig.Healthcheck.Interval {
			config.Healthcheck.Interval = 0
		}

		if config.Healthcheck.Timeout == imageConfig.Healthcheck.Timeout {
			config.Healthcheck.Timeout = 0
		}

		if config.Healthcheck.StartPeriod == imageConfig.Healthcheck.StartPeriod {
			config.Healthcheck.StartPeriod = 0
		}
	}

	config.Env = util.SliceSubtract(config.Env, imageConfig.Env)
	config.Labels = util.StringMapSubtract(config.Labels, imageConfig.Labels)
	config.Volumes = util.StructMapSubtract(config.Volumes, imageConfig.Volumes)

	for port := range config.ExposedPorts {
		if _, ok := imageConfig.ExposedPorts[string(port)]; ok {
			delete(config.ExposedPorts, port)
		}
	}

	// Published ports must stay exposed regardless of the image's EXPOSE set.
	for port := range hostConfig.PortBindings {
		config.ExposedPorts[port] = struct{}{}
	}

	config.Image = c.ImageName()
	clog.WithField("image", config.Image).Debug("Derived create config")

	return config
}

// createHostConfig derives the host configuration for recreation.
//
// Link entries are normalized to the "name:/alias" form the create API
// expects; inspection reports them without the alias slash.
//
// Returns:
//   - *dockerContainerType.HostConfig: Host configuration for container creation.
func (c *Container) createHostConfig() *dockerContainerType.HostConfig {
	clog := logrus.WithField("container", c.Name())

	hostConfig := c.containerInfo.HostConfig

	for i, link := range hostConfig.Links {
		name, alias, found := strings.Cut(link, ":")
		if !found {
			clog.WithField("link", link).Warn("Invalid link format, expected 'name:alias'")

			continue
		}

		hostConfig.Links[i] = name + ":/" + strings.TrimPrefix(alias, "/")
	}

	return hostConfig
}

// verifyConfiguration validates the inspection data before snapshot capture.
//
// Returns:
//   - error: Non-nil if metadata is missing or incomplete, nil on success.
func (c *Container) verifyConfiguration() error {
	if c.containerInfo == nil {
		return errNoContainerInfo
	}

	if c.containerInfo.Config == nil || c.containerInfo.HostConfig == nil {
		return errInvalidConfig
	}

	// Create rejects PortBindings without a matching ExposedPorts map.
	if len(c.containerInfo.HostConfig.PortBindings) > 0 &&
		c.containerInfo.Config.ExposedPorts == nil {
		c.containerInfo.Config.ExposedPorts = map[nat.Port]struct{}{}
	}

	return nil
}
