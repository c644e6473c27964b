package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
	dockerClient "github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/pkg/registry"
	"github.com/watchless/watchless/pkg/types"
)

// ClientOptions configures the engine client wrapper.
type ClientOptions struct {
	// StopTimeout is the grace period before a stopping container is killed.
	StopTimeout time.Duration

	// EngineTimeout bounds each individual engine API call.
	EngineTimeout time.Duration

	// HealthTimeout is how long a replacement with a health check may take to
	// report healthy after start; zero disables the wait.
	HealthTimeout time.Duration
}

// client wraps the Docker API client and implements types.Client.
type client struct {
	api dockerClient.APIClient
	ClientOptions
}

// NewClient initializes the engine client from the environment.
//
// Connection settings come from the standard variables (DOCKER_HOST,
// DOCKER_TLS_VERIFY, DOCKER_CERT_PATH) with API version negotiation against
// the daemon.
//
// Parameters:
//   - opts: Timeouts applied to engine operations.
//
// Returns:
//   - types.Client: Initialized client.
//   - error: Non-nil if the Docker client cannot be constructed.
func NewClient(opts ClientOptions) (types.Client, error) {
	api, err := dockerClient.NewClientWithOpts(
		dockerClient.FromEnv,
		dockerClient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Docker client: %w", err)
	}

	logrus.WithField("api_version", api.ClientVersion()).
		Debug("Initialized Docker client")

	return &client{api: api, ClientOptions: opts}, nil
}

// NewClientWithAPI wraps an existing API client, primarily for tests.
func NewClientWithAPI(api dockerClient.APIClient, opts ClientOptions) types.Client {
	return &client{api: api, ClientOptions: opts}
}

// ListContainers returns the running containers in engine discovery order,
// each fully inspected.
//
// A container that vanishes or fails inspection between list and inspect is
// returned as a degraded record carrying the failure, so the run can report
// it rather than abort. A missing image inspection is tolerated (the
// container is reported without image metadata); only a failing engine list
// is fatal to the run.
func (c *client) ListContainers(ctx context.Context) ([]types.Container, error) {
	listCtx, cancel := c.callContext(ctx)
	defer cancel()

	summaries, err := c.api.ContainerList(listCtx, dockerContainerType.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	containers := make([]types.Container, 0, len(summaries))

	for _, summary := range summaries {
		container, err := c.inspect(ctx, summary.ID)
		if err != nil {
			if cerrdefs.IsNotFound(err) {
				logrus.WithField("id", types.ContainerID(summary.ID).ShortID()).
					Debug("Container vanished between list and inspect")
			} else {
				logrus.WithFields(logrus.Fields{
					"id":    types.ContainerID(summary.ID).ShortID(),
					"error": err,
				}).Warn("Failed to inspect container, reporting it without metadata")
			}

			containers = append(containers, newUnresolvedContainer(summary, err))

			continue
		}

		containers = append(containers, container)
	}

	logrus.WithField("count", len(containers)).Debug("Discovered running containers")

	return containers, nil
}

// inspect fetches full container and image metadata for one container.
func (c *client) inspect(ctx context.Context, containerID string) (types.Container, error) {
	inspectCtx, cancel := c.callContext(ctx)
	defer cancel()

	containerInfo, err := c.api.ContainerInspect(inspectCtx, containerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errInspectContainerFailed, containerID, err)
	}

	imageCtx, cancelImage := c.callContext(ctx)
	defer cancelImage()

	imageInfo, err := c.api.ImageInspect(imageCtx, containerInfo.Image)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"container": containerInfo.Name,
			"image":     containerInfo.Image,
			"error":     err,
		}).Warn("Failed to inspect image, continuing without image metadata")

		return NewContainer(&containerInfo, nil), nil
	}

	return NewContainer(&containerInfo, &imageInfo), nil
}

// CaptureSnapshot derives a ConfigSnapshot from the container's inspection
// data. It performs no engine calls.
func (c *client) CaptureSnapshot(container types.Container) (*types.ConfigSnapshot, error) {
	return CaptureSnapshot(container)
}

// ReplaceContainer drives the full recreation sequence for one container and
// returns the replacement's ID.
//
// Registry credentials for the pull are resolved the same way the Docker CLI
// would; resolution failure degrades to an anonymous pull.
func (c *client) ReplaceContainer(
	ctx context.Context,
	container types.Container,
	snapshot *types.ConfigSnapshot,
) (types.ContainerID, error) {
	registryAuth, err := registry.EncodedAuth(snapshot.ImageName)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"image": snapshot.ImageName,
			"error": err,
		}).Debug("Failed to load registry credentials, pulling anonymously")

		registryAuth = ""
	}

	recreation := NewRecreation(
		c.api,
		container.ID(),
		snapshot,
		containerPlatform(container),
		registryAuth,
		c.StopTimeout,
		c.EngineTimeout,
		c.HealthTimeout,
	)

	return recreation.Run(ctx)
}

// ImageReferenced reports whether any container on the host, running or not,
// still uses the given image.
func (c *client) ImageReferenced(ctx context.Context, imageID types.ImageID) (bool, error) {
	listCtx, cancel := c.callContext(ctx)
	defer cancel()

	summaries, err := c.api.ContainerList(listCtx, dockerContainerType.ListOptions{All: true})
	if err != nil {
		return false, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	for _, summary := range summaries {
		if types.ImageID(summary.ImageID) == imageID {
			return true, nil
		}
	}

	return false, nil
}

// RemoveImage deletes a superseded image. A concurrently removed image is
// not an error.
func (c *client) RemoveImage(
	ctx context.Context,
	imageID types.ImageID,
	imageName string,
) error {
	clog := logrus.WithFields(logrus.Fields{
		"image_id": imageID.ShortID(),
		"image":    imageName,
	})
	clog.Info("Removing superseded image")

	removeCtx, cancel := c.callContext(ctx)
	defer cancel()

	_, err := c.api.ImageRemove(removeCtx, string(imageID), dockerImageType.RemoveOptions{
		Force:         true,
		PruneChildren: true,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			clog.Debug("Image already removed")

			return nil
		}

		return fmt.Errorf("%w: %s: %w", errRemoveImageFailed, imageID.ShortID(), err)
	}

	return nil
}

// APIVersion returns the negotiated engine API version.
func (c *client) APIVersion() string {
	return c.api.ClientVersion()
}

// callContext bounds one engine call with the per-call timeout.
func (c *client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.EngineTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.EngineTimeout)
}

// containerPlatform extracts the platform hint when the container exposes
// one, nil otherwise.
func containerPlatform(container types.Container) *ocispec.Platform {
	if source, ok := container.(interface{ Platform() *ocispec.Platform }); ok {
		return source.Platform()
	}

	return nil
}
