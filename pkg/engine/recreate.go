package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
	dockerNetworkType "github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/pkg/types"
)

// healthPollInterval is how often a starting container's health status is
// re-inspected while waiting for it to report healthy.
const healthPollInterval = 500 * time.Millisecond

// State identifies where a recreation sequence currently is. Transitions are
// strictly forward; StateFailed is reachable from any non-terminal state.
type State int

// Recreation states in execution order.
const (
	StateIdle State = iota
	StatePullingImage
	StateStoppingOld
	StateRemovingOld
	StateCreatingNew
	StateReconnectingNetworks
	StateStarting
	StateDone
	StateFailed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePullingImage:
		return "pulling_image"
	case StateStoppingOld:
		return "stopping_old"
	case StateRemovingOld:
		return "removing_old"
	case StateCreatingNew:
		return "creating_new"
	case StateReconnectingNetworks:
		return "reconnecting_networks"
	case StateStarting:
		return "starting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EngineOps is the engine API subset the recreation sequence drives. The
// Docker client satisfies it; tests substitute a scripted fake.
type EngineOps interface {
	ImagePull(
		ctx context.Context,
		refStr string,
		options dockerImageType.PullOptions,
	) (io.ReadCloser, error)
	ContainerStop(
		ctx context.Context,
		containerID string,
		options dockerContainerType.StopOptions,
	) error
	ContainerRemove(
		ctx context.Context,
		containerID string,
		options dockerContainerType.RemoveOptions,
	) error
	ContainerCreate(
		ctx context.Context,
		config *dockerContainerType.Config,
		hostConfig *dockerContainerType.HostConfig,
		networkingConfig *dockerNetworkType.NetworkingConfig,
		platform *ocispec.Platform,
		containerName string,
	) (dockerContainerType.CreateResponse, error)
	NetworkConnect(
		ctx context.Context,
		networkID, containerID string,
		config *dockerNetworkType.EndpointSettings,
	) error
	ContainerStart(
		ctx context.Context,
		containerID string,
		options dockerContainerType.StartOptions,
	) error
	ContainerInspect(
		ctx context.Context,
		containerID string,
	) (dockerContainerType.InspectResponse, error)
}

// Recreation drives the replacement of one container with a copy of itself
// on a newer image: pull, stop, remove, create from snapshot, reconnect
// networks, start.
//
// The sequence reads only the snapshot once the old container is stopped. A
// failure before the old container is removed leaves it in place; a failure
// after removal triggers one best-effort rollback that recreates the
// container from the snapshot's original image.
type Recreation struct {
	ops           EngineOps
	oldID         types.ContainerID
	snapshot      *types.ConfigSnapshot
	platform      *ocispec.Platform
	registryAuth  string
	stopTimeout   time.Duration
	engineTimeout time.Duration
	healthTimeout time.Duration
	state         State
}

// NewRecreation prepares a recreation sequence for one container.
//
// Parameters:
//   - ops: Engine API operations.
//   - oldID: The container being replaced.
//   - snapshot: Config snapshot captured before any mutation.
//   - platform: Platform hint for the pull, nil for engine default.
//   - registryAuth: Base64 credentials for the pull, empty for anonymous.
//   - stopTimeout: Grace period before the old container is killed.
//   - engineTimeout: Per-engine-call deadline.
//   - healthTimeout: How long to wait for a defined health check to pass
//     after start; zero starts without waiting.
//
// Returns:
//   - *Recreation: Sequence ready to run, in StateIdle.
func NewRecreation(
	ops EngineOps,
	oldID types.ContainerID,
	snapshot *types.ConfigSnapshot,
	platform *ocispec.Platform,
	registryAuth string,
	stopTimeout, engineTimeout, healthTimeout time.Duration,
) *Recreation {
	return &Recreation{
		ops:           ops,
		oldID:         oldID,
		snapshot:      snapshot,
		platform:      platform,
		registryAuth:  registryAuth,
		stopTimeout:   stopTimeout,
		engineTimeout: engineTimeout,
		healthTimeout: healthTimeout,
		state:         StateIdle,
	}
}

// State returns the sequence's current state.
func (r *Recreation) State() State {
	return r.state
}

// Run executes the full sequence.
//
// Cancellation of ctx is honored up to the point the old container is
// stopped; from there the sequence runs to completion (or rollback) on a
// detached context so an interrupted run never strands a removed container.
//
// Parameters:
//   - ctx: Context controlling the pre-mutation phase.
//
// Returns:
//   - types.ContainerID: The replacement container's ID on success.
//   - error: Non-nil on failure; wraps errRollbackFailed if the rollback
//     also failed and the container is gone.
func (r *Recreation) Run(ctx context.Context) (types.ContainerID, error) {
	clog := logrus.WithFields(logrus.Fields{
		"container": r.snapshot.ContainerName,
		"image":     r.snapshot.ImageName,
	})

	r.transition(StatePullingImage, clog)

	if err := r.pullImage(ctx); err != nil {
		r.transition(StateFailed, clog)

		return "", err
	}

	if err := ctx.Err(); err != nil {
		r.transition(StateFailed, clog)

		return "", fmt.Errorf("recreation aborted before stopping %s: %w", r.snapshot.ContainerName, err)
	}

	// Once the old container stops, finish regardless of run cancellation.
	mutationCtx := context.WithoutCancel(ctx)

	r.transition(StateStoppingOld, clog)

	if err := r.stopOld(mutationCtx); err != nil {
		r.transition(StateFailed, clog)

		return "", err
	}

	r.transition(StateRemovingOld, clog)

	if err := r.removeOld(mutationCtx); err != nil {
		r.transition(StateFailed, clog)

		return "", err
	}

	newID, err := r.bringUp(mutationCtx, r.snapshot.ImageName, clog)
	if err != nil {
		r.transition(StateFailed, clog)

		return "", r.rollback(mutationCtx, err, clog)
	}

	r.transition(StateDone, clog)

	return newID, nil
}

// bringUp creates, reconnects, and starts a container from the snapshot
// using the given image reference. It is shared by the forward path and the
// rollback, which differ only in the image.
func (r *Recreation) bringUp(
	ctx context.Context,
	imageRef string,
	clog *logrus.Entry,
) (types.ContainerID, error) {
	r.transition(StateCreatingNew, clog)

	newID, err := r.createNew(ctx, imageRef)
	if err != nil {
		return "", err
	}

	r.transition(StateReconnectingNetworks, clog)

	if err := r.reconnectNetworks(ctx, newID); err != nil {
		return "", err
	}

	r.transition(StateStarting, clog)

	if err := r.start(ctx, newID); err != nil {
		return "", err
	}

	return newID, nil
}

// pullImage fetches the new image so create cannot fail on a missing image
// after the old container is gone.
func (r *Recreation) pullImage(ctx context.Context) error {
	pullCtx, cancel := r.callContext(ctx)
	defer cancel()

	response, err := r.ops.ImagePull(pullCtx, r.snapshot.ImageName, dockerImageType.PullOptions{
		RegistryAuth: r.registryAuth,
		Platform:     platformString(r.platform),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errPullImageFailed, r.snapshot.ImageName, err)
	}
	defer response.Close()

	// The pull completes only once the response stream is drained.
	if _, err := io.Copy(io.Discard, response); err != nil {
		return fmt.Errorf("%w: %s: %w", errReadPullResponseFailed, r.snapshot.ImageName, err)
	}

	return nil
}

// stopOld stops the container being replaced, honoring the grace period.
func (r *Recreation) stopOld(ctx context.Context) error {
	stopCtx, cancel := r.callContext(ctx)
	defer cancel()

	seconds := int(r.stopTimeout.Seconds())

	err := r.ops.ContainerStop(stopCtx, string(r.oldID), dockerContainerType.StopOptions{
		Timeout: &seconds,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errStopContainerFailed, r.snapshot.ContainerName, err)
	}

	return nil
}

// removeOld removes the stopped container, freeing its name for the
// replacement. Named volumes are left in place.
func (r *Recreation) removeOld(ctx context.Context) error {
	removeCtx, cancel := r.callContext(ctx)
	defer cancel()

	err := r.ops.ContainerRemove(removeCtx, string(r.oldID), dockerContainerType.RemoveOptions{
		RemoveVolumes: false,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errRemoveContainerFailed, r.snapshot.ContainerName, err)
	}

	return nil
}

// createNew creates the replacement under the original name, attached to the
// snapshot's primary network.
func (r *Recreation) createNew(ctx context.Context, imageRef string) (types.ContainerID, error) {
	createCtx, cancel := r.callContext(ctx)
	defer cancel()

	// Copy so the rollback path sees the snapshot's image name untouched.
	config := *r.snapshot.Config
	config.Image = imageRef

	var networkingConfig *dockerNetworkType.NetworkingConfig

	if primary := r.snapshot.PrimaryNetwork(); primary != nil {
		networkingConfig = &dockerNetworkType.NetworkingConfig{
			EndpointsConfig: map[string]*dockerNetworkType.EndpointSettings{
				primary.Name: endpointSettings(*primary),
			},
		}
	}

	response, err := r.ops.ContainerCreate(
		createCtx,
		&config,
		r.snapshot.HostConfig,
		networkingConfig,
		r.platform,
		r.snapshot.ContainerName,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errCreateContainerFailed, r.snapshot.ContainerName, err)
	}

	return types.ContainerID(response.ID), nil
}

// reconnectNetworks attaches the replacement to every network beyond the
// primary, restoring aliases and static addresses.
func (r *Recreation) reconnectNetworks(ctx context.Context, newID types.ContainerID) error {
	for _, attachment := range r.snapshot.SecondaryNetworks() {
		connectCtx, cancel := r.callContext(ctx)

		err := r.ops.NetworkConnect(
			connectCtx,
			attachment.Name,
			string(newID),
			endpointSettings(attachment),
		)

		cancel()

		if err != nil {
			return fmt.Errorf("%w: %s: %w", errConnectNetworkFailed, attachment.Name, err)
		}
	}

	return nil
}

// start starts the replacement and, when a health check and wait window are
// configured, waits for it to report healthy.
func (r *Recreation) start(ctx context.Context, newID types.ContainerID) error {
	startCtx, cancel := r.callContext(ctx)
	defer cancel()

	err := r.ops.ContainerStart(startCtx, string(newID), dockerContainerType.StartOptions{})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errStartContainerFailed, r.snapshot.ContainerName, err)
	}

	if r.healthTimeout <= 0 || r.snapshot.Config.Healthcheck == nil {
		return nil
	}

	return r.awaitHealthy(ctx, newID)
}

// awaitHealthy polls the replacement's health status until it reports
// healthy or the window elapses.
func (r *Recreation) awaitHealthy(ctx context.Context, newID types.ContainerID) error {
	deadline := time.Now().Add(r.healthTimeout)

	for {
		inspectCtx, cancel := r.callContext(ctx)
		info, err := r.ops.ContainerInspect(inspectCtx, string(newID))

		cancel()

		if err == nil && info.State != nil {
			if info.State.Health == nil || info.State.Health.Status == dockerContainerType.Healthy {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", errHealthCheckTimeout, r.snapshot.ContainerName)
		}

		time.Sleep(healthPollInterval)
	}
}

// rollback recreates the container from the snapshot's original image after
// a failure that left the host without it. The original image is still
// present locally, so no pull is attempted. The triggering error is always
// returned; a rollback failure is joined onto it together with the snapshot
// so the operator can recreate by hand.
func (r *Recreation) rollback(ctx context.Context, cause error, clog *logrus.Entry) error {
	clog.WithError(cause).Warn("Recreation failed after removal, rolling back to original image")

	if _, err := r.bringUp(ctx, string(r.snapshot.ImageID), clog); err != nil {
		r.state = StateFailed

		if raw, marshalErr := json.Marshal(r.snapshot); marshalErr == nil {
			clog.WithField("snapshot", string(raw)).
				Error("Rollback failed, container is gone; snapshot follows for manual recreation")
		}

		return fmt.Errorf("%w: %w (%w)", errRollbackFailed, err, cause)
	}

	r.state = StateFailed

	clog.Info("Rollback succeeded, container restored on original image")

	return cause
}

// transition advances the state machine and logs the step.
func (r *Recreation) transition(next State, clog *logrus.Entry) {
	r.state = next

	clog.WithField("state", next.String()).Debug("Recreation state transition")
}

// callContext bounds one engine call with the per-call timeout.
func (r *Recreation) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.engineTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.engineTimeout)
}

// endpointSettings converts a captured attachment back into the engine's
// endpoint form for create and connect calls.
func endpointSettings(attachment types.NetworkAttachment) *dockerNetworkType.EndpointSettings {
	settings := &dockerNetworkType.EndpointSettings{
		Aliases:    attachment.Aliases,
		MacAddress: attachment.MacAddress,
	}

	if attachment.IPv4Address != "" || attachment.IPv6Address != "" {
		settings.IPAMConfig = &dockerNetworkType.EndpointIPAMConfig{
			IPv4Address: attachment.IPv4Address,
			IPv6Address: attachment.IPv6Address,
		}
	}

	return settings
}

// platformString renders a platform hint for the pull API, or empty for the
// engine default.
func platformString(platform *ocispec.Platform) string {
	if platform == nil {
		return ""
	}

	s := platform.OS + "/" + platform.Architecture
	if platform.Variant != "" {
		s += "/" + platform.Variant
	}

	return s
}
