package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	dockerNetworkType "github.com/docker/docker/api/types/network"

	"github.com/watchless/watchless/pkg/types"
)

// shortIDLength is the truncated container ID the engine injects as a network
// alias on every endpoint. It is filtered out during capture so the stale
// alias of the old container is not carried onto its replacement.
const shortIDLength = 12

// anonymousVolumeNameLength is the length of the hex name the engine assigns
// to anonymous volumes.
const anonymousVolumeNameLength = 64

// CaptureSnapshot derives a ConfigSnapshot from a container's inspection data.
//
// The snapshot is taken before the container is stopped and is the sole input
// to recreation; the old container is never read again afterwards. Capture
// performs no engine calls.
//
// Parameters:
//   - container: Discovered container with inspection data.
//
// Returns:
//   - *types.ConfigSnapshot: Everything needed to recreate the container.
//   - error: Non-nil if the inspection data is incomplete, nil on success.
func CaptureSnapshot(container types.Container) (*types.ConfigSnapshot, error) {
	source, ok := container.(*Container)
	if !ok {
		source = NewContainer(container.ContainerInfo(), container.ImageInfo())
	}

	if err := source.verifyConfiguration(); err != nil {
		return nil, fmt.Errorf("capturing snapshot for %s: %w", container.Name(), err)
	}

	snapshot := &types.ConfigSnapshot{
		ContainerName: source.Name(),
		ImageName:     source.ImageName(),
		ImageID:       source.ImageID(),
		Config:        source.createConfig(),
		HostConfig:    source.createHostConfig(),
		Networks:      captureNetworks(source),
		Warnings:      captureWarnings(source),
		CapturedAt:    time.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"container": snapshot.ContainerName,
		"image":     snapshot.ImageName,
		"networks":  len(snapshot.Networks),
		"warnings":  len(snapshot.Warnings),
	}).Debug("Captured config snapshot")

	return snapshot, nil
}

// captureNetworks records every network endpoint with its user-assigned
// aliases and static addresses.
//
// The network named by NetworkMode comes first so creation can attach it
// directly; the remainder are sorted by name for deterministic reconnection.
func captureNetworks(source *Container) []types.NetworkAttachment {
	info := source.ContainerInfo()
	if info.NetworkSettings == nil || len(info.NetworkSettings.Networks) == 0 {
		return nil
	}

	primaryName := string(info.HostConfig.NetworkMode)

	names := make([]string, 0, len(info.NetworkSettings.Networks))
	for name := range info.NetworkSettings.Networks {
		names = append(names, name)
	}

	sort.Strings(names)
	sort.SliceStable(names, func(i, _ int) bool {
		return names[i] == primaryName
	})

	attachments := make([]types.NetworkAttachment, 0, len(names))
	for _, name := range names {
		endpoint := info.NetworkSettings.Networks[name]
		attachments = append(attachments, types.NetworkAttachment{
			Name:        name,
			Aliases:     userAliases(endpoint, source.ID()),
			IPv4Address: staticIPv4(endpoint),
			IPv6Address: staticIPv6(endpoint),
			MacAddress:  endpoint.MacAddress,
		})
	}

	return attachments
}

// userAliases returns the endpoint aliases minus the engine-injected short
// container ID.
func userAliases(
	endpoint *dockerNetworkType.EndpointSettings,
	containerID types.ContainerID,
) []string {
	shortID := string(containerID)
	if len(shortID) > shortIDLength {
		shortID = shortID[:shortIDLength]
	}

	var aliases []string

	for _, alias := range endpoint.Aliases {
		if alias == shortID {
			continue
		}

		aliases = append(aliases, alias)
	}

	return aliases
}

// staticIPv4 returns the user-assigned IPv4 address, or empty for dynamic
// assignment. Only IPAMConfig addresses are static; the runtime address the
// engine handed out must not be pinned onto the replacement.
func staticIPv4(endpoint *dockerNetworkType.EndpointSettings) string {
	if endpoint.IPAMConfig == nil {
		return ""
	}

	return endpoint.IPAMConfig.IPv4Address
}

// staticIPv6 returns the user-assigned IPv6 address, or empty for dynamic
// assignment.
func staticIPv6(endpoint *dockerNetworkType.EndpointSettings) string {
	if endpoint.IPAMConfig == nil {
		return ""
	}

	return endpoint.IPAMConfig.IPv6Address
}

// captureWarnings flags capture-time caveats needing operator attention,
// currently anonymous volumes whose content cannot follow the container
// through recreation by name.
func captureWarnings(source *Container) []string {
	var warnings []string

	for _, mount := range source.ContainerInfo().Mounts {
		if mount.Type != "volume" || !isAnonymousVolumeName(mount.Name) {
			continue
		}

		warnings = append(warnings, fmt.Sprintf(
			"anonymous volume %s mounted at %s will be recreated empty",
			mount.Name[:shortIDLength],
			mount.Destination,
		))
	}

	return warnings
}

// isAnonymousVolumeName reports whether name is a 64-character hex string,
// the form the engine assigns to anonymous volumes.
func isAnonymousVolumeName(name string) bool {
	if len(name) != anonymousVolumeNameLength {
		return false
	}

	for _, r := range name {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}

	return true
}
