package types

import (
	"time"

	dockerContainerType "github.com/docker/docker/api/types/container"
)

// NetworkAttachment records one network endpoint of a container: the network
// name plus any user-assigned aliases and static addresses that must be
// reapplied on recreation.
type NetworkAttachment struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	IPv4Address string   `json:"ipv4_address,omitempty"`
	IPv6Address string   `json:"ipv6_address,omitempty"`
	MacAddress  string   `json:"mac_address,omitempty"`
}

// ConfigSnapshot is an immutable capture of everything needed to recreate a
// container identically except for its image.
//
// It is taken before the original container is stopped and is the sole source
// of truth during recreation; the old container is never read again after
// capture. Config and HostConfig are deep references into the inspection data
// the snapshot was derived from, which is discarded after the run.
type ConfigSnapshot struct {
	// ContainerName is the name the replacement container is created under.
	ContainerName string `json:"container_name"`

	// ImageName is the image reference (repository:tag) the container runs.
	ImageName string `json:"image_name"`

	// ImageID pins the exact image the container was running, used for
	// best-effort rollback if recreation fails after the old container is gone.
	ImageID ImageID `json:"image_id"`

	// Config carries env, labels, entrypoint/command, exposed ports, user,
	// working dir, and the health check definition.
	Config *dockerContainerType.Config `json:"config"`

	// HostConfig carries binds and mounts (order preserved), port bindings,
	// restart policy, and resource limits.
	HostConfig *dockerContainerType.HostConfig `json:"host_config"`

	// Networks lists every attached network in engine order. The first entry
	// is the primary network supplied at creation time; the rest are
	// reconnected afterwards.
	Networks []NetworkAttachment `json:"networks"`

	// Warnings lists capture-time caveats, currently anonymous volumes whose
	// prior content cannot be rebound by name after removal.
	Warnings []string `json:"warnings,omitempty"`

	// CapturedAt is the capture timestamp.
	CapturedAt time.Time `json:"captured_at"`
}

// PrimaryNetwork returns the network supplied at creation time, or nil if the
// container has no network attachments to restore.
func (s *ConfigSnapshot) PrimaryNetwork() *NetworkAttachment {
	if len(s.Networks) == 0 {
		return nil
	}

	return &s.Networks[0]
}

// SecondaryNetworks returns the attachments reconnected after creation.
func (s *ConfigSnapshot) SecondaryNetworks() []NetworkAttachment {
	if len(s.Networks) <= 1 {
		return nil
	}

	return s.Networks[1:]
}
