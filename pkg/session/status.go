package session

import (
	"github.com/watchless/watchless/pkg/types"
)

// ContainerStatus is the record of one container's classification and, when
// an update was applied, its replacement. It implements types.ContainerReport.
//
//nolint:errname // Not an error type; it carries an error field.
type ContainerStatus struct {
	containerID    types.ContainerID
	containerName  string
	imageName      string
	localDigest    string
	remoteDigest   string
	outcome        Outcome
	containerError error
	warnings       []string
	oldImageID     types.ImageID
	newContainerID types.ContainerID
}

// NewContainerStatus creates the status record for a discovered container.
//
// Parameters:
//   - container: The discovered container.
//
// Returns:
//   - *ContainerStatus: Status initialized with identity and local digest.
func NewContainerStatus(container types.Container) *ContainerStatus {
	return &ContainerStatus{
		containerID:   container.ID(),
		containerName: container.Name(),
		imageName:     container.ImageName(),
		localDigest:   container.LocalDigest(),
		oldImageID:    container.ImageID(),
	}
}

// ID returns the container's engine identifier.
func (s *ContainerStatus) ID() types.ContainerID { return s.containerID }

// Name returns the container name.
func (s *ContainerStatus) Name() string { return s.containerName }

// ImageName returns the image reference the container runs.
func (s *ContainerStatus) ImageName() string { return s.imageName }

// LocalDigest returns the digest recorded in engine-local metadata.
func (s *ContainerStatus) LocalDigest() string { return s.localDigest }

// RemoteDigest returns the digest resolved from the registry, or empty.
func (s *ContainerStatus) RemoteDigest() string { return s.remoteDigest }

// Outcome returns the machine-readable outcome name.
func (s *ContainerStatus) Outcome() string { return s.outcome.String() }

// Result returns the typed outcome.
func (s *ContainerStatus) Result() Outcome { return s.outcome }

// Error returns the reason for a skipped or failed outcome, or empty.
func (s *ContainerStatus) Error() string {
	if s.containerError == nil {
		return ""
	}

	return s.containerError.Error()
}

// Warnings returns capture-time caveats for operator attention.
func (s *ContainerStatus) Warnings() []string { return s.warnings }

// OldImageID returns the image the container ran before an update, used for
// post-run cleanup.
func (s *ContainerStatus) OldImageID() types.ImageID { return s.oldImageID }

// NewContainerID returns the replacement container's ID, or empty when no
// update was applied.
func (s *ContainerStatus) NewContainerID() types.ContainerID { return s.newContainerID }

// SetOutcome records a classification without error detail.
func (s *ContainerStatus) SetOutcome(outcome Outcome) {
	s.outcome = outcome
}

// SetRemoteDigest records the digest the registry advertised.
func (s *ContainerStatus) SetRemoteDigest(digest string) {
	s.remoteDigest = digest
}

// Fail records a failure outcome with its reason.
func (s *ContainerStatus) Fail(err error) {
	s.outcome = OutcomeFailed
	s.containerError = err
}

// Skip records a skipped outcome with its reason.
func (s *ContainerStatus) Skip(err error) {
	s.outcome = OutcomeSkipped
	s.containerError = err
}

// MarkUpdated records a successful update and the replacement container.
func (s *ContainerStatus) MarkUpdated(newID types.ContainerID) {
	s.outcome = OutcomeUpdated
	s.newContainerID = newID
}

// AddWarnings appends capture-time warnings (e.g., anonymous volumes).
func (s *ContainerStatus) AddWarnings(warnings []string) {
	s.warnings = append(s.warnings, warnings...)
}
