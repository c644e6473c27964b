// Package mocks provides mock implementations for testing run orchestration.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/watchless/watchless/pkg/types"
)

// MockClient is a scripted implementation of types.Client for tests.
//
// It records every mutation the runner performs so tests can assert on call
// order and isolation.
type MockClient struct {
	TestData *TestData

	mutex sync.Mutex
}

// TestData scripts the MockClient's behavior and records its observations.
type TestData struct {
	// Containers is what ListContainers returns.
	Containers []types.Container

	// ListError makes ListContainers fail.
	ListError error

	// ListStarted, when non-nil, is closed once ListContainers is entered.
	ListStarted chan struct{}

	// ListRelease, when non-nil, blocks ListContainers until closed.
	ListRelease chan struct{}

	// SnapshotErrors fails CaptureSnapshot for the named containers.
	SnapshotErrors map[string]error

	// SnapshotWarnings injects capture warnings for the named containers.
	SnapshotWarnings map[string][]string

	// ReplaceErrors fails ReplaceContainer for the named containers.
	ReplaceErrors map[string]error

	// NextDigests advances the named container's local digest after a
	// successful replacement, modeling the engine recording the new image.
	NextDigests map[string]string

	// ReferencedImages marks images ImageReferenced reports as still in use.
	ReferencedImages map[types.ImageID]bool

	// Replaced lists the container names replaced, in call order.
	Replaced []string

	// Snapshots lists the container names snapshotted, in call order.
	Snapshots []string

	// RemovedImages lists the image IDs removed, in call order.
	RemovedImages []types.ImageID
}

// CreateMockClient constructs a MockClient over the given test data.
func CreateMockClient(data *TestData) *MockClient {
	if data.SnapshotErrors == nil {
		data.SnapshotErrors = map[string]error{}
	}

	if data.SnapshotWarnings == nil {
		data.SnapshotWarnings = map[string][]string{}
	}

	if data.ReplaceErrors == nil {
		data.ReplaceErrors = map[string]error{}
	}

	if data.ReferencedImages == nil {
		data.ReferencedImages = map[types.ImageID]bool{}
	}

	return &MockClient{TestData: data}
}

// ListContainers returns the scripted containers, optionally signaling entry
// and blocking for concurrency tests.
func (client *MockClient) ListContainers(_ context.Context) ([]types.Container, error) {
	if client.TestData.ListStarted != nil {
		close(client.TestData.ListStarted)
		client.TestData.ListStarted = nil
	}

	if client.TestData.ListRelease != nil {
		<-client.TestData.ListRelease
	}

	if client.TestData.ListError != nil {
		return nil, client.TestData.ListError
	}

	return client.TestData.Containers, nil
}

// CaptureSnapshot records the capture and returns a minimal snapshot, or the
// scripted error.
func (client *MockClient) CaptureSnapshot(
	container types.Container,
) (*types.ConfigSnapshot, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.TestData.Snapshots = append(client.TestData.Snapshots, container.Name())

	if err := client.TestData.SnapshotErrors[container.Name()]; err != nil {
		return nil, err
	}

	return &types.ConfigSnapshot{
		ContainerName: container.Name(),
		ImageName:     container.ImageName(),
		ImageID:       container.ImageID(),
		Warnings:      client.TestData.SnapshotWarnings[container.Name()],
		CapturedAt:    time.Now(),
	}, nil
}

// ReplaceContainer records the replacement and returns a derived new ID, or
// the scripted error.
func (client *MockClient) ReplaceContainer(
	_ context.Context,
	container types.Container,
	_ *types.ConfigSnapshot,
) (types.ContainerID, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.TestData.Replaced = append(client.TestData.Replaced, container.Name())

	if err := client.TestData.ReplaceErrors[container.Name()]; err != nil {
		return "", err
	}

	if next, ok := client.TestData.NextDigests[container.Name()]; ok {
		if mock, isMock := container.(*MockContainer); isMock {
			mock.Digest = next
		}
	}

	return types.ContainerID("new-" + string(container.ID())), nil
}

// ImageReferenced reports the scripted reference state.
func (client *MockClient) ImageReferenced(
	_ context.Context,
	imageID types.ImageID,
) (bool, error) {
	return client.TestData.ReferencedImages[imageID], nil
}

// RemoveImage records the removal.
func (client *MockClient) RemoveImage(
	_ context.Context,
	imageID types.ImageID,
	_ string,
) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.TestData.RemovedImages = append(client.TestData.RemovedImages, imageID)

	return nil
}

// APIVersion returns a fixed version string.
func (client *MockClient) APIVersion() string {
	return "1.44"
}
