package actions

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/pkg/registry"
	"github.com/watchless/watchless/pkg/registry/digest"
	"github.com/watchless/watchless/pkg/session"
	"github.com/watchless/watchless/pkg/types"
)

// DigestResolver resolves the digest a registry currently advertises for an
// image reference. Satisfied by digest.Resolver; tests substitute a fake.
type DigestResolver interface {
	Resolve(
		ctx context.Context,
		imageRef string,
		platform ocispec.Platform,
		registryAuth string,
	) (digest.RemoteDigest, error)
}

// target pairs a discovered container with its status record through the
// phases of a run.
type target struct {
	container types.Container
	status    *session.ContainerStatus
}

// classify resolves remote digests for the targets with bounded concurrency
// and records each container's outcome.
//
// Classification is read-only: a target leaves this phase as up to date,
// update available, or skipped, and only update-available targets reach the
// mutation phase. Failures are per-container and never abort the run.
func classify(ctx context.Context, resolver DigestResolver, targets []*target, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	semaphore := make(chan struct{}, concurrency)

	var group sync.WaitGroup

	for _, t := range targets {
		group.Add(1)

		semaphore <- struct{}{}

		go func(t *target) {
			defer group.Done()
			defer func() { <-semaphore }()

			classifyOne(ctx, resolver, t)
		}(t)
	}

	group.Wait()
}

// classifyOne compares one container's local digest with the registry.
//
// An absent local digest or an unresolvable remote digest means no comparison
// is possible; the container is skipped, never treated as updatable.
func classifyOne(ctx context.Context, resolver DigestResolver, t *target) {
	clog := logrus.WithFields(logrus.Fields{
		"container": t.container.Name(),
		"image":     t.container.ImageName(),
	})

	localDigest := t.container.LocalDigest()
	if localDigest == "" {
		clog.Info("No local digest recorded, skipping")
		t.status.Skip(errNoLocalDigest)

		return
	}

	registryAuth, err := registry.EncodedAuth(t.container.ImageName())
	if err != nil {
		clog.WithError(err).Debug("Failed to load registry credentials, using anonymous access")

		registryAuth = ""
	}

	remoteDigest, err := resolver.Resolve(
		ctx,
		t.container.ImageName(),
		containerPlatform(t.container),
		registryAuth,
	)
	if err != nil {
		clog.WithError(err).Info("Could not resolve remote digest, skipping")
		t.status.Skip(err)

		return
	}

	t.status.SetRemoteDigest(remoteDigest.Canonical)

	if remoteDigest.Matches(localDigest) {
		clog.Debug("Image is up to date")
		t.status.SetOutcome(session.OutcomeUpToDate)

		return
	}

	clog.WithFields(logrus.Fields{
		"local":  localDigest,
		"remote": remoteDigest.Canonical,
	}).Info("Update available")
	t.status.SetOutcome(session.OutcomeUpdateAvailable)
}

// containerPlatform extracts the container's platform for manifest list
// selection; a zero platform resolves against the list digest itself.
func containerPlatform(container types.Container) ocispec.Platform {
	if source, ok := container.(interface{ Platform() *ocispec.Platform }); ok {
		if platform := source.Platform(); platform != nil {
			return *platform
		}
	}

	return ocispec.Platform{}
}
