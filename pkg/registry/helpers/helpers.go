// Package helpers provides small utilities shared by the registry packages:
// registry host extraction and digest normalization.
package helpers

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// Docker Hub domains; the default registry needs its canonical host for API calls.
const (
	DefaultRegistryDomain = "docker.io"
	DefaultRegistryHost   = "index.docker.io"
)

// RegistryHost extracts the registry host from an image reference, mapping
// Docker Hub's default domain to its canonical API host.
//
// Parameters:
//   - imageRef: Image reference (e.g., "nginx:latest", "ghcr.io/foo/bar:v1").
//
// Returns:
//   - string: Registry host to issue API calls against.
//   - error: Non-nil if the reference cannot be parsed.
func RegistryHost(imageRef string) (string, error) {
	normalizedRef, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to parse image reference: %w", err)
	}

	host := reference.Domain(normalizedRef)
	if host == DefaultRegistryDomain {
		host = DefaultRegistryHost
	}

	return host, nil
}

// NormalizeDigest strips the algorithm prefix from a digest so that values
// from different sources (headers, manifest bodies, engine metadata) compare
// consistently.
//
// Parameters:
//   - digest: Digest string, with or without a "sha256:" prefix.
//
// Returns:
//   - string: Raw hash value.
func NormalizeDigest(digest string) string {
	return strings.TrimPrefix(digest, "sha256:")
}
