// Package manifest constructs registry manifest URLs for digest lookups.
package manifest

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/distribution/reference"
	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/pkg/registry/helpers"
)

// Errors for manifest URL construction.
var (
	// errMissingTag indicates the image reference carries no tag to look up.
	errMissingTag = errors.New("image reference has no tag")
	// errFailedParseImageName indicates the image reference could not be parsed.
	errFailedParseImageName = errors.New("failed to parse image name")
)

// URL constructs the manifest endpoint URL for an image reference.
//
// The reference is normalized first, so bare names like "nginx:latest" map to
// Docker Hub's library repository.
//
// Parameters:
//   - imageRef: Image reference including a tag (e.g., "nginx:latest").
//
// Returns:
//   - string: Manifest URL (e.g., "https://index.docker.io/v2/library/nginx/manifests/latest").
//   - error: Non-nil if the reference cannot be parsed or lacks a tag.
func URL(imageRef string) (string, error) {
	normalizedRef, err := reference.ParseDockerRef(imageRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errFailedParseImageName, err)
	}

	taggedRef, isTagged := normalizedRef.(reference.NamedTagged)
	if !isTagged {
		return "", fmt.Errorf("%w: %s", errMissingTag, normalizedRef.String())
	}

	host, err := helpers.RegistryHost(taggedRef.Name())
	if err != nil {
		return "", err
	}

	manifestURL := url.URL{
		Scheme: "https",
		Host:   host,
		Path:   fmt.Sprintf("/v2/%s/manifests/%s", reference.Path(taggedRef), taggedRef.Tag()),
	}

	logrus.WithFields(logrus.Fields{
		"image": imageRef,
		"url":   manifestURL.String(),
	}).Debug("Built manifest URL")

	return manifestURL.String(), nil
}
