package types

import "strings"

// shortIDLength is the number of characters used for abbreviated IDs in logs.
const shortIDLength = 12

// ContainerID is the unique identifier of a container as reported by the engine.
type ContainerID string

// ShortID returns the 12-character short form of the container ID, matching
// the format the Docker CLI prints.
//
// Returns:
//   - string: Abbreviated ID, or the full ID if it is already short.
func (id ContainerID) ShortID() string {
	return shortID(string(id))
}

// ImageID is the unique identifier of an image as reported by the engine,
// including the digest prefix (e.g., "sha256:...").
type ImageID string

// ShortID returns the short form of the image ID with any digest prefix removed.
//
// Returns:
//   - string: Abbreviated ID, or the full ID if it is already short.
func (id ImageID) ShortID() string {
	out := string(id)
	if _, hash, found := strings.Cut(out, ":"); found {
		out = hash
	}

	return shortID(out)
}

func shortID(s string) string {
	if len(s) > shortIDLength {
		return s[:shortIDLength]
	}

	return s
}
