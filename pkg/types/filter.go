package types

// Filter decides whether a discovered container is eligible for checking.
// Returning false excludes the container before any digest or registry work.
type Filter func(container Container) bool
