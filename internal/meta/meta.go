// Package meta carries build-time metadata.
package meta

// Version is the Watchless version, set at build time via ldflags.
var Version = "v0.0.0-unknown"
