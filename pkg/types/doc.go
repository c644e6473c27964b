// Package types defines the shared data model and interfaces used across
// Watchless: container and engine client abstractions, configuration,
// snapshots, run reports, and notification contracts.
package types
