// Package cmd contains the command-line interface definitions and execution
// logic for Watchless. It provides the root command that wires the engine
// client, registry digest resolver, runner, notifications, metrics, and
// scheduler together from flags and environment variables.
package cmd
