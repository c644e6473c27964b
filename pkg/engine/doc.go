// Package engine wraps the Docker API for Watchless: container discovery and
// inspection, local digest reading, config snapshot capture, the recreation
// state machine, and image removal. All engine mutations in a run flow
// through this package, serially.
package engine
