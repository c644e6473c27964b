// Package api implements the optional HTTP API: a bearer-token-protected
// server exposing a run trigger endpoint and the Prometheus metrics registry.
//
// The server only starts when at least one endpoint is enabled, and shuts
// down gracefully when the process context is cancelled.
package api
