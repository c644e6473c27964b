// Package update provides the HTTP API endpoint that triggers a run on
// request, subject to the runner's single-run-at-a-time guarantee.
package update
