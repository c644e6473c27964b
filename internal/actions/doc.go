// Package actions orchestrates Watchless runs: discovering containers,
// classifying each one against its registry digest, applying updates
// serially, and cleaning up superseded images.
package actions
