// Package api wires the optional HTTP API endpoints to the runner and the
// metrics registry.
package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/watchless/watchless/internal/actions"
	"github.com/watchless/watchless/pkg/api"
	metricsAPI "github.com/watchless/watchless/pkg/api/metrics"
	"github.com/watchless/watchless/pkg/api/update"
	"github.com/watchless/watchless/pkg/types"
)

// Options selects which endpoints the HTTP API exposes.
type Options struct {
	Host         string
	Port         string
	Token        string
	EnableUpdate bool
	EnableMetric bool
}

// SetupAndStart registers the enabled endpoints and starts the HTTP API
// server in the background.
//
// Parameters:
//   - ctx: Context controlling the server's lifecycle.
//   - opts: Endpoint selection and listen settings.
//   - trigger: Function starting a run, used by the update endpoint.
//
// Returns:
//   - error: Non-nil if the server cannot be configured.
func SetupAndStart(
	ctx context.Context,
	opts Options,
	trigger func(ctx context.Context) (types.Report, error),
) error {
	if !opts.EnableUpdate && !opts.EnableMetric {
		return nil
	}

	httpAPI := api.New(opts.Token, api.Addr(opts.Host, opts.Port))

	if opts.EnableUpdate {
		updateHandler := update.New(trigger, actions.ErrRunInProgress)
		httpAPI.RegisterFunc(updateHandler.Path, updateHandler.Handle)
	}

	if opts.EnableMetric {
		metricsHandler := metricsAPI.New(prometheus.DefaultGatherer)
		httpAPI.RegisterHandler(metricsHandler.Path, metricsHandler.Handle)
	}

	return httpAPI.Start(ctx)
}
