// Package metrics serves the Prometheus metrics registry over the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler is an HTTP handler for serving metric data.
type Handler struct {
	Path   string
	Handle http.HandlerFunc
}

// New creates a metrics handler exposing the given gatherer in Prometheus
// text format. A nil gatherer falls back to the default registry.
func New(gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})

	return &Handler{
		Path:   "/v1/metrics",
		Handle: handler.ServeHTTP,
	}
}
