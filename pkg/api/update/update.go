package update

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/pkg/types"
)

// TriggerFunc starts a run and returns its report. A trigger rejected because
// a run is already in flight returns the runner's busy sentinel.
type TriggerFunc func(ctx context.Context) (types.Report, error)

// Handler triggers update runs via HTTP.
type Handler struct {
	trigger TriggerFunc
	busy    error
	Path    string
}

// New creates a new Handler instance.
//
// Parameters:
//   - trigger: Function starting a run.
//   - busy: Sentinel the trigger returns when a run is already in flight.
//
// Returns:
//   - *Handler: Initialized handler serving /v1/update.
func New(trigger TriggerFunc, busy error) *Handler {
	return &Handler{
		trigger: trigger,
		busy:    busy,
		Path:    "/v1/update",
	}
}

// Handle processes HTTP update requests by triggering a run.
//
// A trigger that arrives while a run is in flight is answered with HTTP 429
// (the runner's on-busy policy still decides whether a follow-up run is
// queued). A completed run returns HTTP 200 with the summary counts.
func (handle *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Info("Received HTTP API update request")

	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		logrus.WithError(err).Debug("Failed to read request body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)

		return
	}

	startTime := time.Now()

	report, err := handle.trigger(r.Context())
	if err != nil {
		if errors.Is(err, handle.busy) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "another run is already in progress",
				"api_version": "v1",
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
			}, map[string]string{"Retry-After": "30"})

			return
		}

		logrus.WithError(err).Error("HTTP API triggered run failed")
		http.Error(w, "run failed", http.StatusInternalServerError)

		return
	}

	duration := time.Since(startTime)

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]any{
			"scanned": len(report.Results()),
			"updated": len(report.Updated()),
			"stale":   len(report.Stale()),
			"skipped": len(report.Skipped()),
			"failed":  len(report.Failed()),
		},
		"timing": map[string]any{
			"duration_ms": duration.Milliseconds(),
			"duration":    duration.String(),
		},
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"api_version": "v1",
	}, nil)
}

// writeJSON encodes the payload before touching the response so an encoding
// failure can still produce a clean 500.
func writeJSON(w http.ResponseWriter, status int, payload map[string]any, headers map[string]string) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	for key, value := range headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(status)

	if _, err := w.Write(buf.Bytes()); err != nil {
		logrus.WithError(err).Error("Failed to write response")
	}
}
