package update

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchless/watchless/pkg/session"
	"github.com/watchless/watchless/pkg/types"
)

var errBusy = errors.New("a run is already in progress")

func TestHandleTriggersRunAndReportsSummary(t *testing.T) {
	triggered := 0
	handler := New(func(_ context.Context) (types.Report, error) {
		triggered++

		return session.NewProgress().Report(), nil
	}, errBusy)

	req := httptest.NewRequest(http.MethodPost, "/v1/update", nil)
	recorder := httptest.NewRecorder()

	handler.Handle(recorder, req)

	assert.Equal(t, 1, triggered)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var response struct {
		Summary    map[string]int `json:"summary"`
		APIVersion string         `json:"api_version"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "v1", response.APIVersion)
	assert.Equal(t, 0, response.Summary["scanned"])
}

func TestHandleBusyRunnerReturnsTooManyRequests(t *testing.T) {
	handler := New(func(_ context.Context) (types.Report, error) {
		return nil, errBusy
	}, errBusy)

	req := httptest.NewRequest(http.MethodPost, "/v1/update", nil)
	recorder := httptest.NewRecorder()

	handler.Handle(recorder, req)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "30", recorder.Header().Get("Retry-After"))
}

func TestHandleRunFailureReturnsServerError(t *testing.T) {
	handler := New(func(_ context.Context) (types.Report, error) {
		return nil, errors.New("engine unreachable")
	}, errBusy)

	req := httptest.NewRequest(http.MethodPost, "/v1/update", nil)
	recorder := httptest.NewRecorder()

	handler.Handle(recorder, req)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
