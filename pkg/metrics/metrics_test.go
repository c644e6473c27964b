package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"

	"github.com/watchless/watchless/pkg/metrics"
	"github.com/watchless/watchless/pkg/session"
	"github.com/watchless/watchless/pkg/types"
)

type stubContainer struct {
	name string
}

func (s stubContainer) ID() types.ContainerID   { return types.ContainerID("id-" + s.name) }
func (s stubContainer) Name() string            { return s.name }
func (s stubContainer) ImageName() string       { return s.name + ":latest" }
func (s stubContainer) ImageID() types.ImageID  { return types.ImageID("sha256:" + s.name) }
func (s stubContainer) LocalDigest() string     { return "sha256:local" }
func (s stubContainer) IsRunning() bool         { return true }
func (s stubContainer) ContainerInfo() *dockerContainerType.InspectResponse {
	return nil
}
func (s stubContainer) ImageInfo() *dockerImageType.InspectResponse { return nil }

func testReport() types.Report {
	progress := session.NewProgress()

	updated := session.NewContainerStatus(stubContainer{name: "app"})
	updated.MarkUpdated("new-id")
	progress.Add(updated)

	fresh := session.NewContainerStatus(stubContainer{name: "db"})
	fresh.SetOutcome(session.OutcomeUpToDate)
	progress.Add(fresh)

	failed := session.NewContainerStatus(stubContainer{name: "cache"})
	failed.Fail(errors.New("pull failed"))
	progress.Add(failed)

	return progress.Report()
}

func TestRegisterRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithRegistry(registry)
	require.NoError(t, err)

	m.RegisterRun(testReport())
	m.RegisterRun(testReport())

	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		values[family.GetName()] = family.GetMetric()[0].GetGauge().GetValue() +
			family.GetMetric()[0].GetCounter().GetValue()
	}

	assert.InDelta(t, 3, values["watchless_containers_scanned"], 0)
	assert.InDelta(t, 1, values["watchless_containers_updated"], 0)
	assert.InDelta(t, 1, values["watchless_containers_failed"], 0)
	assert.InDelta(t, 2, values["watchless_runs_total"], 0)
}

func TestRegisterDroppedRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithRegistry(registry)
	require.NoError(t, err)

	m.RegisterDroppedRun()

	counter, err := registry.Gather()
	require.NoError(t, err)

	found := false

	for _, family := range counter {
		if family.GetName() == "watchless_runs_dropped_total" {
			found = true

			assert.InDelta(t, 1, family.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}

	assert.True(t, found)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := metrics.NewWithRegistry(registry)
	require.NoError(t, err)

	_, err = metrics.NewWithRegistry(registry)
	require.Error(t, err)
}
