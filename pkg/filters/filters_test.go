package filters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"

	"github.com/watchless/watchless/pkg/filters"
	"github.com/watchless/watchless/pkg/types"
)

// stubContainer is the minimal types.Container needed for filter decisions.
type stubContainer struct {
	name  string
	image string
}

func (s stubContainer) ID() types.ContainerID                                { return "id" }
func (s stubContainer) Name() string                                         { return s.name }
func (s stubContainer) ImageName() string                                    { return s.image }
func (s stubContainer) ImageID() types.ImageID                               { return "sha256:img" }
func (s stubContainer) LocalDigest() string                                  { return "" }
func (s stubContainer) IsRunning() bool                                      { return true }
func (s stubContainer) ContainerInfo() *dockerContainerType.InspectResponse  { return nil }
func (s stubContainer) ImageInfo() *dockerImageType.InspectResponse          { return nil }

func TestNoFilter(t *testing.T) {
	assert.True(t, filters.NoFilter(stubContainer{name: "app"}))
}

func TestExcludeNamesMatchesExactly(t *testing.T) {
	filter := filters.ExcludeNames([]string{"db"}, filters.NoFilter)

	assert.False(t, filter(stubContainer{name: "db"}))
	assert.True(t, filter(stubContainer{name: "db-replica"}))
	assert.True(t, filter(stubContainer{name: "app"}))
}

func TestExcludeNamesIgnoresLeadingSlash(t *testing.T) {
	filter := filters.ExcludeNames([]string{"/db"}, filters.NoFilter)

	assert.False(t, filter(stubContainer{name: "db"}))
}

func TestExcludeImagesMatchesSubstring(t *testing.T) {
	filter := filters.ExcludeImages([]string{"postgres"}, filters.NoFilter)

	assert.False(t, filter(stubContainer{name: "db", image: "postgres:16"}))
	assert.False(t, filter(stubContainer{name: "db2", image: "registry.example.com/postgres-ha:1"}))
	assert.True(t, filter(stubContainer{name: "cache", image: "redis:7"}))
}

func TestExcludeImagesIgnoresEmptySubstrings(t *testing.T) {
	filter := filters.ExcludeImages([]string{""}, filters.NoFilter)

	assert.True(t, filter(stubContainer{name: "app", image: "app:latest"}))
}

func TestBuildFilterCombinesExclusions(t *testing.T) {
	filter, desc := filters.BuildFilter([]string{"db"}, []string{"redis"})

	assert.False(t, filter(stubContainer{name: "db", image: "postgres:16"}))
	assert.False(t, filter(stubContainer{name: "cache", image: "redis:7"}))
	assert.True(t, filter(stubContainer{name: "app", image: "app:latest"}))
	assert.Contains(t, desc, "db")
	assert.Contains(t, desc, "redis")
}

func TestBuildFilterWithoutExclusions(t *testing.T) {
	filter, desc := filters.BuildFilter(nil, nil)

	assert.True(t, filter(stubContainer{name: "app", image: "app:latest"}))
	assert.Contains(t, desc, "Checking all running containers")
}
