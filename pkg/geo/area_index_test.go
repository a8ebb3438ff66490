package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmark/geotrack-agent/pkg/file"
)

const boundaryFixture = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"name": "Riverside"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"name": "Twin Hills"},
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [
					[[[20, 20], [25, 20], [25, 25], [20, 25], [20, 20]]],
					[[[30, 30], [35, 30], [35, 35], [30, 35], [30, 30]]]
				]
			}
		},
		{
			"type": "Feature",
			"properties": {"name": "Unsupported"},
			"geometry": {"type": "Point", "coordinates": [1, 1]}
		}
	]
}`

func writeBoundaryFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boundaries.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadAreaIndex(t *testing.T) {
	path := writeBoundaryFixture(t, boundaryFixture)

	index, err := LoadAreaIndex(path, 0, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	// the Point feature is skipped
	assert.Len(t, index.Areas(), 2)
}

func TestAreaIndex_Locate(t *testing.T) {
	path := writeBoundaryFixture(t, boundaryFixture)

	index, err := LoadAreaIndex(path, 0, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	name, ok := index.Locate(Point{Latitude: 5, Longitude: 5})
	assert.True(t, ok)
	assert.Equal(t, "Riverside", name)

	// either ring of the multi-polygon matches
	name, ok = index.Locate(Point{Latitude: 22, Longitude: 22})
	assert.True(t, ok)
	assert.Equal(t, "Twin Hills", name)

	name, ok = index.Locate(Point{Latitude: 32, Longitude: 32})
	assert.True(t, ok)
	assert.Equal(t, "Twin Hills", name)

	_, ok = index.Locate(Point{Latitude: 50, Longitude: 50})
	assert.False(t, ok)
}

func TestLoadAreaIndex_LonFirstCoordinates(t *testing.T) {
	// a rectangle wide in longitude, narrow in latitude
	fixture := `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"name": "Strip"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[100, 0], [110, 0], [110, 2], [100, 2], [100, 0]]]
			}
		}]
	}`
	path := writeBoundaryFixture(t, fixture)

	index, err := LoadAreaIndex(path, 0, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	_, ok := index.Locate(Point{Latitude: 1, Longitude: 105})
	assert.True(t, ok)

	// swapped axes must not match
	_, ok = index.Locate(Point{Latitude: 105, Longitude: 1})
	assert.False(t, ok)
}

func TestLoadAreaIndex_MissingFile(t *testing.T) {
	_, err := LoadAreaIndex(filepath.Join(t.TempDir(), "absent.json"), 0, file.NewFileService(), zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadAreaIndex_SimplifiedCopies(t *testing.T) {
	fixture := `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"name": "Wiggly"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0, 0], [1, 0.001], [2, -0.001], [3, 0], [3, 3], [0, 3], [0, 0]]]
			}
		}]
	}`
	path := writeBoundaryFixture(t, fixture)

	index, err := LoadAreaIndex(path, 0.01, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, index.Areas(), 1)

	area := index.Areas()[0]
	require.Len(t, area.Simplified, 1)
	assert.Less(t, len(area.Simplified[0]), len(area.Rings[0]))

	// endpoints survive simplification
	assert.Equal(t, area.Rings[0][0], area.Simplified[0][0])
	assert.Equal(t, area.Rings[0][len(area.Rings[0])-1],
		area.Simplified[0][len(area.Simplified[0])-1])
}
