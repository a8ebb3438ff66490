package geo

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/pkg/file"
)

// Area is one named polygonal region loaded from the boundary file.
type Area struct {
	Name       string
	Rings      []Ring
	Simplified []Ring // reduced copies for rendering and coarse matching
	bounds     Box
}

// AreaIndex answers which named area, if any, contains a coordinate.
// Boundaries are read-only reference data; the index never mutates them
// after construction.
type AreaIndex struct {
	areas  []Area
	logger zerolog.Logger
}

// LoadAreaIndex reads a GeoJSON feature collection from the given path and
// builds the lookup index. Simplified boundary copies are derived once at
// load time using the given tolerance (in degrees); a tolerance of zero
// keeps only collinear-vertex reduction.
func LoadAreaIndex(path string, tolerance float64, fileClient file.FileOperations, logger zerolog.Logger) (*AreaIndex, error) {
	var collection FeatureCollection
	if err := fileClient.ReadJsonFile(path, &collection); err != nil {
		return nil, fmt.Errorf("failed to read boundary file %s: %w", path, err)
	}

	index := &AreaIndex{logger: logger}
	for _, feature := range collection.Features {
		rings, err := feature.Geometry.Rings()
		if err != nil {
			logger.Warn().
				Err(err).
				Str("feature", feature.Name()).
				Msg("Skipping boundary feature with unusable geometry")
			continue
		}

		bounds, ok := BoundingBox(rings...)
		if !ok {
			logger.Warn().
				Str("feature", feature.Name()).
				Msg("Skipping boundary feature with no vertices")
			continue
		}

		simplified := make([]Ring, 0, len(rings))
		for _, ring := range rings {
			simplified = append(simplified, Simplify(ring, tolerance))
		}

		index.areas = append(index.areas, Area{
			Name:       feature.Name(),
			Rings:      rings,
			Simplified: simplified,
			bounds:     bounds,
		})
	}

	logger.Info().
		Int("areas", len(index.areas)).
		Str("path", path).
		Msg("Boundary index loaded")
	return index, nil
}

// Locate returns the name of the first area containing the point. The
// bounding box pre-filter rejects distant candidates before the exact
// ray-casting test runs.
func (ai *AreaIndex) Locate(p Point) (string, bool) {
	for _, area := range ai.areas {
		if !area.bounds.Contains(p) {
			continue
		}
		if ContainsPointAny(p, area.Rings) {
			return area.Name, true
		}
	}
	return "", false
}

// Areas returns the loaded areas in input order.
func (ai *AreaIndex) Areas() []Area {
	return ai.areas
}
