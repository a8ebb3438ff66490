package geo

import (
	"encoding/json"
	"fmt"
)

// FeatureCollection mirrors the GeoJSON structure of the boundary input
// file. Only Polygon and MultiPolygon geometries are consumed.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single named boundary with its geometry.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry holds the raw coordinates so that Polygon and MultiPolygon
// nesting levels can be decoded lazily.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Name returns the feature's name property, or an empty string when absent.
func (f Feature) Name() string {
	if name, ok := f.Properties["name"].(string); ok {
		return name
	}
	return ""
}

// Rings decodes the geometry coordinates into boundary rings. GeoJSON
// positions are longitude-first; ring points come out latitude/longitude.
func (g Geometry) Rings() ([]Ring, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to decode Polygon coordinates: %w", err)
		}
		return ringsFromPositions(coords), nil

	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to decode MultiPolygon coordinates: %w", err)
		}
		var rings []Ring
		for _, polygon := range coords {
			rings = append(rings, ringsFromPositions(polygon)...)
		}
		return rings, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

func ringsFromPositions(positions [][][]float64) []Ring {
	rings := make([]Ring, 0, len(positions))
	for _, ringPositions := range positions {
		ring := make(Ring, 0, len(ringPositions))
		for _, pos := range ringPositions {
			if len(pos) < 2 {
				continue
			}
			ring = append(ring, Point{Latitude: pos[1], Longitude: pos[0]})
		}
		rings = append(rings, ring)
	}
	return rings
}
