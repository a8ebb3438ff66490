package geo

import (
	"math"
)

// Point is a geographical coordinate in floating point degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Ring is one ordered, not necessarily closed, boundary ring of a named area.
type Ring []Point

// Box is an axis-aligned bounding box over latitude/longitude.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the point falls inside the box. It is an O(1)
// pre-filter for ContainsPoint and never rejects a point the exact test
// would accept.
func (b Box) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

// BoundingBox computes the bounding box of the given rings. It returns
// false only when the rings contain no vertices at all.
func BoundingBox(rings ...Ring) (Box, bool) {
	box := Box{
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
		MinLon: math.Inf(1),
		MaxLon: math.Inf(-1),
	}

	found := false
	for _, ring := range rings {
		for _, p := range ring {
			found = true
			box.MinLat = math.Min(box.MinLat, p.Latitude)
			box.MaxLat = math.Max(box.MaxLat, p.Latitude)
			box.MinLon = math.Min(box.MinLon, p.Longitude)
			box.MaxLon = math.Max(box.MaxLon, p.Longitude)
		}
	}

	if !found {
		return Box{}, false
	}
	return box, true
}

// ContainsPoint reports whether the point lies inside the ring using the
// ray-casting algorithm: a horizontal ray extended east from the point
// crosses the boundary an odd number of times iff the point is inside.
//
// The test runs in a planar approximation of latitude/longitude and is exact
// for simple polygons over a bounded regional extent. It is not valid across
// the antimeridian or near the poles. Rings with fewer than 3 vertices never
// contain any point.
func ContainsPoint(p Point, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := ring[i].Latitude, ring[i].Longitude
		yj, xj := ring[j].Latitude, ring[j].Longitude

		if (yi > p.Latitude) != (yj > p.Latitude) &&
			p.Longitude < (xj-xi)*(p.Latitude-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ContainsPointAny reports whether the point lies inside any of the rings.
// Rings are tested independently; there is no outer/hole pairing.
func ContainsPointAny(p Point, rings []Ring) bool {
	for _, ring := range rings {
		if ContainsPoint(p, ring) {
			return true
		}
	}
	return false
}

// Simplify reduces the ring using Douglas-Peucker simplification: the vertex
// with the maximum perpendicular distance from the chord between the first
// and last vertex is kept if it deviates more than tolerance, and both halves
// are simplified recursively; otherwise the interior collapses to the two
// endpoints. The first and last vertex of the input are always preserved.
//
// Distances are measured in the same planar degrees approximation as
// ContainsPoint.
func Simplify(ring Ring, tolerance float64) Ring {
	if len(ring) < 3 {
		out := make(Ring, len(ring))
		copy(out, ring)
		return out
	}

	maxDist := 0.0
	index := 0
	first, last := ring[0], ring[len(ring)-1]

	for i := 1; i < len(ring)-1; i++ {
		d := perpendicularDistance(ring[i], first, last)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= tolerance {
		return Ring{first, last}
	}

	left := Simplify(ring[:index+1], tolerance)
	right := Simplify(ring[index:], tolerance)

	// Drop the shared pivot vertex from the left half.
	out := make(Ring, 0, len(left)+len(right)-1)
	out = append(out, left[:len(left)-1]...)
	out = append(out, right...)
	return out
}

// perpendicularDistance computes the planar distance from p to the line
// through a and b, with longitude as x and latitude as y.
func perpendicularDistance(p, a, b Point) float64 {
	dx := b.Longitude - a.Longitude
	dy := b.Latitude - a.Latitude

	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(p.Longitude-a.Longitude, p.Latitude-a.Latitude)
	}

	area := math.Abs(dx*(a.Latitude-p.Latitude) - (a.Longitude-p.Longitude)*dy)
	return area / length
}
