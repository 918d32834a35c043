package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Kind identifies which shape a representative point was derived from
type Kind int

const (
	None Kind = iota
	Point
	Line
	Polygon
)

func (k Kind) String() string {
	switch k {
	case Point:
		return "point"
	case Line:
		return "line"
	case Polygon:
		return "polygon"
	default:
		return "none"
	}
}

// Reason explains why no geometry could be derived
type Reason string

const (
	ReasonEmpty            Reason = "empty"
	ReasonTooFewPoints     Reason = "too_few_points"
	ReasonDegenerate       Reason = "degenerate"
	ReasonSelfIntersecting Reason = "self_intersecting"
	ReasonNonFinite        Reason = "non_finite"
)

// Result is the representative point of a shape, or the reason there is none
type Result struct {
	Kind   Kind
	Point  orb.Point
	Reason Reason
}

// OK reports whether a representative point exists
func (r Result) OK() bool {
	return r.Kind != None
}

func none(reason Reason) Result {
	return Result{Kind: None, Reason: reason}
}

// FromNode returns the node coordinate unchanged
func FromNode(lon, lat float64) Result {
	if !finite(lon) || !finite(lat) {
		return none(ReasonNonFinite)
	}
	return Result{Kind: Point, Point: orb.Point{lon, lat}}
}

// FromVertices derives a representative point from a way's resolved vertices.
// A closed sequence of at least 3 vertices is treated as a ring and reduced to
// its area centroid; anything else non-empty is treated as a line and reduced
// to its length-weighted centroid.
func FromVertices(coords []orb.Point) Result {
	if len(coords) == 0 {
		return none(ReasonEmpty)
	}
	for _, c := range coords {
		if !finite(c[0]) || !finite(c[1]) {
			return none(ReasonNonFinite)
		}
	}

	if len(coords) >= 3 && coords[0].Equal(coords[len(coords)-1]) {
		return polygonCentroid(coords)
	}
	return lineCentroid(coords)
}

func polygonCentroid(coords []orb.Point) Result {
	// A valid linear ring needs 4 coordinates including the closing one.
	if len(coords) < 4 {
		return none(ReasonTooFewPoints)
	}

	ring := orb.Ring(coords)
	if selfIntersects(ring) {
		return none(ReasonSelfIntersecting)
	}

	c, area := planar.CentroidArea(orb.Polygon{ring})
	if math.Abs(area) == 0 || !finite(c[0]) || !finite(c[1]) {
		return none(ReasonDegenerate)
	}
	return Result{Kind: Polygon, Point: c}
}

func lineCentroid(coords []orb.Point) Result {
	if len(coords) < 2 {
		return none(ReasonTooFewPoints)
	}

	ls := orb.LineString(coords)
	// Every vertex at one position still locates the entity.
	if planar.Length(ls) == 0 {
		return Result{Kind: Line, Point: coords[0]}
	}

	c, _ := planar.CentroidArea(ls)
	if !finite(c[0]) || !finite(c[1]) {
		return none(ReasonDegenerate)
	}
	return Result{Kind: Line, Point: c}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
