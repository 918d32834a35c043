package geom

import "github.com/paulmach/orb"

// selfIntersects reports whether any two edges of a closed ring cross or touch
// outside of the vertex they share. Consecutive duplicate vertices are ignored.
func selfIntersects(ring orb.Ring) bool {
	pts := make([]orb.Point, 0, len(ring))
	for i, p := range ring {
		if i > 0 && p.Equal(pts[len(pts)-1]) {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) < 4 {
		return false
	}

	n := len(pts) - 1 // edge i runs from pts[i] to pts[i+1]
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[i+1]
		for j := i + 1; j < n; j++ {
			c, d := pts[j], pts[j+1]

			switch {
			case j == i+1:
				if spike(a, b, d) {
					return true
				}
			case i == 0 && j == n-1:
				// closing edge shares pts[0] with the first edge
				if spike(b, a, c) {
					return true
				}
			default:
				if segmentsIntersect(a, b, c, d) {
					return true
				}
			}
		}
	}
	return false
}

// spike reports whether the path a -> b -> c doubles back on itself.
func spike(a, b, c orb.Point) bool {
	if orient(a, b, c) != 0 {
		return false
	}
	return (a[0]-b[0])*(c[0]-b[0])+(a[1]-b[1])*(c[1]-b[1]) > 0
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := orient(p3, p4, p1)
	d2 := orient(p3, p4, p2)
	d3 := orient(p1, p2, p3)
	d4 := orient(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	return (d1 == 0 && onSegment(p3, p4, p1)) ||
		(d2 == 0 && onSegment(p3, p4, p2)) ||
		(d3 == 0 && onSegment(p1, p2, p3)) ||
		(d4 == 0 && onSegment(p1, p2, p4))
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment assumes p is collinear with a-b.
func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}
