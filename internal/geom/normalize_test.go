package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromNode(t *testing.T) {
	r := FromNode(2.3522, 48.8566)
	require.True(t, r.OK())
	assert.Equal(t, Point, r.Kind)
	assert.Equal(t, orb.Point{2.3522, 48.8566}, r.Point)

	r = FromNode(math.NaN(), 48.8566)
	assert.False(t, r.OK())
	assert.Equal(t, ReasonNonFinite, r.Reason)
}

func TestFromVertices(t *testing.T) {
	tests := []struct {
		name       string
		coords     []orb.Point
		wantKind   Kind
		wantPoint  orb.Point
		wantReason Reason
	}{
		{
			name:     "closed triangle",
			coords:   []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
			wantKind: Polygon,
			// centroid of triangle (0,0),(1,0),(1,1)
			wantPoint: orb.Point{2.0 / 3.0, 1.0 / 3.0},
		},
		{
			name:      "closed square",
			coords:    []orb.Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}},
			wantKind:  Polygon,
			wantPoint: orb.Point{1, 1},
		},
		{
			name:      "clockwise square",
			coords:    []orb.Point{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}},
			wantKind:  Polygon,
			wantPoint: orb.Point{1, 1},
		},
		{
			name:      "open line",
			coords:    []orb.Point{{0, 0}, {2, 0}},
			wantKind:  Line,
			wantPoint: orb.Point{1, 0},
		},
		{
			name:       "closed sequence of three cannot form a ring",
			coords:     []orb.Point{{0, 0}, {4, 0}, {0, 0}},
			wantKind:   None,
			wantReason: ReasonTooFewPoints,
		},
		{
			name:       "empty",
			coords:     nil,
			wantKind:   None,
			wantReason: ReasonEmpty,
		},
		{
			name:       "single vertex",
			coords:     []orb.Point{{1, 1}},
			wantKind:   None,
			wantReason: ReasonTooFewPoints,
		},
		{
			name:      "zero length line keeps its position",
			coords:    []orb.Point{{2.35, 48.85}, {2.35, 48.85}},
			wantKind:  Line,
			wantPoint: orb.Point{2.35, 48.85},
		},
		{
			name:      "closed way collapsed by a missing vertex",
			coords:    []orb.Point{{3, 4}, {3, 4}},
			wantKind:  Line,
			wantPoint: orb.Point{3, 4},
		},
		{
			name:       "bowtie ring",
			coords:     []orb.Point{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}},
			wantKind:   None,
			wantReason: ReasonSelfIntersecting,
		},
		{
			name:       "collinear ring",
			coords:     []orb.Point{{0, 0}, {1, 0}, {2, 0}, {0, 0}},
			wantKind:   None,
			wantReason: ReasonSelfIntersecting,
		},
		{
			name:       "non finite vertex",
			coords:     []orb.Point{{0, 0}, {math.Inf(1), 0}},
			wantKind:   None,
			wantReason: ReasonNonFinite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromVertices(tt.coords)
			require.Equal(t, tt.wantKind, r.Kind, "reason=%s", r.Reason)
			if tt.wantKind == None {
				assert.Equal(t, tt.wantReason, r.Reason)
				return
			}
			assert.InDelta(t, tt.wantPoint[0], r.Point[0], 1e-9)
			assert.InDelta(t, tt.wantPoint[1], r.Point[1], 1e-9)
		})
	}
}

func TestSelfIntersectsIgnoresRepeatedVertices(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	assert.False(t, selfIntersects(ring))

	r := FromVertices(ring)
	require.True(t, r.OK())
	assert.InDelta(t, 0.5, r.Point[0], 1e-9)
	assert.InDelta(t, 0.5, r.Point[1], 1e-9)
}
