package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osmpatch/internal/geom"
	"github.com/wegman-software/osmpatch/internal/osmdoc"
	"github.com/wegman-software/osmpatch/internal/profile"
)

const stationsXML = `<osm version="0.6" generator="test">
  <node id="1" lat="45.76" lon="4.86" version="4">
    <tag k="railway" v="station"/>
    <tag k="operator" v="SNCF Réseau"/>
    <tag k="uic_ref" v="87723197"/>
    <tag k="name" v="Lyon Part-Dieu"/>
  </node>
  <node id="2" lat="45.0" lon="4.0">
    <tag k="railway" v="halt"/>
    <tag k="uic_ref" v="87000002"/>
  </node>
  <node id="3" lat="45.0" lon="4.0">
    <tag k="railway" v="station"/>
    <tag k="operator" v="RATP"/>
  </node>
  <node id="4" lat="45.0" lon="4.0">
    <tag k="railway" v="level_crossing"/>
  </node>
  <node id="5" lat="45.0" lon="4.0">
    <tag k="railway" v="station"/>
    <tag k="operator" v="sncf"/>
  </node>
  <node id="20" lat="0" lon="0"/>
  <node id="21" lat="0" lon="1"/>
  <node id="22" lat="1" lon="1"/>
  <way id="100" version="2">
    <nd ref="20"/><nd ref="21"/><nd ref="22"/><nd ref="20"/>
    <tag k="railway" v="station"/>
    <tag k="uic_ref" v="87000100"/>
  </way>
  <way id="101">
    <nd ref="20"/><nd ref="999"/><nd ref="21"/>
    <tag k="railway" v="halt"/>
  </way>
  <way id="102">
    <nd ref="998"/><nd ref="997"/>
    <tag k="railway" v="station"/>
  </way>
  <way id="103">
    <nd ref="20"/><nd ref="22"/><nd ref="21"/><nd ref="22"/><nd ref="20"/>
    <tag k="railway" v="station"/>
  </way>
</osm>`

func loadDoc(t *testing.T) *osmdoc.Document {
	t.Helper()
	doc, err := osmdoc.Decode(strings.NewReader(stationsXML))
	require.NoError(t, err)
	return doc
}

func byRef(records []*Record) map[osmdoc.Ref]*Record {
	m := make(map[osmdoc.Ref]*Record, len(records))
	for _, r := range records {
		m[r.Ref] = r
	}
	return m
}

func TestRunFiltersAndNormalizes(t *testing.T) {
	p := profile.Default()
	p.ExcludeIDs = []string{"node/5"}

	e, err := New(p)
	require.NoError(t, err)

	records, stats := e.Run(loadDoc(t))
	got := byRef(records)

	assert.Len(t, records, 4)
	assert.Contains(t, got, osmdoc.NodeRef(1), "operator matched case-insensitively")
	assert.Contains(t, got, osmdoc.NodeRef(2), "no operator passes")
	assert.NotContains(t, got, osmdoc.NodeRef(3), "foreign operator")
	assert.NotContains(t, got, osmdoc.NodeRef(4), "wrong category")
	assert.NotContains(t, got, osmdoc.NodeRef(5), "excluded id")
	assert.Contains(t, got, osmdoc.WayRef(100))
	assert.Contains(t, got, osmdoc.WayRef(101))
	assert.NotContains(t, got, osmdoc.WayRef(102), "no resolvable vertex")
	assert.NotContains(t, got, osmdoc.WayRef(103), "self-intersecting ring")

	assert.Equal(t, 12, stats.Seen)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 4, stats.WrongCategory)
	assert.Equal(t, 1, stats.WrongOperator)
	assert.Equal(t, 2, stats.NoGeometry)
	assert.Equal(t, 1, stats.NoGeometryByWhy[geom.ReasonEmpty])
	assert.Equal(t, 1, stats.NoGeometryByWhy[geom.ReasonSelfIntersecting])
	assert.Equal(t, 3, stats.UnresolvedRefs)
	assert.Equal(t, 4, stats.Kept)

	lyon := got[osmdoc.NodeRef(1)]
	assert.Equal(t, "87723197", lyon.JoinKey)
	assert.True(t, lyon.HasKey)
	assert.Equal(t, 4, lyon.Version)
	assert.Equal(t, "Lyon Part-Dieu", lyon.Tags["name"])
	assert.Equal(t, geom.Point, lyon.Geometry.Kind)
	assert.NotNil(t, lyon.Node)

	ring := got[osmdoc.WayRef(100)]
	assert.Equal(t, geom.Polygon, ring.Geometry.Kind)
	assert.InDelta(t, 2.0/3.0, ring.Geometry.Point[0], 1e-9)
	assert.NotNil(t, ring.Way)

	partial := got[osmdoc.WayRef(101)]
	assert.Equal(t, geom.Line, partial.Geometry.Kind)
	assert.Equal(t, 1, partial.Unresolved)
	assert.False(t, partial.HasKey)
	assert.Len(t, partial.Way.Nodes, 3, "way refs are untouched")
}

func TestExclusionBypassesOtherFilters(t *testing.T) {
	p := profile.Default()
	p.ExcludeIDs = []string{"1", "100"}

	e, err := New(p)
	require.NoError(t, err)

	records, stats := e.Run(loadDoc(t))
	got := byRef(records)

	assert.NotContains(t, got, osmdoc.NodeRef(1))
	assert.NotContains(t, got, osmdoc.WayRef(100))
	assert.Equal(t, 2, stats.Excluded)
}

func TestNoOperatorFilter(t *testing.T) {
	p := profile.Default()
	p.Operator.Contains = nil

	e, err := New(p)
	require.NoError(t, err)

	records, _ := e.Run(loadDoc(t))
	assert.Contains(t, byRef(records), osmdoc.NodeRef(3))
}

func TestCollapsedWayIsKept(t *testing.T) {
	doc, err := osmdoc.Decode(strings.NewReader(`<osm>
  <node id="20" lat="48.85" lon="2.35"/>
  <way id="300">
    <nd ref="20"/><nd ref="999"/><nd ref="20"/>
    <tag k="railway" v="station"/><tag k="uic_ref" v="87000300"/>
  </way>
</osm>`))
	require.NoError(t, err)

	e, err := New(profile.Default())
	require.NoError(t, err)
	records, stats := e.Run(doc)

	require.Len(t, records, 1)
	assert.Zero(t, stats.NoGeometry)
	assert.Equal(t, geom.Line, records[0].Geometry.Kind)
	assert.Equal(t, 2.35, records[0].Geometry.Point[0])
	assert.Equal(t, 48.85, records[0].Geometry.Point[1])
	assert.Equal(t, 1, records[0].Unresolved)
}
