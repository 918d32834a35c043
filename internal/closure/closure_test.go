package closure

import (
	"strings"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osmpatch/internal/enrich"
	"github.com/wegman-software/osmpatch/internal/extract"
	"github.com/wegman-software/osmpatch/internal/join"
	"github.com/wegman-software/osmpatch/internal/osmdoc"
	"github.com/wegman-software/osmpatch/internal/patch"
	"github.com/wegman-software/osmpatch/internal/profile"
)

const srcXML = `<osm version="0.6" generator="Overpass API">
  <node id="1" lat="1" lon="1"><tag k="railway" v="station"/><tag k="uic_ref" v="A"/><tag k="name" v="Old"/></node>
  <node id="2" lat="2" lon="2"><tag k="railway" v="station"/><tag k="uic_ref" v="B"/><tag k="name" v="Same"/></node>
  <node id="10" lat="0" lon="0"/>
  <node id="11" lat="0" lon="1"/>
  <node id="12" lat="1" lon="1"/>
  <node id="13" lat="5" lon="5"/>
  <way id="100" version="3">
    <nd ref="10"/><nd ref="11"/><nd ref="12"/><nd ref="404"/><nd ref="10"/>
    <tag k="railway" v="station"/><tag k="uic_ref" v="C"/><tag k="name" v="Old Gare"/>
  </way>
  <way id="101">
    <nd ref="12"/><nd ref="13"/>
    <tag k="railway" v="station"/><tag k="uic_ref" v="B"/><tag k="name" v="Same"/>
  </way>
</osm>`

func patched(t *testing.T) (*osmdoc.Document, []*patch.Entity) {
	t.Helper()
	doc, err := osmdoc.Decode(strings.NewReader(srcXML))
	require.NoError(t, err)

	p := profile.Default()
	ex, err := extract.New(p)
	require.NoError(t, err)
	records, _ := ex.Run(doc)

	table := &enrich.Table{Rows: []*enrich.Row{
		{Key: "A", Values: map[string]string{"name": "New"}},
		{Key: "B", Values: map[string]string{"name": "Same"}},
		{Key: "C", Values: map[string]string{"name": "Gare Test"}},
	}}
	joined := join.Join(records, table)

	d, err := patch.NewDiffer(patch.FieldsFromProfile(p))
	require.NoError(t, err)
	entities, _ := d.Apply(joined.Entities)
	patch.Annotate(entities, p.History)
	return doc, entities
}

func TestBuild(t *testing.T) {
	src, entities := patched(t)

	out, stats := Build(src, entities)

	assert.Equal(t, src.Attrs, out.Attrs)
	assert.Equal(t, Stats{Nodes: 1, Ways: 1, Vertices: 3, MissingVertices: 1}, stats)

	var nodeIDs []osm.NodeID
	for _, n := range out.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	assert.Equal(t, []osm.NodeID{1, 10, 11, 12}, nodeIDs, "node 2 and vertex 13 belong to unmodified entities")

	require.Len(t, out.Ways, 1)
	w := out.Ways[0]
	assert.Equal(t, osm.WayID(100), w.ID)
	assert.Equal(t, 3, w.Version)
	assert.Equal(t, "Gare Test", w.Tags.Find("name"))
	assert.Equal(t, "Old Gare", w.Tags.Find("old_name"))
	assert.Equal(t, []osm.NodeID{10, 11, 12, 404, 10}, w.Nodes.NodeIDs(), "refs are written verbatim")

	assert.Equal(t, osmdoc.ActionModify, out.Action(osmdoc.NodeRef(1)))
	assert.Equal(t, osmdoc.ActionModify, out.Action(osmdoc.WayRef(100)))
	assert.Equal(t, osmdoc.ActionNone, out.Action(osmdoc.NodeRef(10)))

	assert.Equal(t, "Old", src.Nodes[0].Tags.Find("name"), "source document is not mutated")
}

func TestBuildClosureInvariant(t *testing.T) {
	src, entities := patched(t)
	out, _ := Build(src, entities)

	present := make(map[osm.NodeID]struct{})
	for _, n := range out.Nodes {
		present[n.ID] = struct{}{}
	}
	index := src.Index()

	for _, w := range out.Ways {
		for _, id := range w.Nodes.NodeIDs() {
			if _, ok := present[id]; ok {
				continue
			}
			_, resolvable := index.Lookup(int64(id))
			assert.False(t, resolvable, "way %d references resolvable node %d missing from output", w.ID, id)
		}
	}
}

func TestBuildNothingModified(t *testing.T) {
	src, entities := patched(t)
	for _, e := range entities {
		e.Modified = false
	}

	out, stats := Build(src, entities)
	assert.Empty(t, out.Nodes)
	assert.Empty(t, out.Ways)
	assert.Equal(t, Stats{}, stats)
}

func TestBuildModifiedVertexIsWrittenOnce(t *testing.T) {
	src, err := osmdoc.Decode(strings.NewReader(`<osm>
  <node id="1" lat="0" lon="0"><tag k="railway" v="station"/><tag k="uic_ref" v="A"/></node>
  <node id="2" lat="0" lon="1"/>
  <way id="5"><nd ref="1"/><nd ref="2"/><tag k="railway" v="station"/><tag k="uic_ref" v="B"/></way>
</osm>`))
	require.NoError(t, err)

	p := profile.Default()
	ex, err := extract.New(p)
	require.NoError(t, err)
	records, _ := ex.Run(src)
	j := join.Join(records, &enrich.Table{Rows: []*enrich.Row{
		{Key: "A", Values: map[string]string{"name": "Node"}},
		{Key: "B", Values: map[string]string{"name": "Way"}},
	}})
	d, err := patch.NewDiffer(patch.FieldsFromProfile(p))
	require.NoError(t, err)
	entities, _ := d.Apply(j.Entities)

	out, stats := Build(src, entities)
	require.Len(t, out.Nodes, 2)
	assert.Equal(t, "Node", out.Nodes[0].Tags.Find("name"))
	assert.Equal(t, osmdoc.ActionModify, out.Action(osmdoc.NodeRef(1)))
	assert.Equal(t, 1, stats.Vertices)
}
