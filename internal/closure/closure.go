package closure

import (
	"slices"
	"sort"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osmpatch/internal/osmdoc"
	"github.com/wegman-software/osmpatch/internal/patch"
)

// Stats describes an assembled patch document
type Stats struct {
	Nodes    int // modified nodes
	Ways     int // modified ways
	Vertices int // supporting nodes added for modified ways
	// MissingVertices counts way refs with no node in the source document.
	// The refs are still written.
	MissingVertices int
}

// Build assembles the smallest document holding every modified entity and
// every source node referenced by a modified way. Root attributes come from
// src. Nodes and ways are sorted by id.
func Build(src *osmdoc.Document, entities []*patch.Entity) (*osmdoc.Document, Stats) {
	var stats Stats
	out := osmdoc.New(src.Attrs, src.Bounds)

	selectedNodes := make(map[osm.NodeID]struct{})
	needed := make(map[osm.NodeID]struct{})

	for _, e := range entities {
		if !e.Modified {
			continue
		}
		rec := e.Record
		switch {
		case rec.Node != nil:
			n := *rec.Node
			n.Tags = toTags(e.Tags)
			out.Nodes = append(out.Nodes, &n)
			out.SetAction(rec.Ref, osmdoc.ActionModify)
			selectedNodes[n.ID] = struct{}{}
			stats.Nodes++
		case rec.Way != nil:
			w := *rec.Way
			w.Tags = toTags(e.Tags)
			w.Nodes = slices.Clone(rec.Way.Nodes)
			out.Ways = append(out.Ways, &w)
			out.SetAction(rec.Ref, osmdoc.ActionModify)
			for _, wn := range w.Nodes {
				needed[wn.ID] = struct{}{}
			}
			stats.Ways++
		}
	}

	found := make(map[osm.NodeID]struct{}, len(needed))
	for _, n := range src.Nodes {
		if _, ok := needed[n.ID]; !ok {
			continue
		}
		found[n.ID] = struct{}{}
		if _, already := selectedNodes[n.ID]; already {
			continue
		}
		out.Nodes = append(out.Nodes, n)
		stats.Vertices++
	}
	stats.MissingVertices = len(needed) - len(found)

	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	sort.Slice(out.Ways, func(i, j int) bool { return out.Ways[i].ID < out.Ways[j].ID })

	return out, stats
}

// toTags converts a tag map to osm.Tags sorted by key
func toTags(m map[string]string) osm.Tags {
	tags := make(osm.Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}
