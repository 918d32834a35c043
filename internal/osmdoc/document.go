package osmdoc

import (
	"encoding/xml"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Action is the JOSM edit marker carried by a changed element
type Action string

const (
	ActionNone   Action = ""
	ActionModify Action = "modify"
)

// Ref identifies a node or way
type Ref struct {
	Type osm.Type
	ID   int64
}

// NodeRef returns the ref of a node id
func NodeRef(id int64) Ref {
	return Ref{Type: osm.TypeNode, ID: id}
}

// WayRef returns the ref of a way id
func WayRef(id int64) Ref {
	return Ref{Type: osm.TypeWay, ID: id}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// Document is an OSM XML document restricted to nodes and ways.
// Root attributes are kept verbatim so a derived document can reuse them.
type Document struct {
	Attrs  []xml.Attr
	Bounds *osm.Bounds
	Nodes  osm.Nodes
	Ways   osm.Ways

	// Actions marks elements to be written with an action attribute
	Actions map[Ref]Action

	// DuplicateNodes counts repeated node elements dropped while decoding
	DuplicateNodes int
	// SkippedRelations counts relation elements ignored while decoding
	SkippedRelations int
}

// New returns an empty document carrying the given root attributes
func New(attrs []xml.Attr, bounds *osm.Bounds) *Document {
	return &Document{
		Attrs:   append([]xml.Attr(nil), attrs...),
		Bounds:  bounds,
		Actions: make(map[Ref]Action),
	}
}

// SetAction marks an element with an action
func (d *Document) SetAction(ref Ref, a Action) {
	if d.Actions == nil {
		d.Actions = make(map[Ref]Action)
	}
	d.Actions[ref] = a
}

// Action returns the action recorded for an element
func (d *Document) Action(ref Ref) Action {
	return d.Actions[ref]
}

// Vertex is a node coordinate looked up while resolving way geometry
type Vertex struct {
	ID  int64
	Lon float64
	Lat float64
}

// VertexIndex maps node ids to coordinates
type VertexIndex map[int64]Vertex

// Index builds the vertex index of every node in the document
func (d *Document) Index() VertexIndex {
	idx := make(VertexIndex, len(d.Nodes))
	for _, n := range d.Nodes {
		idx[int64(n.ID)] = Vertex{ID: int64(n.ID), Lon: n.Lon, Lat: n.Lat}
	}
	return idx
}

// Lookup returns the vertex with the given id
func (vi VertexIndex) Lookup(id int64) (Vertex, bool) {
	v, ok := vi[id]
	return v, ok
}

// Resolve returns the coordinates of a way's node refs in order.
// Refs with no vertex are skipped and counted in missing.
func (vi VertexIndex) Resolve(refs osm.WayNodes) (coords []orb.Point, missing int) {
	coords = make([]orb.Point, 0, len(refs))
	for _, wn := range refs {
		v, ok := vi[int64(wn.ID)]
		if !ok {
			missing++
			continue
		}
		coords = append(coords, orb.Point{v.Lon, v.Lat})
	}
	return coords, missing
}
