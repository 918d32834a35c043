package extract

import (
	"strings"
	"time"

	"github.com/paulmach/osm"
	"golang.org/x/text/cases"

	"github.com/wegman-software/osmpatch/internal/geom"
	"github.com/wegman-software/osmpatch/internal/osmdoc"
	"github.com/wegman-software/osmpatch/internal/profile"
)

// Record is a flat, enrichable view of one surviving node or way
type Record struct {
	Ref  osmdoc.Ref
	Tags map[string]string

	Version   int
	Timestamp time.Time
	Changeset int64
	UID       int64
	User      string

	Geometry geom.Result
	// Unresolved counts way refs with no vertex in the source document
	Unresolved int

	// JoinKey is the raw value of the profile's join tag, HasKey false when absent
	JoinKey string
	HasKey  bool

	// Exactly one of Node and Way is set. They are the source elements and
	// must not be mutated.
	Node *osm.Node
	Way  *osm.Way
}

// Stats counts why entities were kept or dropped
type Stats struct {
	Seen            int
	Excluded        int
	WrongCategory   int
	WrongOperator   int
	NoGeometry      int
	NoGeometryByWhy map[geom.Reason]int
	UnresolvedRefs  int
	Kept            int
}

// Extractor filters a document down to the entities a profile reconciles
type Extractor struct {
	categoryKey string
	categories  map[string]struct{}
	operatorKey string
	operators   []string
	joinTag     string
	excluded    map[string]map[int64]struct{}
	fold        cases.Caser
}

// New creates an extractor for a validated profile
func New(p *profile.Profile) (*Extractor, error) {
	excluded, err := p.Exclusions()
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		categoryKey: p.Category.Key,
		categories:  make(map[string]struct{}, len(p.Category.Values)),
		operatorKey: p.Operator.Key,
		joinTag:     p.Join.OSMTag,
		excluded:    excluded,
		fold:        cases.Fold(),
	}
	for _, v := range p.Category.Values {
		e.categories[v] = struct{}{}
	}
	for _, op := range p.Operator.Contains {
		e.operators = append(e.operators, e.fold.String(op))
	}
	return e, nil
}

// Run extracts records from every node and way of the document.
// The order of the returned records is not part of the contract.
func (e *Extractor) Run(doc *osmdoc.Document) ([]*Record, Stats) {
	stats := Stats{NoGeometryByWhy: make(map[geom.Reason]int)}
	vertices := doc.Index()
	records := make([]*Record, 0)

	for _, n := range doc.Nodes {
		stats.Seen++
		ref := osmdoc.NodeRef(int64(n.ID))
		if !e.accept(ref, n.Tags, &stats) {
			continue
		}

		g := geom.FromNode(n.Lon, n.Lat)
		if !g.OK() {
			stats.NoGeometry++
			stats.NoGeometryByWhy[g.Reason]++
			continue
		}

		rec := e.newRecord(ref, n.Tags, g)
		rec.Version = n.Version
		rec.Timestamp = n.Timestamp
		rec.Changeset = int64(n.ChangesetID)
		rec.UID = int64(n.UserID)
		rec.User = n.User
		rec.Node = n
		records = append(records, rec)
	}

	for _, w := range doc.Ways {
		stats.Seen++
		ref := osmdoc.WayRef(int64(w.ID))
		if !e.accept(ref, w.Tags, &stats) {
			continue
		}

		coords, missing := vertices.Resolve(w.Nodes)
		stats.UnresolvedRefs += missing
		g := geom.FromVertices(coords)
		if !g.OK() {
			stats.NoGeometry++
			stats.NoGeometryByWhy[g.Reason]++
			continue
		}

		rec := e.newRecord(ref, w.Tags, g)
		rec.Unresolved = missing
		rec.Version = w.Version
		rec.Timestamp = w.Timestamp
		rec.Changeset = int64(w.ChangesetID)
		rec.UID = int64(w.UserID)
		rec.User = w.User
		rec.Way = w
		records = append(records, rec)
	}

	stats.Kept = len(records)
	return records, stats
}

// accept applies exclusion, category and operator filters in that order
func (e *Extractor) accept(ref osmdoc.Ref, tags osm.Tags, stats *Stats) bool {
	if e.isExcluded(ref) {
		stats.Excluded++
		return false
	}
	if _, ok := e.categories[tags.Find(e.categoryKey)]; !ok {
		stats.WrongCategory++
		return false
	}
	if !e.operatorAllowed(tags.Find(e.operatorKey)) {
		stats.WrongOperator++
		return false
	}
	return true
}

func (e *Extractor) isExcluded(ref osmdoc.Ref) bool {
	if _, ok := e.excluded[string(ref.Type)][ref.ID]; ok {
		return true
	}
	_, ok := e.excluded[""][ref.ID]
	return ok
}

// operatorAllowed passes entities with no operator, otherwise requires one
// of the allowed substrings under case folding.
func (e *Extractor) operatorAllowed(operator string) bool {
	if operator == "" || len(e.operators) == 0 {
		return true
	}
	folded := e.fold.String(operator)
	for _, want := range e.operators {
		if strings.Contains(folded, want) {
			return true
		}
	}
	return false
}

func (e *Extractor) newRecord(ref osmdoc.Ref, tags osm.Tags, g geom.Result) *Record {
	m := tags.Map()
	key, ok := m[e.joinTag]
	return &Record{
		Ref:      ref,
		Tags:     m,
		Geometry: g,
		JoinKey:  key,
		HasKey:   ok,
	}
}
