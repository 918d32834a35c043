package patch

import (
	"fmt"
	"maps"

	"github.com/wegman-software/osmpatch/internal/join"
	"github.com/wegman-software/osmpatch/internal/profile"
)

// ChangeKind classifies a tag write
type ChangeKind int

const (
	// Added means the tag was absent or empty before
	Added ChangeKind = iota + 1
	// Modified means a non-empty tag was replaced by a different value
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Change is one tag write applied to an entity
type Change struct {
	Field string
	Kind  ChangeKind
	Old   string
	New   string
}

// Field is a tracked tag and the table column it is read from
type Field struct {
	Tag    string
	Column string
}

// FieldsFromProfile returns the profile's tracked fields in order
func FieldsFromProfile(p *profile.Profile) []Field {
	fields := make([]Field, 0, len(p.Tracked))
	for _, f := range p.Tracked {
		fields = append(fields, Field{Tag: f.Tag, Column: f.SourceColumn()})
	}
	return fields
}

// Entity is a joined entity after the diff pass. Tags is the post-diff tag
// set; the source record is left untouched.
type Entity struct {
	join.Joined
	Tags     map[string]string
	Modified bool
	Changes  []Change
}

// Change returns the change applied to a field, if any
func (e *Entity) Change(field string) (Change, bool) {
	for _, c := range e.Changes {
		if c.Field == field {
			return c, true
		}
	}
	return Change{}, false
}

// Differ applies table values to entity tags over a fixed set of fields
type Differ struct {
	fields []Field
}

// NewDiffer validates the tracked fields. Protected and duplicate fields are rejected.
func NewDiffer(fields []Field) (*Differ, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no tracked fields")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if profile.IsProtected(f.Tag) {
			return nil, fmt.Errorf("tracked field %q is protected", f.Tag)
		}
		if _, dup := seen[f.Tag]; dup {
			return nil, fmt.Errorf("tracked field %q listed twice", f.Tag)
		}
		seen[f.Tag] = struct{}{}
		if f.Column == "" {
			return nil, fmt.Errorf("tracked field %q has no column", f.Tag)
		}
	}
	return &Differ{fields: append([]Field(nil), fields...)}, nil
}

// Tags returns the tracked tag names in order
func (d *Differ) Tags() []string {
	tags := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		tags = append(tags, f.Tag)
	}
	return tags
}

// Apply runs the diff pass once over every joined entity and returns the
// patched entities with the statistics gathered on the same pass.
// Only matched entities can change. An empty table value never touches a tag.
func (d *Differ) Apply(joined []join.Joined) ([]*Entity, *TagStats) {
	stats := NewTagStats(d.Tags())
	out := make([]*Entity, 0, len(joined))

	for _, j := range joined {
		e := &Entity{Joined: j, Tags: maps.Clone(j.Record.Tags)}
		if e.Tags == nil {
			e.Tags = make(map[string]string)
		}
		out = append(out, e)

		if !j.Matched() {
			continue
		}

		for _, f := range d.fields {
			if profile.IsProtected(f.Tag) {
				continue
			}
			value := j.Row.Value(f.Column)
			if value == "" {
				continue
			}

			old := e.Tags[f.Tag]
			var kind ChangeKind
			switch {
			case old == "":
				kind = Added
			case old != value:
				kind = Modified
			default:
				continue
			}

			e.Tags[f.Tag] = value
			e.Modified = true
			e.Changes = append(e.Changes, Change{Field: f.Tag, Kind: kind, Old: old, New: value})
			stats.record(f.Tag, kind)
		}
	}

	return out, stats
}
