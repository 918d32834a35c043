package join

import (
	"sort"

	"github.com/wegman-software/osmpatch/internal/enrich"
	"github.com/wegman-software/osmpatch/internal/extract"
)

// Joined pairs an extracted record with at most one table row
type Joined struct {
	Record *extract.Record
	Row    *enrich.Row
}

// Matched reports whether the record found a table row
func (j Joined) Matched() bool {
	return j.Row != nil
}

// Result is the left join of records against a table
type Result struct {
	Entities []Joined
	Matched  int
	// DuplicateKeys lists table keys carried by more than one row. The last
	// row in table order is the one joined.
	DuplicateKeys []string
	// SharedKeys lists keys matched by more than one record
	SharedKeys []string
	// UnmatchedRows counts table rows no record joined
	UnmatchedRows int
}

// Join performs a left join on exact string equality of the record's join
// key and the row key. Records without a key never match.
func Join(records []*extract.Record, table *enrich.Table) Result {
	index := make(map[string]*enrich.Row, len(table.Rows))
	dupes := make(map[string]struct{})
	for _, row := range table.Rows {
		if _, ok := index[row.Key]; ok {
			dupes[row.Key] = struct{}{}
		}
		index[row.Key] = row
	}

	res := Result{Entities: make([]Joined, 0, len(records))}
	hits := make(map[string]int)
	for _, rec := range records {
		j := Joined{Record: rec}
		if rec.HasKey {
			if row, ok := index[rec.JoinKey]; ok {
				j.Row = row
				res.Matched++
				hits[rec.JoinKey]++
			}
		}
		res.Entities = append(res.Entities, j)
	}

	for key := range dupes {
		res.DuplicateKeys = append(res.DuplicateKeys, key)
	}
	sort.Strings(res.DuplicateKeys)

	for key, n := range hits {
		if n > 1 {
			res.SharedKeys = append(res.SharedKeys, key)
		}
	}
	sort.Strings(res.SharedKeys)

	res.UnmatchedRows = len(index) - len(hits)
	return res
}
