package pipeline

import (
	"fmt"

	"github.com/wegman-software/osmpatch/internal/closure"
	"github.com/wegman-software/osmpatch/internal/enrich"
	"github.com/wegman-software/osmpatch/internal/extract"
	"github.com/wegman-software/osmpatch/internal/join"
	"github.com/wegman-software/osmpatch/internal/osmdoc"
	"github.com/wegman-software/osmpatch/internal/patch"
	"github.com/wegman-software/osmpatch/internal/profile"
)

// Result is everything one reconciliation produces
type Result struct {
	Patch    *osmdoc.Document
	Entities []*patch.Entity
	Stats    *patch.TagStats

	Extract   extract.Stats
	Join      join.Result
	Annotated int
	Closure   closure.Stats
}

// Modified returns the number of modified entities
func (r *Result) Modified() int {
	n := 0
	for _, e := range r.Entities {
		if e.Modified {
			n++
		}
	}
	return n
}

// Reconcile runs extract, join, diff, history annotation and closure over
// fully loaded inputs. It performs no I/O and never mutates doc or table.
func Reconcile(doc *osmdoc.Document, table *enrich.Table, p *profile.Profile) (*Result, error) {
	ex, err := extract.New(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	differ, err := patch.NewDiffer(patch.FieldsFromProfile(p))
	if err != nil {
		return nil, fmt.Errorf("failed to create differ: %w", err)
	}

	records, exStats := ex.Run(doc)
	joined := join.Join(records, table)
	entities, stats := differ.Apply(joined.Entities)
	annotated := patch.Annotate(entities, p.History)
	out, clStats := closure.Build(doc, entities)

	return &Result{
		Patch:     out,
		Entities:  entities,
		Stats:     stats,
		Extract:   exStats,
		Join:      joined,
		Annotated: annotated,
		Closure:   clStats,
	}, nil
}
