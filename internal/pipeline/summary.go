package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/wegman-software/osmpatch/internal/closure"
	"github.com/wegman-software/osmpatch/internal/extract"
	"github.com/wegman-software/osmpatch/internal/patch"
)

// Summary describes a completed run
type Summary struct {
	Modified  int
	Stats     *patch.TagStats
	Extract   extract.Stats
	Matched   int
	Annotated int
	Closure   closure.Stats

	DuplicateKeys []string
	SharedKeys    []string
	UnmatchedRows int

	OutputFile      string
	GeoJSONFeatures int
	ParquetRows     int
	Duration        time.Duration
}

func newSummary(res *Result) *Summary {
	return &Summary{
		Modified:      res.Modified(),
		Stats:         res.Stats,
		Extract:       res.Extract,
		Matched:       res.Join.Matched,
		Annotated:     res.Annotated,
		Closure:       res.Closure,
		DuplicateKeys: res.Join.DuplicateKeys,
		SharedKeys:    res.Join.SharedKeys,
		UnmatchedRows: res.Join.UnmatchedRows,
	}
}

// WriteReport prints the total modified count followed by one line per
// tracked field in profile order
func (s *Summary) WriteReport(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d OSM elements modified in total.\n", s.Modified); err != nil {
		return err
	}
	if s.Stats == nil {
		return nil
	}
	for _, field := range s.Stats.Fields() {
		st := s.Stats.Get(field)
		if _, err := fmt.Fprintf(w, "Tag '%s': %d added, %d modified.\n", field, st.Added, st.Modified); err != nil {
			return err
		}
	}
	return nil
}
