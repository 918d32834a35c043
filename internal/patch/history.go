package patch

import "github.com/wegman-software/osmpatch/internal/profile"

// Annotate keeps the replaced value of each history field in its shadow tag.
// Only modified entities whose field was replaced (not added) are touched.
// Any shadow tag already present is overwritten. Returns the number of
// shadow tags written.
func Annotate(entities []*Entity, rules []profile.HistoryRule) int {
	written := 0
	for _, e := range entities {
		if !e.Modified {
			continue
		}
		for _, r := range rules {
			c, ok := e.Change(r.Field)
			if !ok || c.Kind != Modified {
				continue
			}
			e.Tags[r.Shadow] = c.Old
			written++
		}
	}
	return written
}
