package patch

// Stat counts changes to one tracked field
type Stat struct {
	Added    int
	Modified int
}

// TagStats accumulates per-field change counts for one diff pass.
// Fields keep the tracked order they were created with.
type TagStats struct {
	fields []string
	stats  map[string]*Stat
}

// NewTagStats creates an empty accumulator for the given fields
func NewTagStats(fields []string) *TagStats {
	s := &TagStats{
		fields: append([]string(nil), fields...),
		stats:  make(map[string]*Stat, len(fields)),
	}
	for _, f := range fields {
		s.stats[f] = &Stat{}
	}
	return s
}

func (s *TagStats) record(field string, kind ChangeKind) {
	st, ok := s.stats[field]
	if !ok {
		return
	}
	switch kind {
	case Added:
		st.Added++
	case Modified:
		st.Modified++
	}
}

// Get returns the counts for a field
func (s *TagStats) Get(field string) Stat {
	if st, ok := s.stats[field]; ok {
		return *st
	}
	return Stat{}
}

// Fields returns the tracked fields in order
func (s *TagStats) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Total returns the sum of added and modified counts over all fields
func (s *TagStats) Total() Stat {
	var t Stat
	for _, st := range s.stats {
		t.Added += st.Added
		t.Modified += st.Modified
	}
	return t
}
