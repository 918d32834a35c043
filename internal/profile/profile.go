package profile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a profile fails validation
var ErrInvalid = errors.New("invalid profile")

// Protected lists the provenance and geometry fields that enrichment never writes
var Protected = map[string]struct{}{
	"geometry":  {},
	"osm_id":    {},
	"osm_type":  {},
	"version":   {},
	"timestamp": {},
	"changeset": {},
	"user":      {},
	"uid":       {},
}

// IsProtected reports whether a field may never be overwritten by enrichment
func IsProtected(field string) bool {
	_, ok := Protected[field]
	return ok
}

// Profile describes which OSM entities are reconciled against which table
type Profile struct {
	// Category selects entities by their primary classification tag
	Category CategoryConfig `yaml:"category"`
	// Operator restricts entities that carry an operator tag
	Operator OperatorConfig `yaml:"operator"`
	// ExcludeIDs are skipped before any other filter.
	// Accepts "node/123", "way/456" or a bare id matching both kinds.
	ExcludeIDs []string `yaml:"exclude_ids,omitempty"`
	// Join names the shared key on both sides
	Join JoinConfig `yaml:"join"`
	// Tracked is the fixed, ordered set of tags eligible for update
	Tracked []TrackedField `yaml:"tracked"`
	// History lists tracked tags whose replaced value is kept in a shadow tag
	History []HistoryRule `yaml:"history,omitempty"`
	// CSV controls how the enrichment table is read
	CSV CSVConfig `yaml:"csv"`
	// ValueScript is an optional Lua file with a transform(column, value) function
	ValueScript string `yaml:"value_script,omitempty"`
	// Overpass controls the query used by fetch
	Overpass OverpassConfig `yaml:"overpass"`
}

// CategoryConfig is the allow-set for the classification tag
type CategoryConfig struct {
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
}

// OperatorConfig is the allowed-operator substring list (case-insensitive)
type OperatorConfig struct {
	Key      string   `yaml:"key"`
	Contains []string `yaml:"contains,omitempty"`
}

// JoinConfig names the OSM tag and table column holding the shared identifier
type JoinConfig struct {
	OSMTag string `yaml:"osm_tag"`
	Column string `yaml:"column"`
}

// TrackedField binds an OSM tag to the table column it is enriched from.
// Column defaults to Tag.
type TrackedField struct {
	Tag    string `yaml:"tag"`
	Column string `yaml:"column,omitempty"`
}

// SourceColumn returns the table column feeding this tag
func (f TrackedField) SourceColumn() string {
	if f.Column == "" {
		return f.Tag
	}
	return f.Column
}

// HistoryRule keeps the previous value of Field in Shadow when Field is replaced
type HistoryRule struct {
	Field  string `yaml:"field"`
	Shadow string `yaml:"shadow"`
}

// CSVConfig holds enrichment table parsing options
type CSVConfig struct {
	Comma string `yaml:"comma"`
}

// OverpassConfig holds fetch query settings
type OverpassConfig struct {
	// Area is the ISO3166-1 code of the country to query
	Area string `yaml:"area"`
	// Timeout is the server-side query timeout in seconds
	Timeout int `yaml:"timeout"`
}

// Default returns the SNCF station profile
func Default() *Profile {
	return &Profile{
		Category: CategoryConfig{Key: "railway", Values: []string{"station", "halt"}},
		Operator: OperatorConfig{Key: "operator", Contains: []string{"sncf"}},
		Join:     JoinConfig{OSMTag: "uic_ref", Column: "UIC"},
		Tracked: []TrackedField{
			{Tag: "name"},
			{Tag: "railway:ref"},
			{Tag: "ref:FR:sncf:resarail"},
		},
		History:  []HistoryRule{{Field: "name", Shadow: "old_name"}},
		CSV:      CSVConfig{Comma: ","},
		Overpass: OverpassConfig{Area: "FR", Timeout: 1800},
	}
}

// Load reads a profile from a YAML file. Keys absent from the file keep
// their default values.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile on top of the defaults and validates it
func Parse(data []byte) (*Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	// Default history rules only survive for fields the file still tracks.
	var keys map[string]yaml.Node
	if err := yaml.Unmarshal(data, &keys); err == nil {
		if _, ok := keys["history"]; !ok {
			p.History = p.trackedHistory()
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal renders the profile as YAML
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate checks the profile for settings the engine cannot honor
func (p *Profile) Validate() error {
	if p.Category.Key == "" || len(p.Category.Values) == 0 {
		return fmt.Errorf("%w: category key and values are required", ErrInvalid)
	}
	if p.Join.OSMTag == "" || p.Join.Column == "" {
		return fmt.Errorf("%w: join osm_tag and column are required", ErrInvalid)
	}
	if len(p.Tracked) == 0 {
		return fmt.Errorf("%w: at least one tracked field is required", ErrInvalid)
	}

	seen := make(map[string]struct{}, len(p.Tracked))
	for _, f := range p.Tracked {
		if f.Tag == "" {
			return fmt.Errorf("%w: tracked field with empty tag", ErrInvalid)
		}
		if IsProtected(f.Tag) {
			return fmt.Errorf("%w: tracked field %q is protected", ErrInvalid, f.Tag)
		}
		if _, dup := seen[f.Tag]; dup {
			return fmt.Errorf("%w: tracked field %q listed twice", ErrInvalid, f.Tag)
		}
		seen[f.Tag] = struct{}{}
	}

	shadows := make(map[string]struct{}, len(p.History))
	for _, h := range p.History {
		if _, ok := seen[h.Field]; !ok {
			return fmt.Errorf("%w: history field %q is not tracked", ErrInvalid, h.Field)
		}
		if h.Shadow == "" || h.Shadow == h.Field {
			return fmt.Errorf("%w: history field %q needs a distinct shadow tag", ErrInvalid, h.Field)
		}
		if _, ok := seen[h.Shadow]; ok {
			return fmt.Errorf("%w: shadow tag %q is also tracked", ErrInvalid, h.Shadow)
		}
		if IsProtected(h.Shadow) {
			return fmt.Errorf("%w: shadow tag %q is protected", ErrInvalid, h.Shadow)
		}
		if _, dup := shadows[h.Shadow]; dup {
			return fmt.Errorf("%w: shadow tag %q used twice", ErrInvalid, h.Shadow)
		}
		shadows[h.Shadow] = struct{}{}
	}

	if _, err := p.Comma(); err != nil {
		return err
	}
	if _, err := p.Exclusions(); err != nil {
		return err
	}
	return nil
}

func (p *Profile) trackedHistory() []HistoryRule {
	var out []HistoryRule
	for _, h := range p.History {
		for _, f := range p.Tracked {
			if f.Tag == h.Field {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// Comma returns the CSV delimiter rune
func (p *Profile) Comma() (rune, error) {
	switch p.CSV.Comma {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r := []rune(p.CSV.Comma)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: csv comma must be a single character, got %q", ErrInvalid, p.CSV.Comma)
	}
	return r[0], nil
}

// Exclusions parses ExcludeIDs. Bare ids are returned under the empty kind.
func (p *Profile) Exclusions() (map[string]map[int64]struct{}, error) {
	out := map[string]map[int64]struct{}{}
	for _, raw := range p.ExcludeIDs {
		kind, idStr := "", strings.TrimSpace(raw)
		if k, v, ok := strings.Cut(idStr, "/"); ok {
			kind, idStr = k, v
			if kind != "node" && kind != "way" {
				return nil, fmt.Errorf("%w: exclude id %q has unknown kind", ErrInvalid, raw)
			}
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: exclude id %q: %v", ErrInvalid, raw, err)
		}
		if out[kind] == nil {
			out[kind] = map[int64]struct{}{}
		}
		out[kind][id] = struct{}{}
	}
	return out, nil
}

// Columns returns the table columns read for tracked fields, in tracked order
func (p *Profile) Columns() []string {
	cols := make([]string, 0, len(p.Tracked))
	for _, f := range p.Tracked {
		cols = append(cols, f.SourceColumn())
	}
	return cols
}
