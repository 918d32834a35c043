package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/osmpatch/internal/patch"
)

// FeatureCollection builds a review collection holding one point feature per
// modified entity, placed at the entity's representative point
func FeatureCollection(entities []*patch.Entity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range entities {
		if !e.Modified {
			continue
		}
		rec := e.Record
		f := geojson.NewFeature(rec.Geometry.Point)
		f.ID = rec.Ref.String()
		f.Properties["osm_id"] = rec.Ref.ID
		f.Properties["osm_type"] = string(rec.Ref.Type)
		f.Properties["geometry"] = rec.Geometry.Kind.String()
		f.Properties["join_key"] = rec.JoinKey

		changes := make(map[string]any, len(e.Changes))
		for _, c := range e.Changes {
			changes[c.Field] = map[string]string{
				"kind": c.Kind.String(),
				"old":  c.Old,
				"new":  c.New,
			}
		}
		f.Properties["changes"] = changes
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the review collection of modified entities to path
func WriteGeoJSON(path string, entities []*patch.Entity) (int, error) {
	fc := FeatureCollection(entities)
	data, err := fc.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to marshal geojson: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
