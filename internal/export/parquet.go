package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/wegman-software/osmpatch/internal/patch"
)

// batchSize bounds the rows held in the record builder before a flush
const batchSize = 10000

var entitySchema = arrow.NewSchema([]arrow.Field{
	{Name: "osm_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "osm_type", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "join_key", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "matched", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
	{Name: "modified", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
	{Name: "lon", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "lat", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
	{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// EntityWriter writes joined entities to a Parquet file
type EntityWriter struct {
	file    *os.File
	tmpPath string
	path    string
	writer  *pqarrow.FileWriter
	builder *array.RecordBuilder
	count   int
	total   int
}

// NewEntityWriter creates a zstd compressed Parquet writer for path. The file
// appears at path only after a successful Close.
func NewEntityWriter(path string) (*EntityWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(entitySchema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}

	return &EntityWriter{
		file:    f,
		tmpPath: tmp,
		path:    path,
		writer:  writer,
		builder: array.NewRecordBuilder(memory.DefaultAllocator, entitySchema),
	}, nil
}

// Write appends one entity row
func (w *EntityWriter) Write(e *patch.Entity) error {
	rec := e.Record

	geomWKB, err := wkb.Marshal(rec.Geometry.Point)
	if err != nil {
		return fmt.Errorf("failed to encode %s geometry: %w", rec.Ref, err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode %s tags: %w", rec.Ref, err)
	}

	w.builder.Field(0).(*array.Int64Builder).Append(rec.Ref.ID)
	w.builder.Field(1).(*array.StringBuilder).Append(string(rec.Ref.Type))
	if rec.HasKey {
		w.builder.Field(2).(*array.StringBuilder).Append(rec.JoinKey)
	} else {
		w.builder.Field(2).(*array.StringBuilder).AppendNull()
	}
	w.builder.Field(3).(*array.BooleanBuilder).Append(e.Matched())
	w.builder.Field(4).(*array.BooleanBuilder).Append(e.Modified)
	w.builder.Field(5).(*array.Float64Builder).Append(rec.Geometry.Point.Lon())
	w.builder.Field(6).(*array.Float64Builder).Append(rec.Geometry.Point.Lat())
	w.builder.Field(7).(*array.BinaryBuilder).Append(geomWKB)
	w.builder.Field(8).(*array.StringBuilder).Append(string(tags))

	w.count++
	w.total++
	if w.count >= batchSize {
		return w.flush()
	}
	return nil
}

func (w *EntityWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Count returns the number of rows written so far
func (w *EntityWriter) Count() int {
	return w.total
}

// Close flushes pending rows and moves the file into place
func (w *EntityWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.writer.Close()
		os.Remove(w.tmpPath)
		return err
	}
	// pqarrow closes the underlying file
	if err := w.writer.Close(); err != nil {
		os.Remove(w.tmpPath)
		return err
	}
	return os.Rename(w.tmpPath, w.path)
}

// WriteParquet writes one row per joined entity to path
func WriteParquet(path string, entities []*patch.Entity) (int, error) {
	w, err := NewEntityWriter(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	for _, e := range entities {
		if err := w.Write(e); err != nil {
			w.Close()
			os.Remove(path)
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.Count(), nil
}
