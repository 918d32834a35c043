package enrich

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoKeyColumn is returned when the table header lacks the join column
var ErrNoKeyColumn = errors.New("key column not found in table header")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ValueFunc rewrites a table value before it is compared with OSM tags
type ValueFunc func(column, value string) (string, error)

// Row is one enrichment table row, keyed by the string form of its identifier
type Row struct {
	Key    string
	Values map[string]string
	// Line is the 1-based line of the row in the source file
	Line int
}

// Value returns the value of a column, empty when absent
func (r *Row) Value(column string) string {
	if r == nil {
		return ""
	}
	return r.Values[column]
}

// Table is an enrichment table in file order
type Table struct {
	KeyColumn string
	Header    []string
	Rows      []*Row
	// SkippedEmptyKey counts rows whose key cell was empty
	SkippedEmptyKey int
	// SkippedMalformed counts rows dropped for a parse or transform error.
	// MalformedLines holds their starting line numbers.
	SkippedMalformed int
	MalformedLines   []int
	// MissingColumns lists requested columns absent from the header
	MissingColumns []string
}

// Options controls how a table is read
type Options struct {
	KeyColumn string
	// Columns restricts the values kept per row. Empty keeps every column.
	Columns []string
	Comma   rune
	// Transform, when set, is applied to every kept value
	Transform ValueFunc
}

// LoadCSV reads a delimited enrichment table from disk
func LoadCSV(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads a delimited enrichment table with a header row
func ReadCSV(r io.Reader, opts Options) (*Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty table")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	keyIdx, ok := index[opts.KeyColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoKeyColumn, opts.KeyColumn)
	}

	t := &Table{KeyColumn: opts.KeyColumn, Header: header}

	columns := opts.Columns
	if len(columns) == 0 {
		columns = header
	}
	kept := make(map[string]int, len(columns))
	for _, c := range columns {
		i, ok := index[c]
		if !ok {
			t.MissingColumns = append(t.MissingColumns, c)
			continue
		}
		kept[c] = i
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				t.skipMalformed(perr.StartLine)
				continue
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		key := cell(rec, keyIdx)
		if key == "" {
			t.SkippedEmptyKey++
			continue
		}

		row, ok := buildRow(rec, key, line, kept, opts.Transform)
		if !ok {
			t.skipMalformed(line)
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// buildRow keeps the requested cells of rec. It fails when the transform
// rejects any value.
func buildRow(rec []string, key string, line int, kept map[string]int, transform ValueFunc) (*Row, bool) {
	row := &Row{Key: key, Values: make(map[string]string, len(kept)), Line: line}
	for c, i := range kept {
		v := cell(rec, i)
		if transform != nil && v != "" {
			var err error
			if v, err = transform(c, v); err != nil {
				return nil, false
			}
		}
		row.Values[c] = v
	}
	return row, true
}

func (t *Table) skipMalformed(line int) {
	t.SkippedMalformed++
	t.MalformedLines = append(t.MalformedLines, line)
}

// cell tolerates ragged rows
func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
