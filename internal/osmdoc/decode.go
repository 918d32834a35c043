package osmdoc

import (
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/osm"
)

// LoadFile decodes an OSM XML file. Files ending in .gz are decompressed.
func LoadFile(filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(filename, ".gz") {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return Decode(reader)
}

// Decode reads an OSM XML document. Nodes and ways are decoded into
// paulmach/osm elements; relations and other children are skipped.
// A node id seen twice keeps its first occurrence.
func Decode(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	doc := &Document{Actions: make(map[Ref]Action)}
	seenNodes := make(map[osm.NodeID]struct{})
	sawRoot := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "osm":
			sawRoot = true
			doc.Attrs = rootAttrs(se.Attr)
		case "bounds":
			b := &osm.Bounds{}
			if err := decoder.DecodeElement(b, &se); err != nil {
				return nil, fmt.Errorf("invalid bounds: %w", err)
			}
			doc.Bounds = b
		case "node":
			n := &osm.Node{}
			if err := decoder.DecodeElement(n, &se); err != nil {
				return nil, fmt.Errorf("invalid node: %w", err)
			}
			if _, dup := seenNodes[n.ID]; dup {
				doc.DuplicateNodes++
				continue
			}
			seenNodes[n.ID] = struct{}{}
			doc.Nodes = append(doc.Nodes, n)
		case "way":
			w := &osm.Way{}
			if err := decoder.DecodeElement(w, &se); err != nil {
				return nil, fmt.Errorf("invalid way: %w", err)
			}
			doc.Ways = append(doc.Ways, w)
		case "relation":
			doc.SkippedRelations++
			if err := decoder.Skip(); err != nil {
				return nil, fmt.Errorf("XML parse error: %w", err)
			}
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("missing <osm> root element")
	}
	return doc, nil
}

func rootAttrs(attrs []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Name.Space != "" {
			continue
		}
		out = append(out, xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value})
	}
	return out
}
