package osmdoc

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/osm"
)

const generator = "osmpatch"

// xml shapes for output. paulmach/osm has no field for the JOSM action
// attribute, so elements are copied into these before encoding.
type xmlOSM struct {
	XMLName xml.Name   `xml:"osm"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Bounds  *xmlBounds `xml:"bounds,omitempty"`
	Nodes   []xmlNode  `xml:"node"`
	Ways    []xmlWay   `xml:"way"`
}

type xmlBounds struct {
	MinLat string `xml:"minlat,attr"`
	MinLon string `xml:"minlon,attr"`
	MaxLat string `xml:"maxlat,attr"`
	MaxLon string `xml:"maxlon,attr"`
}

type xmlNode struct {
	ID        int64    `xml:"id,attr"`
	Action    string   `xml:"action,attr,omitempty"`
	Timestamp string   `xml:"timestamp,attr,omitempty"`
	UID       int64    `xml:"uid,attr,omitempty"`
	User      string   `xml:"user,attr,omitempty"`
	Version   int      `xml:"version,attr,omitempty"`
	Changeset int64    `xml:"changeset,attr,omitempty"`
	Lat       string   `xml:"lat,attr"`
	Lon       string   `xml:"lon,attr"`
	Tags      []xmlTag `xml:"tag"`
}

type xmlWay struct {
	ID        int64    `xml:"id,attr"`
	Action    string   `xml:"action,attr,omitempty"`
	Timestamp string   `xml:"timestamp,attr,omitempty"`
	UID       int64    `xml:"uid,attr,omitempty"`
	User      string   `xml:"user,attr,omitempty"`
	Version   int      `xml:"version,attr,omitempty"`
	Changeset int64    `xml:"changeset,attr,omitempty"`
	Nds       []xmlNd  `xml:"nd"`
	Tags      []xmlTag `xml:"tag"`
}

type xmlNd struct {
	Ref int64 `xml:"ref,attr"`
}

type xmlTag struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

// Encode writes the document as OSM XML. Tags are written sorted by key.
func Encode(w io.Writer, doc *Document) error {
	out := xmlOSM{Attrs: doc.Attrs}
	if len(out.Attrs) == 0 {
		out.Attrs = []xml.Attr{
			{Name: xml.Name{Local: "version"}, Value: "0.6"},
			{Name: xml.Name{Local: "generator"}, Value: generator},
		}
	}
	if b := doc.Bounds; b != nil {
		out.Bounds = &xmlBounds{
			MinLat: formatCoord(b.MinLat), MinLon: formatCoord(b.MinLon),
			MaxLat: formatCoord(b.MaxLat), MaxLon: formatCoord(b.MaxLon),
		}
	}

	out.Nodes = make([]xmlNode, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		out.Nodes = append(out.Nodes, xmlNode{
			ID:        int64(n.ID),
			Action:    string(doc.Action(NodeRef(int64(n.ID)))),
			Timestamp: formatTime(n.Timestamp),
			UID:       int64(n.UserID),
			User:      n.User,
			Version:   n.Version,
			Changeset: int64(n.ChangesetID),
			Lat:       formatCoord(n.Lat),
			Lon:       formatCoord(n.Lon),
			Tags:      sortedTags(n.Tags),
		})
	}

	out.Ways = make([]xmlWay, 0, len(doc.Ways))
	for _, way := range doc.Ways {
		nds := make([]xmlNd, 0, len(way.Nodes))
		for _, wn := range way.Nodes {
			nds = append(nds, xmlNd{Ref: int64(wn.ID)})
		}
		out.Ways = append(out.Ways, xmlWay{
			ID:        int64(way.ID),
			Action:    string(doc.Action(WayRef(int64(way.ID)))),
			Timestamp: formatTime(way.Timestamp),
			UID:       int64(way.UserID),
			User:      way.User,
			Version:   way.Version,
			Changeset: int64(way.ChangesetID),
			Nds:       nds,
			Tags:      sortedTags(way.Tags),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode OSM XML: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile encodes the document to a temporary file and renames it into place
func WriteFile(filename string, doc *Document) error {
	tmpFile := filename + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	bw := bufio.NewWriter(f)
	err = Encode(bw, doc)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if err := os.Rename(tmpFile, filename); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename output file: %w", err)
	}
	return nil
}

func sortedTags(tags osm.Tags) []xmlTag {
	out := make([]xmlTag, 0, len(tags))
	for _, t := range tags {
		out = append(out, xmlTag{K: t.Key, V: t.Value})
	}
	slices.SortFunc(out, func(a, b xmlTag) int {
		return strings.Compare(a.K, b.K)
	})
	return out
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
