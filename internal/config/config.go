package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wegman-software/osmpatch/internal/overpass"
)

// Config holds the settings of one reconciliation run
type Config struct {
	// Input settings
	OSMFile     string // OSM XML extract, also the Overpass cache file
	TableFile   string // CSV enrichment table
	ProfileFile string // YAML profile, empty for the built-in default

	// Output settings
	OutputFile  string // JOSM patch file
	GeoJSONFile string // optional review export
	ParquetFile string // optional review export

	// Overpass settings
	Fetch        bool // download the extract when the cache is missing
	Refresh      bool // download even when the cache exists
	OverpassURL  string
	FetchTimeout time.Duration
	MaxRetries   int
	RetryDelay   time.Duration

	// Logging and metrics
	Verbose bool
	LogFile string // Path to log file (empty = no file logging)
	Metrics bool   // log a memory snapshot after each stage
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OSMFile:      "stations.osm",
		OutputFile:   "patch.osm",
		OverpassURL:  overpass.DefaultURL,
		FetchTimeout: 45 * time.Minute,
		MaxRetries:   3,
		RetryDelay:   30 * time.Second,
	}
}

// Validate checks that the configuration is valid for a run
func (c *Config) Validate() error {
	if c.OSMFile == "" {
		return fmt.Errorf("osm file is required")
	}
	if c.TableFile == "" {
		return fmt.Errorf("table file is required")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file is required")
	}
	if err := c.ValidateFetch(); err != nil {
		return err
	}

	inputs := map[string]string{
		clean(c.OSMFile):   "osm file",
		clean(c.TableFile): "table file",
	}
	outputs := []struct{ name, path string }{
		{"output file", c.OutputFile},
		{"geojson file", c.GeoJSONFile},
		{"parquet file", c.ParquetFile},
	}
	seen := make(map[string]string)
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		p := clean(o.path)
		if in, ok := inputs[p]; ok {
			return fmt.Errorf("%s would overwrite the %s", o.name, in)
		}
		if other, ok := seen[p]; ok {
			return fmt.Errorf("%s and %s are the same path", other, o.name)
		}
		seen[p] = o.name
	}
	return nil
}

// ValidateFetch checks the Overpass settings
func (c *Config) ValidateFetch() error {
	if c.OSMFile == "" {
		return fmt.Errorf("cache file is required")
	}
	if !strings.HasPrefix(c.OverpassURL, "http://") && !strings.HasPrefix(c.OverpassURL, "https://") {
		return fmt.Errorf("overpass url must be http or https: %q", c.OverpassURL)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	return nil
}

func clean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
