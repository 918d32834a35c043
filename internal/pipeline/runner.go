package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmpatch/internal/config"
	"github.com/wegman-software/osmpatch/internal/enrich"
	"github.com/wegman-software/osmpatch/internal/export"
	"github.com/wegman-software/osmpatch/internal/logger"
	"github.com/wegman-software/osmpatch/internal/metrics"
	"github.com/wegman-software/osmpatch/internal/osmdoc"
	"github.com/wegman-software/osmpatch/internal/overpass"
	"github.com/wegman-software/osmpatch/internal/profile"
)

// maxLoggedKeys bounds the key samples attached to data quality warnings
const maxLoggedKeys = 10

// Runner drives one reconciliation from input files to patch file
type Runner struct {
	cfg     *config.Config
	profile *profile.Profile
	log     *zap.Logger
	sampler *metrics.Sampler
}

// NewRunner validates the configuration and profile
func NewRunner(cfg *config.Config, p *profile.Profile) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("pipeline")
	return &Runner{
		cfg:     cfg,
		profile: p,
		log:     log,
		sampler: metrics.NewSampler(cfg.Metrics, log),
	}, nil
}

// Run fetches the extract when asked, loads both inputs in parallel,
// reconciles them and writes the patch and optional exports
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if r.cfg.Fetch || r.cfg.Refresh {
		if err := r.fetch(ctx); err != nil {
			return nil, err
		}
		r.sampler.Stage("fetch")
	}

	doc, table, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.sampler.Stage("load")

	res, err := Reconcile(doc, table, r.profile)
	if err != nil {
		return nil, err
	}
	r.logResult(res)
	r.sampler.Stage("reconcile")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := osmdoc.WriteFile(r.cfg.OutputFile, res.Patch); err != nil {
		return nil, err
	}
	r.log.Info("Patch written",
		zap.String("path", r.cfg.OutputFile),
		zap.Int("nodes", len(res.Patch.Nodes)),
		zap.Int("ways", len(res.Patch.Ways)),
		zap.String("size", fileSize(r.cfg.OutputFile)))
	r.sampler.Stage("write")

	summary := newSummary(res)
	summary.OutputFile = r.cfg.OutputFile

	if err := r.export(res, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	r.log.Info("Reconciliation complete",
		zap.Int("modified", summary.Modified),
		zap.Duration("duration", summary.Duration.Round(time.Millisecond)))
	return summary, nil
}

func (r *Runner) fetch(ctx context.Context) error {
	f := overpass.NewFetcher(r.cfg.OverpassURL, r.cfg.OSMFile,
		overpass.WithHTTPClient(newHTTPClient(r.cfg.FetchTimeout)),
		overpass.WithRetries(r.cfg.MaxRetries, r.cfg.RetryDelay))
	_, err := f.Fetch(ctx, overpass.BuildQuery(r.profile), r.cfg.Refresh)
	return err
}

// load reads the OSM document and the enrichment table concurrently
func (r *Runner) load(ctx context.Context) (*osmdoc.Document, *enrich.Table, error) {
	var (
		doc   *osmdoc.Document
		table *enrich.Table
	)

	comma, err := r.profile.Comma()
	if err != nil {
		return nil, nil, err
	}
	opts := enrich.Options{
		KeyColumn: r.profile.Join.Column,
		Columns:   r.profile.Columns(),
		Comma:     comma,
	}

	// The Lua state is confined to the table goroutine.
	var script *enrich.Script
	if r.profile.ValueScript != "" {
		script, err = enrich.NewScript(r.profile.ValueScript)
		if err != nil {
			return nil, nil, err
		}
		defer script.Close()
		opts.Transform = script.Transform
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		r.log.Info("Loading OSM extract",
			zap.String("path", r.cfg.OSMFile),
			zap.String("size", fileSize(r.cfg.OSMFile)))
		d, err := osmdoc.LoadFile(r.cfg.OSMFile)
		if err != nil {
			return err
		}
		r.log.Info("OSM extract loaded",
			zap.Int("nodes", len(d.Nodes)),
			zap.Int("ways", len(d.Ways)))
		if d.DuplicateNodes > 0 {
			r.log.Warn("Duplicate node ids in extract, first occurrence kept",
				zap.Int("count", d.DuplicateNodes))
		}
		if d.SkippedRelations > 0 {
			r.log.Debug("Relations ignored", zap.Int("count", d.SkippedRelations))
		}
		doc = d
		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		r.log.Info("Loading enrichment table",
			zap.String("path", r.cfg.TableFile),
			zap.String("key", opts.KeyColumn))
		t, err := enrich.LoadCSV(r.cfg.TableFile, opts)
		if err != nil {
			return err
		}
		r.log.Info("Enrichment table loaded",
			zap.Int("rows", len(t.Rows)),
			zap.Int("skipped_empty_key", t.SkippedEmptyKey))
		if t.SkippedMalformed > 0 {
			r.log.Warn("Malformed table rows skipped",
				zap.Int("count", t.SkippedMalformed),
				zap.Ints("lines", sample(t.MalformedLines, maxLoggedKeys)))
		}
		if len(t.MissingColumns) > 0 {
			r.log.Warn("Tracked columns missing from table, their fields are never written",
				zap.Strings("columns", t.MissingColumns))
		}
		table = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return doc, table, nil
}

func (r *Runner) logResult(res *Result) {
	ex := res.Extract
	r.log.Info("Entities extracted",
		zap.Int("seen", ex.Seen),
		zap.Int("kept", ex.Kept),
		zap.Int("excluded", ex.Excluded),
		zap.Int("wrong_category", ex.WrongCategory),
		zap.Int("wrong_operator", ex.WrongOperator))
	if ex.NoGeometry > 0 {
		fields := []zap.Field{zap.Int("count", ex.NoGeometry)}
		for reason, n := range ex.NoGeometryByWhy {
			fields = append(fields, zap.Int(string(reason), n))
		}
		r.log.Warn("Entities dropped without usable geometry", fields...)
	}
	if ex.UnresolvedRefs > 0 {
		r.log.Warn("Way refs without a node in the extract", zap.Int("count", ex.UnresolvedRefs))
	}

	j := res.Join
	r.log.Info("Entities joined",
		zap.Int("matched", j.Matched),
		zap.Int("unmatched", len(j.Entities)-j.Matched),
		zap.Int("unmatched_rows", j.UnmatchedRows))
	if len(j.DuplicateKeys) > 0 {
		r.log.Warn("Duplicate keys in enrichment table, last row wins",
			zap.Int("count", len(j.DuplicateKeys)),
			zap.Strings("sample", sample(j.DuplicateKeys, maxLoggedKeys)))
	}
	if len(j.SharedKeys) > 0 {
		r.log.Warn("Join keys shared by several OSM entities",
			zap.Int("count", len(j.SharedKeys)),
			zap.Strings("sample", sample(j.SharedKeys, maxLoggedKeys)))
	}

	total := res.Stats.Total()
	r.log.Info("Tags patched",
		zap.Int("modified_entities", res.Modified()),
		zap.Int("added", total.Added),
		zap.Int("modified", total.Modified),
		zap.Int("history_tags", res.Annotated))
	if res.Closure.MissingVertices > 0 {
		r.log.Warn("Modified ways reference nodes missing from the extract",
			zap.Int("count", res.Closure.MissingVertices))
	}
}

func (r *Runner) export(res *Result, summary *Summary) error {
	if r.cfg.GeoJSONFile != "" {
		n, err := export.WriteGeoJSON(r.cfg.GeoJSONFile, res.Entities)
		if err != nil {
			return err
		}
		summary.GeoJSONFeatures = n
		r.log.Info("GeoJSON review written", zap.String("path", r.cfg.GeoJSONFile), zap.Int("features", n))
		r.sampler.Stage("geojson")
	}
	if r.cfg.ParquetFile != "" {
		n, err := export.WriteParquet(r.cfg.ParquetFile, res.Entities)
		if err != nil {
			return err
		}
		summary.ParquetRows = n
		r.log.Info("Parquet review written", zap.String("path", r.cfg.ParquetFile), zap.Int("rows", n))
		r.sampler.Stage("parquet")
	}
	return nil
}
