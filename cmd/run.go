package cmd

import (
	"os"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmpatch/internal/logger"
	"github.com/wegman-software/osmpatch/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile an OSM extract with an enrichment table",
	Long: `Load the OSM extract and the enrichment table, join them on the profile's
key, apply the tracked table values to the OSM tags and write the modified
elements as a JOSM patch (action="modify").

Tags are only added or replaced, never removed. A replaced name is kept in
old_name. A summary of added and modified tags is printed on stdout.

Use --fetch to download the extract from Overpass when the file is missing,
or --refresh to download it again.`,
	Args: cobra.NoArgs,
	Run:  runReconcile,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&cfg.OSMFile, "osm", cfg.OSMFile, "OSM XML extract (Overpass cache file with --fetch)")
	runCmd.Flags().StringVar(&cfg.TableFile, "table", "", "CSV enrichment table")
	runCmd.Flags().StringVarP(&cfg.OutputFile, "out", "o", cfg.OutputFile, "Patch file to write")
	runCmd.Flags().StringVarP(&cfg.ProfileFile, "profile", "p", "", "YAML profile (default: built-in SNCF stations)")
	runCmd.Flags().StringVar(&cfg.GeoJSONFile, "geojson", "", "Write modified entities to a GeoJSON review file")
	runCmd.Flags().StringVar(&cfg.ParquetFile, "parquet", "", "Write joined entities to a Parquet review file")
	runCmd.Flags().BoolVar(&cfg.Fetch, "fetch", false, "Download the extract from Overpass when the file is missing")
	addFetchFlags(runCmd)

	runCmd.MarkFlagRequired("table")
}

func runReconcile(cmd *cobra.Command, args []string) {
	log := logger.Get()
	p := loadProfile()

	runner, err := pipeline.NewRunner(cfg, p)
	if err != nil {
		exitWithError("invalid configuration", err)
	}

	log.Info("Starting reconciliation",
		zap.String("osm", cfg.OSMFile),
		zap.String("table", cfg.TableFile),
		zap.String("output", cfg.OutputFile),
		zap.String("profile", cfg.ProfileFile),
		zap.String("join", p.Join.OSMTag+"="+p.Join.Column))

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := runner.Run(ctx)
	if err != nil {
		exitWithError("reconciliation failed", err)
	}

	if err := summary.WriteReport(os.Stdout); err != nil {
		exitWithError("failed to write report", err)
	}
}
