package cmd

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmpatch/internal/logger"
	"github.com/wegman-software/osmpatch/internal/overpass"
)

var printQuery bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the OSM extract from Overpass into the cache file",
	Long: `Query Overpass for every node and way carrying the profile's category key
inside the profile's country and store the XML result in the cache file.

An existing cache is kept unless --refresh is given.`,
	Args: cobra.NoArgs,
	Run:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&cfg.OSMFile, "cache", cfg.OSMFile, "Cache file for the Overpass result")
	fetchCmd.Flags().StringVarP(&cfg.ProfileFile, "profile", "p", "", "YAML profile (default: built-in SNCF stations)")
	fetchCmd.Flags().BoolVar(&printQuery, "print-query", false, "Print the Overpass query and exit")
	addFetchFlags(fetchCmd)
}

// addFetchFlags registers the Overpass flags shared by run and fetch
func addFetchFlags(c *cobra.Command) {
	c.Flags().BoolVar(&cfg.Refresh, "refresh", false, "Download the extract even when the cache exists")
	c.Flags().StringVar(&cfg.OverpassURL, "overpass-url", cfg.OverpassURL, "Overpass API interpreter URL")
	c.Flags().DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for one Overpass request")
	c.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries on Overpass server errors")
	c.Flags().DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Delay between Overpass retries")
}

func runFetch(cmd *cobra.Command, args []string) {
	log := logger.Get()
	p := loadProfile()
	if err := p.Validate(); err != nil {
		exitWithError("invalid profile", err)
	}

	query := overpass.BuildQuery(p)
	if printQuery {
		fmt.Fprint(cmd.OutOrStdout(), query)
		return
	}

	if err := cfg.ValidateFetch(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fetcher := overpass.NewFetcher(cfg.OverpassURL, cfg.OSMFile,
		overpass.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		overpass.WithRetries(cfg.MaxRetries, cfg.RetryDelay))

	path, err := fetcher.Fetch(ctx, query, cfg.Refresh)
	if err != nil {
		exitWithError("fetch failed", err)
	}
	log.Info("Extract ready", zap.String("path", path))
}
