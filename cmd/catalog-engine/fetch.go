package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/catalog-engine/internal/catalog"
	"github.com/pdiddy/catalog-engine/internal/config"
	"github.com/pdiddy/catalog-engine/internal/fetch"
	"github.com/pdiddy/catalog-engine/internal/secrets"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const defaultCatalogTimeout = 30 * time.Second

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch item metadata from the catalog into raw storage",
	Long: `Fetch lists the items of every configured channel and keyword, resolves
their detail documents in batches, and writes one immutable raw record per
item under bronze/metadata/. Records that already exist are left untouched.

A quota or permission failure skips only the affected entry. The command
exits non-zero only when every entry failed or the run report could not be
written.`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("date", "", "fetch date YYYY-MM-DD (default today, UTC)")
	f.StringArray("channel", nil, "channel id to fetch instead of the configured lists (repeatable)")
	f.StringArray("keyword", nil, "keyword to fetch instead of the configured lists (repeatable)")
	f.Int("workers", 0, "entries fetched in parallel (default 4)")
	f.Int("batch-size", 0, "ids per detail request (default 50)")
	f.Int("max-results", 0, "ids listed per entry when the entry does not set max_results (default 30)")
	f.Duration("timeout", 0, "HTTP request timeout (default 30s)")
	f.Float64("requests-per-second", 0, "catalog request rate limit (0 = unlimited)")
	f.Int("burst", 0, "catalog rate limiter burst (default 1)")
	f.String("base-url", "", "catalog API root (default YouTube Data API v3)")

	_ = viper.BindPFlag("fetch.workers", f.Lookup("workers"))
	_ = viper.BindPFlag("fetch.batch_size", f.Lookup("batch-size"))
	_ = viper.BindPFlag("fetch.default_max_results", f.Lookup("max-results"))
	_ = viper.BindPFlag("catalog.timeout", f.Lookup("timeout"))
	_ = viper.BindPFlag("catalog.requests_per_second", f.Lookup("requests-per-second"))
	_ = viper.BindPFlag("catalog.burst", f.Lookup("burst"))
	_ = viper.BindPFlag("catalog.base_url", f.Lookup("base-url"))

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	defer timeStage("fetch")()
	ctx := cmd.Context()

	date, err := fetchDate(cmd)
	if err != nil {
		return err
	}

	fetchCfg := types.FetchConfig{
		Workers:           viper.GetInt("fetch.workers"),
		BatchSize:         viper.GetInt("fetch.batch_size"),
		DefaultMaxResults: viper.GetInt("fetch.default_max_results"),
	}
	entries, err := sourceEntries(cmd, fetchCfg.DefaultMaxResults)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no source entries configured")
	}

	timeout := viper.GetDuration("catalog.timeout")
	if timeout == 0 {
		timeout = defaultCatalogTimeout
	}
	catCfg := types.CatalogConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		RetryConfig:       retryConfig("catalog"),
		BaseURL:           viper.GetString("catalog.base_url"),
		APIKey:            secretDefault(secrets.YouTubeAPIKey, viper.GetString("catalog.api_key")),
		BatchSize:         fetchCfg.BatchSize,
		RequestsPerSecond: viper.GetFloat64("catalog.requests_per_second"),
		Burst:             viper.GetInt("catalog.burst"),
	}
	if catCfg.APIKey == "" {
		return fmt.Errorf("catalog API key is not set (.secrets/%s or YOUTUBE_API_KEY)", secrets.YouTubeAPIKey)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	client := catalog.NewClient(&http.Client{Timeout: catCfg.Timeout}, catCfg, logger)
	fetcher := fetch.New(store, client, fetchCfg, logger, recorder)

	report, err := fetcher.Run(ctx, entries, date, os.Stdout)
	if err != nil {
		return err
	}
	if report.Status == types.RunFailed {
		return fmt.Errorf("fetch run %s failed: no entry completed", report.RunID)
	}
	return nil
}

// sourceEntries returns the entries named by --channel and --keyword, or
// the configured source lists when neither flag is set.
func sourceEntries(cmd *cobra.Command, defaultMax int) ([]types.SourceEntry, error) {
	channels, _ := cmd.Flags().GetStringArray("channel")
	keywords, _ := cmd.Flags().GetStringArray("keyword")
	if len(channels) == 0 && len(keywords) == 0 {
		return config.LoadSources(viper.GetString("sources.dir"), defaultMax)
	}

	entries := make([]types.SourceEntry, 0, len(channels)+len(keywords))
	for _, c := range channels {
		entries = append(entries, types.SourceEntry{Kind: types.SourceChannel, Key: c, MaxResults: defaultMax})
	}
	for _, k := range keywords {
		entries = append(entries, types.SourceEntry{Kind: types.SourceSearch, Key: k, MaxResults: defaultMax})
	}
	return entries, nil
}
