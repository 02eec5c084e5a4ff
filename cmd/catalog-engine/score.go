// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/catalog-engine/internal/annotate"
	"github.com/pdiddy/catalog-engine/internal/score"
	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score and rank annotated items with a versioned scoring config",
	Long: `Score reads annotated items, computes a weighted final score for each
with the selected scoring version, ranks them and appends the result as a
new run under gold/scored/. Earlier runs are never overwritten.

A scoring version is immutable once used: reusing a version id with
different weights fails before anything is written. Use the versions and
top subcommands to inspect the score index.`,
	RunE: runScore,
}

// --- versions subcommand ---

var scoreVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List published scoring versions",
	RunE:  runScoreVersions,
}

// --- top subcommand ---

var scoreTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the highest ranked items of the latest run of a version",
	RunE:  runScoreTop,
}

func init() {
	pf := scoreCmd.PersistentFlags()
	pf.String("versions-file", "", "scoring versions document (default configs/scoring_versions.yaml)")
	pf.String("index-dir", "", "directory of the SQLite score index (default <storage-root>/index)")
	pf.String("scoring-version", "", "scoring version to use (default: the active version)")

	_ = viper.BindPFlag("score.versions_file", pf.Lookup("versions-file"))
	_ = viper.BindPFlag("score.index_dir", pf.Lookup("index-dir"))

	f := scoreCmd.Flags()
	f.String("date", "", "score only items enriched for this fetch date (default: every date)")
	f.String("input-prefix", "", "storage prefix of annotated input (overrides --date)")
	f.String("enrichment-version", "", "enrichment version to read (default v1)")
	f.Int("workers", 0, "goroutines scoring items (default 4)")

	_ = viper.BindPFlag("score.workers", f.Lookup("workers"))

	scoreTopCmd.Flags().Int("limit", 10, "number of items to show (0 = all)")
	scoreTopCmd.Flags().String("run", "", "run id to show instead of the latest run")
	scoreTopCmd.Flags().Bool("json", false, "output items as JSON")

	scoreCmd.AddCommand(scoreVersionsCmd)
	scoreCmd.AddCommand(scoreTopCmd)

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	defer timeStage("score")()
	ctx := cmd.Context()

	cfg, err := selectedVersion(cmd)
	if err != nil {
		return err
	}
	prefix, err := inputPrefix(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runCfg := scoringRunConfig()
	index, err := score.OpenIndex(runCfg.IndexDir)
	if err != nil {
		return err
	}
	defer index.Close()

	runner := score.NewRunner(store, index, runCfg, logger, recorder)
	_, err = runner.Run(ctx, cfg, prefix, os.Stdout)
	return err
}

func runScoreVersions(cmd *cobra.Command, args []string) error {
	index, err := score.OpenIndex(scoringRunConfig().IndexDir)
	if err != nil {
		return err
	}
	defer index.Close()

	versions, err := index.Versions(cmd.Context())
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Println("No scoring versions published.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-24s  %-12s  %-20s  %s\n", "Version", "Name", "Fingerprint", "Published", "Runs")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 86))
	for _, v := range versions {
		fmt.Fprintf(os.Stdout, "%-16s  %-24s  %-12s  %-20s  %d\n",
			v.Version, truncate(v.Name, 24), truncate(v.Fingerprint, 12),
			v.PublishedAt.UTC().Format("2006-01-02 15:04:05"), v.Runs)
	}
	return nil
}

func runScoreTop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	index, err := score.OpenIndex(scoringRunConfig().IndexDir)
	if err != nil {
		return err
	}
	defer index.Close()

	if runID == "" {
		cfg, err := selectedVersion(cmd)
		if err != nil {
			return err
		}
		runID, err = index.LatestRun(ctx, cfg.ScoringVersion)
		if err != nil {
			return err
		}
	}

	items, err := index.Top(ctx, runID, limit)
	if err != nil {
		return err
	}
	return formatTopOutput(items, runID, jsonOutput)
}

func formatTopOutput(items []types.ScoredItem, runID string, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	if len(items) == 0 {
		fmt.Printf("No scored items in run %s.\n", runID)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-9s  %-14s  %-24s  %s\n", "Rank", "Score", "Item", "Primary topic", "Recommended")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
	for _, it := range items {
		topic := "-"
		if it.PrimaryTopic != nil {
			topic = truncate(*it.PrimaryTopic, 24)
		}
		rec := "no"
		if it.IsRecommended {
			rec = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-4d  %9.3f  %-14s  %-24s  %s\n", it.Rank, it.FinalScore, truncate(it.ItemID, 14), topic, rec)
	}
	fmt.Fprintf(os.Stdout, "\n%d items (version %s, run %s)\n", len(items), items[0].ScoringVersion, runID)
	return nil
}

// --- shared helpers ---

func selectedVersion(cmd *cobra.Command) (types.ScoringConfig, error) {
	versions, err := score.LoadVersions(scoringRunConfig().VersionsFile)
	if err != nil {
		return types.ScoringConfig{}, err
	}
	requested, _ := cmd.Flags().GetString("scoring-version")
	return versions.Select(requested)
}

func inputPrefix(cmd *cobra.Command) (string, error) {
	prefix, _ := cmd.Flags().GetString("input-prefix")
	if prefix != "" {
		return prefix, nil
	}
	ev, _ := cmd.Flags().GetString("enrichment-version")
	if ev == "" {
		ev = viper.GetString("annotate.enrichment_version")
	}
	if ev == "" {
		ev = annotate.DefaultEnrichmentVersion
	}
	if cmd.Flags().Changed("date") {
		date, err := fetchDate(cmd)
		if err != nil {
			return "", err
		}
		return storage.EnrichedPrefix(ev, date), nil
	}
	return storage.EnrichmentVersionPrefix(ev), nil
}

// scoringRunConfig resolves the versions file and index directory. The
// index is a local SQLite file, so a gs:// storage root keeps it in ./index.
func scoringRunConfig() types.ScoringRunConfig {
	versionsFile := viper.GetString("score.versions_file")
	if versionsFile == "" {
		versionsFile = filepath.Join(viper.GetString("sources.dir"), "scoring_versions.yaml")
	}
	dir := viper.GetString("score.index_dir")
	if dir == "" {
		root := storageConfig().Root
		switch {
		case strings.HasPrefix(root, "gs://"):
			dir = "index"
		default:
			dir = filepath.Join(strings.TrimPrefix(root, "file://"), "index")
		}
	}
	return types.ScoringRunConfig{
		VersionsFile: versionsFile,
		IndexDir:     dir,
		Workers:      viper.GetInt("score.workers"),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
