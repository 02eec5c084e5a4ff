package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/catalog-engine/internal/compact"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Merge raw per-item records into one deduplicated stream per partition",
	Long: `Compact merges the per-item raw records of each partition into
_compacted.jsonl, appending only items not already present, and writes a
compaction manifest. Original files are removed only when the run had no
errors. A partition locked by another compaction is reported and left alone.

By default partitions are discovered from storage for the date; use
--from-config to compact exactly the configured channels and keywords.`,
	RunE: runCompact,
}

func init() {
	f := compactCmd.Flags()
	f.String("date", "", "fetch date YYYY-MM-DD (default today, UTC)")
	f.Bool("from-config", false, "compact the configured source entries instead of discovering partitions")
	f.StringArray("channel", nil, "channel id to compact (repeatable, implies --from-config)")
	f.StringArray("keyword", nil, "keyword to compact (repeatable, implies --from-config)")
	f.Int("workers", 0, "partitions compacted in parallel (default 4)")

	_ = viper.BindPFlag("compact.workers", f.Lookup("workers"))

	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, args []string) error {
	defer timeStage("compact")()
	ctx := cmd.Context()

	date, err := fetchDate(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fromConfig, _ := cmd.Flags().GetBool("from-config")
	if cmd.Flags().Changed("channel") || cmd.Flags().Changed("keyword") {
		fromConfig = true
	}

	var partitions []types.Partition
	if fromConfig {
		entries, err := sourceEntries(cmd, 0)
		if err != nil {
			return err
		}
		partitions = compact.PartitionsFor(entries, date)
	} else {
		partitions, err = compact.DiscoverPartitions(ctx, store, date)
		if err != nil {
			return err
		}
	}
	if len(partitions) == 0 {
		fmt.Fprintf(os.Stdout, "No partitions found for %s.\n", date)
		return nil
	}

	c := compact.New(store, types.CompactionConfig{Workers: viper.GetInt("compact.workers")}, logger, recorder)
	result := c.Run(ctx, partitions, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d partition(s) failed compaction", result.Failed)
	}
	return nil
}
