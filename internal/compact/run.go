// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// Result is the outcome of compacting one partition.
type Result struct {
	Partition types.Partition
	Manifest  types.CompactionManifest
	Err       error
}

// BatchResult summarises a compaction run over many partitions.
type BatchResult struct {
	Compacted int
	Empty     int
	Locked    int
	Failed    int
	Appended  int
	Results   []Result
}

// HasFailures reports whether any partition failed or finished with errors.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Run compacts partitions concurrently, at most cfg.Workers at a time, and
// prints one status line per partition to w.
func (c *Compactor) Run(ctx context.Context, partitions []types.Partition, w io.Writer) BatchResult {
	results := make([]Result, len(partitions))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, p := range partitions {
		g.Go(func() error {
			m, err := c.CompactPartition(ctx, p)
			results[i] = Result{Partition: p, Manifest: m, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := BatchResult{Results: results}
	for _, r := range results {
		var outcome string
		switch {
		case errors.Is(r.Err, ErrPartitionLocked):
			outcome = "locked"
			batch.Locked++
			fmt.Fprintf(w, "locked:    %s\n", r.Partition)
		case r.Err != nil:
			outcome = "failed"
			batch.Failed++
			fmt.Fprintf(w, "failed:    %s (%v)\n", r.Partition, r.Err)
		case r.Manifest.FilesFound == 0 && r.Manifest.TotalRecords == 0:
			outcome = "empty"
			batch.Empty++
			fmt.Fprintf(w, "empty:     %s\n", r.Partition)
		case !r.Manifest.Success:
			outcome = "failed"
			batch.Failed++
			fmt.Fprintf(w, "errors:    %s (%d appended, %d errors, originals kept)\n",
				r.Partition, r.Manifest.RecordsAppended, r.Manifest.Errors)
		default:
			outcome = "success"
			batch.Compacted++
			fmt.Fprintf(w, "compacted: %s (%d appended, %d skipped, %d total)\n",
				r.Partition, r.Manifest.RecordsAppended, r.Manifest.RecordsSkipped, r.Manifest.TotalRecords)
		}
		batch.Appended += r.Manifest.RecordsAppended
		c.metrics.Compaction(outcome, r.Manifest.RecordsAppended)
	}

	fmt.Fprintf(w, "\nCompaction summary: %d compacted, %d empty, %d locked, %d failed, %d records appended\n",
		batch.Compacted, batch.Empty, batch.Locked, batch.Failed, batch.Appended)
	return batch
}

// PartitionsFor returns the partitions written by entries on fetchDate.
func PartitionsFor(entries []types.SourceEntry, fetchDate string) []types.Partition {
	out := make([]types.Partition, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.PartitionOf(e, fetchDate))
	}
	return out
}

// DiscoverPartitions lists every partition of every source kind present
// for fetchDate. Keyword partitions carry the sanitised keyword as key.
func DiscoverPartitions(ctx context.Context, store storage.Store, fetchDate string) ([]types.Partition, error) {
	seen := make(map[string]types.Partition)
	for _, kind := range []types.SourceKind{types.SourceChannel, types.SourceSearch} {
		keys, err := store.List(ctx, storage.SourceDatePrefix(kind, fetchDate))
		if err != nil {
			return nil, fmt.Errorf("listing %s partitions: %w", kind, err)
		}
		for _, key := range keys {
			p, err := storage.ParsePartition(key)
			if err != nil {
				continue
			}
			dir, err := storage.PartitionDir(p)
			if err != nil {
				continue
			}
			seen[dir] = p
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	out := make([]types.Partition, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, seen[dir])
	}
	return out, nil
}
