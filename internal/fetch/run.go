// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// Run fetches every entry for fetchDate on a bounded pool of workers,
// printing per-entry status to w, and stores the run report. Entry failures
// never abort the run; the returned error is non-nil only when the report
// could not be written.
func (f *Fetcher) Run(ctx context.Context, entries []types.SourceEntry, fetchDate string, w io.Writer) (types.FetchReport, error) {
	report := types.FetchReport{
		RunID:     uuid.NewString(),
		FetchDate: fetchDate,
		StartedAt: f.now().UTC(),
		Entries:   make([]types.EntryResult, len(entries)),
	}
	f.log.Info().Str("run_id", report.RunID).Str("fetch_date", fetchDate).
		Int("entries", len(entries)).Int("workers", f.cfg.Workers).Msg("fetch run started")

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for i, entry := range entries {
		g.Go(func() error {
			report.Entries[i] = f.FetchEntry(ctx, entry, fetchDate)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range report.Entries {
		switch res.Status {
		case types.EntryCompleted:
			fmt.Fprintf(w, "completed: %s %s (%d fetched, %d written, %d existing, %d invalid)\n",
				res.Kind, res.Key, res.Fetched, res.Written, res.Existing, res.Invalid)
		default:
			fmt.Fprintf(w, "%s:   %s %s (%s)\n", res.Status, res.Kind, res.Key, res.Error)
		}
	}

	report.FinishedAt = f.now().UTC()
	report.Status = report.ComputeStatus()
	fmt.Fprintf(w, "\nFetch summary: %d completed, %d skipped, %d failed, %d records written (status: %s)\n",
		report.Count(types.EntryCompleted), report.Count(types.EntrySkipped),
		report.Count(types.EntryFailed), report.Written(), report.Status)

	if err := f.writeReport(ctx, report); err != nil {
		return report, err
	}
	f.log.Info().Str("run_id", report.RunID).Str("status", string(report.Status)).Msg("fetch run finished")
	return report, nil
}

func (f *Fetcher) writeReport(ctx context.Context, report types.FetchReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding fetch report: %w", err)
	}
	key := storage.FetchReportKey(report.FetchDate, report.RunID)
	written, err := f.store.WriteOnce(ctx, key, append(data, '\n'))
	if err != nil {
		return fmt.Errorf("writing fetch report %s: %w", f.store.URI(key), err)
	}
	if !written {
		return fmt.Errorf("fetch report %s already exists", f.store.URI(key))
	}
	return nil
}
