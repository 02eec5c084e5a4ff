// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch ingests catalog items into the raw store, one immutable
// record per item, source entry and fetch date.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pdiddy/catalog-engine/internal/catalog"
	"github.com/pdiddy/catalog-engine/internal/metrics"
	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	defaultWorkers    = 4
	defaultBatchSize  = catalog.DefaultBatchSize
	defaultMaxResults = 30
)

// Fetcher writes catalog items for source entries into a Store.
type Fetcher struct {
	store   storage.Store
	catalog catalog.Catalog
	cfg     types.FetchConfig
	log     zerolog.Logger
	metrics *metrics.Recorder

	now func() time.Time
}

// New returns a Fetcher. rec may be nil.
func New(store storage.Store, cat catalog.Catalog, cfg types.FetchConfig, log zerolog.Logger, rec *metrics.Recorder) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > catalog.DefaultBatchSize {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = defaultMaxResults
	}
	return &Fetcher{
		store:   store,
		catalog: cat,
		cfg:     cfg,
		log:     log.With().Str("component", "fetch").Logger(),
		metrics: rec,
		now:     time.Now,
	}
}

// FetchEntry lists and stores the items of one source entry. Failures are
// reported in the result rather than returned: a quota failure marks the
// entry skipped, any other error marks it failed.
func (f *Fetcher) FetchEntry(ctx context.Context, entry types.SourceEntry, fetchDate string) types.EntryResult {
	res := types.EntryResult{Kind: entry.Kind, Key: entry.Key}
	if entry.MaxResults <= 0 {
		entry.MaxResults = f.cfg.DefaultMaxResults
	}
	log := f.log.With().Str("source", string(entry.Kind)).Str("source_key", entry.Key).Str("fetch_date", fetchDate).Logger()

	err := f.fetchEntry(ctx, entry, fetchDate, &res, log)
	switch {
	case err == nil:
		res.Status = types.EntryCompleted
	case errors.Is(err, catalog.ErrQuotaExceeded):
		res.Status = types.EntrySkipped
		res.Error = err.Error()
		log.Error().Err(err).Msg("quota or permission failure, entry aborted")
	default:
		res.Status = types.EntryFailed
		res.Error = err.Error()
		log.Error().Err(err).Msg("entry failed")
	}

	f.metrics.FetchEntry(string(res.Status), res.Written, res.Existing, res.Invalid)
	return res
}

func (f *Fetcher) fetchEntry(ctx context.Context, entry types.SourceEntry, fetchDate string, res *types.EntryResult, log zerolog.Logger) error {
	p := types.PartitionOf(entry, fetchDate)
	if _, err := storage.PartitionDir(p); err != nil {
		return err
	}

	ids, err := f.catalog.ListItemIDs(ctx, entry)
	if err != nil {
		return fmt.Errorf("listing items for %s: %w", entry.Label(), err)
	}
	log.Info().Int("ids", len(ids)).Int("max_results", entry.MaxResults).Msg("listed item ids")

	for start := 0; start < len(ids); start += f.cfg.BatchSize {
		end := min(start+f.cfg.BatchSize, len(ids))
		items, err := f.catalog.FetchItems(ctx, ids[start:end])
		if err != nil {
			return fmt.Errorf("fetching details for %s: %w", entry.Label(), err)
		}
		res.Fetched += len(items)

		for _, item := range items {
			written, err := f.storeItem(ctx, p, item)
			switch {
			case err != nil && errors.Is(err, errInvalidItem):
				res.Invalid++
				log.Warn().Err(err).Msg("invalid detail document")
			case err != nil:
				return err
			case written:
				res.Written++
			default:
				res.Existing++
			}
		}
	}

	log.Info().Int("fetched", res.Fetched).Int("written", res.Written).
		Int("existing", res.Existing).Int("invalid", res.Invalid).Msg("entry done")
	return nil
}

var errInvalidItem = errors.New("invalid detail document")

// storeItem writes the envelope for one item unless a record already exists
// at its coordinate.
func (f *Fetcher) storeItem(ctx context.Context, p types.Partition, item catalog.Item) (bool, error) {
	if item.ID == "" {
		return false, fmt.Errorf("%w: missing id", errInvalidItem)
	}
	key, err := storage.RecordKey(p, item.ID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errInvalidItem, err)
	}

	rec := types.RawRecord{
		ItemID:    item.ID,
		Source:    p.Kind,
		SourceKey: p.Key,
		FetchDate: p.FetchDate,
		FetchedAt: f.now().UTC(),
		Payload:   item.Payload,
	}
	if err := rec.Check(); err != nil {
		return false, fmt.Errorf("%w: %v", errInvalidItem, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("%w: encoding %s: %v", errInvalidItem, item.ID, err)
	}

	written, err := f.store.WriteOnce(ctx, key, data)
	if err != nil {
		return false, fmt.Errorf("writing %s: %w", f.store.URI(key), err)
	}
	return written, nil
}
