// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compact merges the per-item raw records of a partition into one
// deduplicated, append-only JSONL stream and removes the originals once the
// merge is confirmed.
package compact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/catalog-engine/internal/metrics"
	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// ErrPartitionLocked is returned when another run holds the partition lock.
var ErrPartitionLocked = errors.New("partition is locked by another compaction")

const (
	defaultWorkers = 4
	stampLayout    = "20060102T150405Z"
)

// Compactor compacts partitions in a Store.
type Compactor struct {
	store   storage.Store
	cfg     types.CompactionConfig
	log     zerolog.Logger
	metrics *metrics.Recorder

	now func() time.Time
}

// New returns a Compactor. rec may be nil.
func New(store storage.Store, cfg types.CompactionConfig, log zerolog.Logger, rec *metrics.Recorder) *Compactor {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Compactor{
		store:   store,
		cfg:     cfg,
		log:     log.With().Str("component", "compact").Logger(),
		metrics: rec,
		now:     time.Now,
	}
}

type partitionKeys struct {
	dir, compacted, manifest, lock string
}

func keysFor(p types.Partition) (partitionKeys, error) {
	var k partitionKeys
	var err error
	if k.dir, err = storage.PartitionDir(p); err != nil {
		return k, err
	}
	k.compacted, _ = storage.CompactedKey(p)
	k.manifest, _ = storage.ManifestKey(p)
	k.lock, _ = storage.LockKey(p)
	return k, nil
}

// CompactPartition runs one compaction of p. Per-record problems are counted
// in the manifest and keep the originals in place; the returned error is
// non-nil only when the partition is locked or its manifest cannot be
// written. An absent or empty partition returns a zero manifest that is not
// stored.
func (c *Compactor) CompactPartition(ctx context.Context, p types.Partition) (types.CompactionManifest, error) {
	m := types.CompactionManifest{
		RunID:     uuid.NewString(),
		Source:    p.Kind,
		SourceKey: p.Key,
		FetchDate: p.FetchDate,
		StartedAt: c.now().UTC(),
	}
	keys, err := keysFor(p)
	if err != nil {
		return m, err
	}
	log := c.log.With().Str("partition", keys.dir).Str("run_id", m.RunID).Logger()

	recordKeys, hasCompacted, err := c.scan(ctx, keys)
	if err != nil {
		return m, err
	}
	if len(recordKeys) == 0 && !hasCompacted {
		log.Debug().Msg("partition empty, nothing to compact")
		m.FinishedAt = c.now().UTC()
		m.Success = true
		return m, nil
	}

	if err := c.store.CreateExclusive(ctx, keys.lock, []byte(m.RunID+" "+m.StartedAt.Format(time.RFC3339)+"\n")); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return m, fmt.Errorf("%s: %w", keys.dir, ErrPartitionLocked)
		}
		return m, fmt.Errorf("acquiring lock %s: %w", c.store.URI(keys.lock), err)
	}
	defer func() {
		if err := c.store.Delete(context.WithoutCancel(ctx), keys.lock); err != nil {
			log.Error().Err(err).Msg("releasing compaction lock")
		}
	}()

	// Rescan under the lock so files written meanwhile are included.
	if recordKeys, _, err = c.scan(ctx, keys); err != nil {
		return m, err
	}
	m.FilesFound = len(recordKeys)

	existing, err := c.readStream(ctx, keys.compacted)
	if err != nil {
		return m, err
	}
	present, badLines := indexStream(existing)
	m.Errors += badLines
	if badLines > 0 {
		log.Warn().Int("lines", badLines).Msg("compacted stream holds unparsable lines")
	}

	var appended bytes.Buffer
	for _, key := range recordKeys {
		line, rec, err := c.loadRecord(ctx, key, keys.dir)
		if err != nil {
			m.Errors++
			log.Warn().Err(err).Str("key", key).Msg("skipping record")
			continue
		}
		if present[rec.ItemID] {
			m.RecordsSkipped++
			continue
		}
		present[rec.ItemID] = true
		appended.Write(line)
		appended.WriteByte('\n')
		m.RecordsAppended++
		m.AppendedIDs = append(m.AppendedIDs, rec.ItemID)
	}

	if m.RecordsAppended > 0 {
		stream := existing
		if len(stream) > 0 && stream[len(stream)-1] != '\n' {
			stream = append(stream, '\n')
		}
		stream = append(stream, appended.Bytes()...)
		if err := c.store.Replace(ctx, keys.compacted, stream); err != nil {
			log.Error().Err(err).Msg("writing compacted stream")
			m.Errors++
			for _, id := range m.AppendedIDs {
				delete(present, id)
			}
			m.RecordsAppended = 0
			m.AppendedIDs = nil
		}
	}
	m.TotalRecords = len(present)

	if m.Errors == 0 {
		for _, key := range recordKeys {
			if err := c.store.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("removing original")
				continue
			}
			m.OriginalsRemoved++
		}
	}

	m.FinishedAt = c.now().UTC()
	m.Success = m.Errors == 0
	if err := c.writeManifest(ctx, p, keys, m); err != nil {
		return m, err
	}

	log.Info().Int("found", m.FilesFound).Int("appended", m.RecordsAppended).
		Int("skipped", m.RecordsSkipped).Int("errors", m.Errors).
		Int("total", m.TotalRecords).Bool("success", m.Success).Msg("partition compacted")
	return m, nil
}

// scan lists the per-item records of a partition and reports whether a
// compacted stream exists.
func (c *Compactor) scan(ctx context.Context, keys partitionKeys) ([]string, bool, error) {
	all, err := c.store.List(ctx, keys.dir)
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", keys.dir, err)
	}
	var records []string
	hasCompacted := false
	for _, key := range all {
		switch {
		case key == keys.compacted:
			hasCompacted = true
		case storage.IsRecordKey(key) && parentOf(key) == keys.dir:
			records = append(records, key)
		}
	}
	return records, hasCompacted, nil
}

func parentOf(key string) string {
	base := storage.Base(key)
	return key[:len(key)-len(base)-1]
}

func (c *Compactor) readStream(ctx context.Context, key string) ([]byte, error) {
	data, err := c.store.Read(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.store.URI(key), err)
	}
	return data, nil
}

// loadRecord reads and checks one per-item record, returning its single-line
// encoding.
func (c *Compactor) loadRecord(ctx context.Context, key, dir string) ([]byte, types.RawRecord, error) {
	var rec types.RawRecord
	data, err := c.store.Read(ctx, key)
	if err != nil {
		return nil, rec, fmt.Errorf("reading: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, rec, fmt.Errorf("decoding: %w", err)
	}
	if err := checkPlacement(rec, key, dir); err != nil {
		return nil, rec, err
	}
	var line bytes.Buffer
	if err := json.Compact(&line, data); err != nil {
		return nil, rec, fmt.Errorf("compacting: %w", err)
	}
	return line.Bytes(), rec, nil
}

// checkPlacement rejects records that are malformed or stored under
// coordinates other than their own.
func checkPlacement(rec types.RawRecord, key, dir string) error {
	if err := rec.Check(); err != nil {
		return err
	}
	want, err := storage.RecordKey(rec.Partition(), rec.ItemID)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ItemID, err)
	}
	if want != key || parentOf(want) != dir {
		return fmt.Errorf("record %s belongs at %s", rec.ItemID, want)
	}
	return nil
}

// indexStream returns the item ids present in a compacted stream and the
// number of lines that could not be parsed.
func indexStream(stream []byte) (map[string]bool, int) {
	present := make(map[string]bool)
	bad := 0
	for _, line := range bytes.Split(stream, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var head struct {
			ItemID string `json:"item_id"`
		}
		if err := json.Unmarshal(line, &head); err != nil || head.ItemID == "" {
			bad++
			continue
		}
		present[head.ItemID] = true
	}
	return present, bad
}

func (c *Compactor) writeManifest(ctx context.Context, p types.Partition, keys partitionKeys, m types.CompactionManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	history, err := storage.ManifestHistoryKey(p, m.StartedAt.Format(stampLayout), m.RunID)
	if err != nil {
		return err
	}
	if _, err := c.store.WriteOnce(ctx, history, data); err != nil {
		return fmt.Errorf("writing manifest %s: %w", c.store.URI(history), err)
	}
	if err := c.store.Replace(ctx, keys.manifest, data); err != nil {
		return fmt.Errorf("writing manifest %s: %w", c.store.URI(keys.manifest), err)
	}
	return nil
}
