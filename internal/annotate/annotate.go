// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package annotate attaches versioned annotations to raw records and writes
// them as the enriched input of the scoring stage.
package annotate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/catalog-engine/internal/compact"
	"github.com/pdiddy/catalog-engine/internal/metrics"
	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const defaultWorkers = 2

// DefaultEnrichmentVersion is stamped on enriched rows when none is configured.
const DefaultEnrichmentVersion = "v1"

// Annotator produces an annotation for one raw record. Implementations
// return annotations that pass Annotation.Validate and Annotation.Complete.
type Annotator interface {
	Annotate(ctx context.Context, rec types.RawRecord) (types.Annotation, error)
}

// Runner annotates the records of a fetch date.
type Runner struct {
	store     storage.Store
	annotator Annotator
	cfg       types.AnnotationConfig
	log       zerolog.Logger
	metrics   *metrics.Recorder

	now func() time.Time
}

// NewRunner returns a Runner. rec may be nil.
func NewRunner(store storage.Store, annotator Annotator, cfg types.AnnotationConfig, log zerolog.Logger, rec *metrics.Recorder) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.EnrichmentVersion == "" {
		cfg.EnrichmentVersion = DefaultEnrichmentVersion
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = cfg.Model
	}
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = DefaultPromptVersion
	}
	return &Runner{
		store:     store,
		annotator: annotator,
		cfg:       cfg,
		log:       log.With().Str("component", "annotate").Logger(),
		metrics:   rec,
		now:       time.Now,
	}
}

// Run annotates every record of the given partitions that is not yet
// enriched under the configured enrichment version, writes the new rows to
// one part file and stores the run manifest. Items that fail annotation are
// counted and left for a later run.
func (r *Runner) Run(ctx context.Context, partitions []types.Partition, fetchDate string, w io.Writer) (types.EnrichmentManifest, error) {
	m := types.EnrichmentManifest{
		RunID:             uuid.NewString(),
		FetchDate:         fetchDate,
		EnrichmentVersion: r.cfg.EnrichmentVersion,
		ModelVersion:      r.cfg.ModelVersion,
		PromptVersion:     r.cfg.PromptVersion,
		StartedAt:         r.now().UTC(),
	}
	log := r.log.With().Str("run_id", m.RunID).Str("enrichment_version", m.EnrichmentVersion).Logger()

	// An item is enriched once per enrichment version, on the first date it
	// was seen; re-fetches on later dates are skipped.
	done, err := EnrichedIDs(ctx, r.store, storage.EnrichmentVersionPrefix(m.EnrichmentVersion))
	if err != nil {
		return m, err
	}

	var pending []types.RawRecord
	seen := make(map[string]bool)
	for _, p := range partitions {
		records, invalid, err := compact.ReadPartition(ctx, r.store, p)
		if err != nil {
			return m, fmt.Errorf("reading partition %s: %w", p, err)
		}
		if invalid > 0 {
			log.Warn().Str("partition", p.String()).Int("invalid", invalid).Msg("skipping unreadable records")
		}
		for _, rec := range records {
			if seen[rec.ItemID] {
				continue
			}
			seen[rec.ItemID] = true
			if done[rec.ItemID] {
				m.Skipped++
				continue
			}
			pending = append(pending, rec)
		}
	}

	results := make([]*types.AnnotatedItem, len(pending))
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i, rec := range pending {
		g.Go(func() error {
			item, err := r.annotate(ctx, rec)
			if err != nil {
				log.Warn().Err(err).Str("item_id", rec.ItemID).Msg("annotation failed")
				return nil
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return m, err
	}

	var out bytes.Buffer
	for i, item := range results {
		if item == nil {
			m.Failed++
			fmt.Fprintf(w, "failed:    %s\n", pending[i].ItemID)
			continue
		}
		line, err := json.Marshal(item)
		if err != nil {
			return m, fmt.Errorf("encoding %s: %w", item.ItemID, err)
		}
		out.Write(line)
		out.WriteByte('\n')
		m.Annotated++
	}

	if m.Annotated > 0 {
		m.OutputKey = storage.EnrichedPartKey(m.EnrichmentVersion, fetchDate, m.RunID)
		if err := r.writeOnce(ctx, m.OutputKey, out.Bytes()); err != nil {
			return m, err
		}
	}

	m.FinishedAt = r.now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := r.writeOnce(ctx, storage.EnrichedManifestKey(m.EnrichmentVersion, fetchDate, m.RunID), append(data, '\n')); err != nil {
		return m, err
	}

	r.metrics.Annotation("annotated", m.Annotated)
	r.metrics.Annotation("skipped", m.Skipped)
	r.metrics.Annotation("failed", m.Failed)
	fmt.Fprintf(w, "\nAnnotation summary: %d annotated, %d already enriched, %d failed (enrichment %s)\n",
		m.Annotated, m.Skipped, m.Failed, m.EnrichmentVersion)
	log.Info().Int("annotated", m.Annotated).Int("skipped", m.Skipped).Int("failed", m.Failed).Msg("annotation run finished")
	return m, nil
}

func (r *Runner) annotate(ctx context.Context, rec types.RawRecord) (*types.AnnotatedItem, error) {
	a, err := r.annotator.Annotate(ctx, rec)
	if err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := a.Complete(); err != nil {
		return nil, err
	}
	return &types.AnnotatedItem{
		ItemID:            rec.ItemID,
		Title:             ParseDetails(rec.Payload).Title,
		Source:            rec.Source,
		SourceKey:         rec.SourceKey,
		FetchDate:         rec.FetchDate,
		Annotation:        a,
		EnrichmentVersion: r.cfg.EnrichmentVersion,
		ModelVersion:      r.cfg.ModelVersion,
		PromptVersion:     r.cfg.PromptVersion,
		AnnotatedAt:       r.now().UTC(),
	}, nil
}

func (r *Runner) writeOnce(ctx context.Context, key string, data []byte) error {
	written, err := r.store.WriteOnce(ctx, key, data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", r.store.URI(key), err)
	}
	if !written {
		return fmt.Errorf("%s already exists", r.store.URI(key))
	}
	return nil
}

// EnrichedIDs returns the item ids present in the part files under prefix.
func EnrichedIDs(ctx context.Context, store storage.Store, prefix string) (map[string]bool, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	ids := make(map[string]bool)
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl") {
			continue
		}
		data, err := store.Read(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", store.URI(key), err)
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		for sc.Scan() {
			var head struct {
				ItemID string `json:"item_id"`
			}
			if json.Unmarshal(sc.Bytes(), &head) == nil && head.ItemID != "" {
				ids[head.ItemID] = true
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", store.URI(key), err)
		}
	}
	return ids, nil
}
