// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

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

	"github.com/pdiddy/catalog-engine/internal/metrics"
	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const defaultWorkers = 4

// Runner executes scoring runs against a Store and records them in the
// score index.
type Runner struct {
	store   storage.Store
	index   *Index
	cfg     types.ScoringRunConfig
	log     zerolog.Logger
	metrics *metrics.Recorder

	now func() time.Time
}

// NewRunner returns a Runner. rec may be nil.
func NewRunner(store storage.Store, index *Index, cfg types.ScoringRunConfig, log zerolog.Logger, rec *metrics.Recorder) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Runner{
		store:   store,
		index:   index,
		cfg:     cfg,
		log:     log.With().Str("component", "score").Logger(),
		metrics: rec,
		now:     time.Now,
	}
}

// Input is the validated scoring input read from a prefix.
type Input struct {
	Items      []types.AnnotatedItem
	Considered int
	Rejected   int
}

// LoadInput reads every .jsonl object under prefix in key order. Lines that
// fail to decode or validate, and lines repeating an item_id already seen,
// are counted as rejected.
func LoadInput(ctx context.Context, store storage.Store, prefix string, log zerolog.Logger) (Input, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return Input{}, fmt.Errorf("listing %s: %w", prefix, err)
	}

	var in Input
	seen := make(map[string]bool)
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl") {
			continue
		}
		data, err := store.Read(ctx, key)
		if err != nil {
			return Input{}, fmt.Errorf("reading %s: %w", store.URI(key), err)
		}

		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		line := 0
		for sc.Scan() {
			line++
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}
			in.Considered++

			var item types.AnnotatedItem
			if err := json.Unmarshal(raw, &item); err != nil {
				in.Rejected++
				log.Warn().Err(err).Str("key", key).Int("line", line).Msg("rejecting undecodable row")
				continue
			}
			if err := item.Validate(); err != nil {
				in.Rejected++
				log.Warn().Err(err).Str("key", key).Int("line", line).Msg("rejecting invalid row")
				continue
			}
			if seen[item.ItemID] {
				in.Rejected++
				log.Warn().Str("item_id", item.ItemID).Str("key", key).Msg("rejecting duplicate item")
				continue
			}
			seen[item.ItemID] = true
			in.Items = append(in.Items, item)
		}
		if err := sc.Err(); err != nil {
			return Input{}, fmt.Errorf("scanning %s: %w", store.URI(key), err)
		}
	}
	return in, nil
}

// Run scores every item under inputPrefix with cfg. The version is
// published in storage and in the index on first use; a conflicting re-use
// fails before any run output is written. Output is appended as a new run
// and never replaces earlier runs.
func (r *Runner) Run(ctx context.Context, cfg types.ScoringConfig, inputPrefix string, w io.Writer) (types.ScoringManifest, error) {
	m := types.ScoringManifest{
		RunID:          uuid.NewString(),
		ScoringVersion: cfg.ScoringVersion,
		InputPrefix:    inputPrefix,
		StartedAt:      r.now().UTC(),
	}
	if err := cfg.Validate(); err != nil {
		return m, err
	}
	log := r.log.With().Str("run_id", m.RunID).Str("scoring_version", cfg.ScoringVersion).Logger()

	fp, err := PublishConfig(ctx, r.store, cfg, m.StartedAt)
	if err != nil {
		return m, err
	}
	if _, err := r.index.Publish(ctx, cfg, m.StartedAt); err != nil {
		return m, err
	}
	m.ConfigFingerprint = fp

	in, err := LoadInput(ctx, r.store, inputPrefix, log)
	if err != nil {
		return m, err
	}
	m.ItemsConsidered = in.Considered
	m.ItemsRejected = in.Rejected

	computedAt := r.now().UTC()
	scored := Score(in.Items, cfg, m.RunID, computedAt, r.cfg.Workers)
	m.ItemsScored = len(scored)

	var out bytes.Buffer
	for _, it := range scored {
		line, err := json.Marshal(it)
		if err != nil {
			return m, fmt.Errorf("encoding %s: %w", it.ItemID, err)
		}
		out.Write(line)
		out.WriteByte('\n')
	}

	m.OutputKey = storage.ScoredRunKey(cfg.ScoringVersion, m.RunID)
	if err := r.writeOnce(ctx, m.OutputKey, out.Bytes()); err != nil {
		return m, err
	}

	m.FinishedAt = r.now().UTC()
	m.Success = true
	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := r.writeOnce(ctx, storage.ScoredManifestKey(cfg.ScoringVersion, m.RunID), append(manifest, '\n')); err != nil {
		return m, err
	}

	if err := r.index.AppendRun(ctx, m, scored); err != nil {
		return m, fmt.Errorf("indexing run: %w", err)
	}

	r.metrics.Scored(m.ItemsScored, m.ItemsRejected)
	recommended := 0
	for _, it := range scored {
		if it.IsRecommended {
			recommended++
		}
	}
	fmt.Fprintf(w, "Scoring summary: %d scored, %d rejected, %d recommended (version %s, run %s)\n",
		m.ItemsScored, m.ItemsRejected, recommended, cfg.ScoringVersion, m.RunID)
	fmt.Fprintf(w, "output: %s\n", r.store.URI(m.OutputKey))
	log.Info().Int("scored", m.ItemsScored).Int("rejected", m.ItemsRejected).
		Int("recommended", recommended).Msg("scoring run finished")
	return m, nil
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
