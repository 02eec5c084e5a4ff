// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// publishedConfig is the storage record of a published scoring version.
// It is written once and never replaced; the SQLite index only caches it.
type publishedConfig struct {
	ScoringVersion string              `json:"scoring_version"`
	Fingerprint    string              `json:"fingerprint"`
	PublishedAt    time.Time           `json:"published_at"`
	Config         types.ScoringConfig `json:"config"`
}

// PublishConfig records cfg under its version id in store on first use and
// returns its fingerprint. A version already published with different
// weights fails with ErrVersionConflict, whichever host published it.
func PublishConfig(ctx context.Context, store storage.Store, cfg types.ScoringConfig, now time.Time) (string, error) {
	fp := Fingerprint(cfg)
	key := storage.ScoringConfigKey(cfg.ScoringVersion)

	body, err := json.MarshalIndent(publishedConfig{
		ScoringVersion: cfg.ScoringVersion,
		Fingerprint:    fp,
		PublishedAt:    now.UTC(),
		Config:         cfg,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding scoring config: %w", err)
	}
	written, err := store.WriteOnce(ctx, key, append(body, '\n'))
	if err != nil {
		return "", fmt.Errorf("publishing version %q: %w", cfg.ScoringVersion, err)
	}
	if written {
		return fp, nil
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		return "", fmt.Errorf("reading published version %q: %w", cfg.ScoringVersion, err)
	}
	var stored publishedConfig
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", fmt.Errorf("decoding %s: %w", store.URI(key), err)
	}
	published := stored.Fingerprint
	if published == "" {
		published = Fingerprint(stored.Config)
	}
	if published != fp {
		return "", fmt.Errorf("%q (published %.12s, requested %.12s): %w", cfg.ScoringVersion, published, fp, ErrVersionConflict)
	}
	return fp, nil
}
