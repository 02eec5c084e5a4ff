// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

var (
	// ErrUnknownVersion is returned when a scoring version is not defined.
	ErrUnknownVersion = errors.New("unknown scoring version")

	// ErrVersionConflict is returned when a version id is reused with
	// different weights than it was published with.
	ErrVersionConflict = errors.New("scoring version already published with different weights")
)

// Versions is the scoring versions document.
type Versions struct {
	// Active is the version used when none is requested.
	Active   string                `yaml:"active"`
	Versions []types.ScoringConfig `yaml:"versions"`
}

// LoadVersions reads and checks a scoring versions document.
func LoadVersions(path string) (Versions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Versions{}, fmt.Errorf("reading scoring versions %s: %w", path, err)
	}
	return ParseVersions(data)
}

// ParseVersions decodes a scoring versions document. Every version must
// carry an id, ids must be unique and the active version must exist.
func ParseVersions(data []byte) (Versions, error) {
	var v Versions
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Versions{}, fmt.Errorf("parsing scoring versions: %w", err)
	}
	seen := make(map[string]bool, len(v.Versions))
	for _, cfg := range v.Versions {
		if err := cfg.Validate(); err != nil {
			return Versions{}, err
		}
		if seen[cfg.ScoringVersion] {
			return Versions{}, fmt.Errorf("scoring version %q defined twice", cfg.ScoringVersion)
		}
		seen[cfg.ScoringVersion] = true
	}
	if v.Active != "" && !seen[v.Active] {
		return Versions{}, fmt.Errorf("active scoring version %q: %w", v.Active, ErrUnknownVersion)
	}
	return v, nil
}

// Select returns the config for version, or the active config when version
// is empty.
func (v Versions) Select(version string) (types.ScoringConfig, error) {
	if version == "" {
		version = v.Active
	}
	if version == "" {
		return types.ScoringConfig{}, fmt.Errorf("no scoring version requested and no active version set: %w", ErrUnknownVersion)
	}
	for _, cfg := range v.Versions {
		if cfg.ScoringVersion == version {
			return cfg, nil
		}
	}
	return types.ScoringConfig{}, fmt.Errorf("%q: %w", version, ErrUnknownVersion)
}

// Fingerprint returns a stable hash of the weights and threshold of cfg.
// Name and description are not part of it.
func Fingerprint(cfg types.ScoringConfig) string {
	var b strings.Builder
	writeWeights(&b, "metric", cfg.MetricWeight)
	writeWeights(&b, "topic", cfg.TopicWeight)
	writeWeights(&b, "seniority", cfg.SeniorityWeight)
	if cfg.RecommendationThreshold != nil {
		fmt.Fprintf(&b, "threshold=%s\n", formatFloat(*cfg.RecommendationThreshold))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeWeights(b *strings.Builder, kind string, weights map[string]float64) {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		// Zero weights are equivalent to absent ones.
		if weights[k] == 0 {
			continue
		}
		fmt.Fprintf(b, "%s:%q=%s\n", kind, k, formatFloat(weights[k]))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
