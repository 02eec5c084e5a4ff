// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score computes version-stamped scores and rankings from annotated
// items, records published scoring versions, and appends every run to the
// scored output area and the score index.
package score

import (
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	topicPrefix     = "topic:"
	seniorityPrefix = "seniority:"

	// precision bounds stored scores to six decimals.
	precision = 1e6
)

// Score computes final_score, breakdown and primary topic for every item
// under cfg and returns the items ranked by final_score descending, ties by
// item_id ascending. It is pure: the same items and cfg always produce the
// same scores, ranks and breakdowns.
func Score(items []types.AnnotatedItem, cfg types.ScoringConfig, runID string, computedAt time.Time, workers int) []types.ScoredItem {
	out := make([]types.ScoredItem, len(items))
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range items {
		g.Go(func() error {
			out[i] = scoreItem(items[i], cfg)
			return nil
		})
	}
	_ = g.Wait()

	Rank(out)
	for i := range out {
		out[i].ScoringVersion = cfg.ScoringVersion
		out[i].RunID = runID
		out[i].ComputedAt = computedAt
	}
	return out
}

// Rank sorts items by final_score descending, then item_id ascending, and
// assigns 1-based ranks.
func Rank(items []types.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FinalScore != items[j].FinalScore {
			return items[i].FinalScore > items[j].FinalScore
		}
		return items[i].ItemID < items[j].ItemID
	})
	for i := range items {
		items[i].Rank = i + 1
	}
}

func scoreItem(item types.AnnotatedItem, cfg types.ScoringConfig) types.ScoredItem {
	breakdown := make(map[string]float64, len(item.Metrics)+len(item.Topics)+1)

	for name, value := range item.Metrics {
		breakdown[name] = round(value * cfg.MetricWeight[name])
	}

	var primary *string
	best := 0.0
	for _, topic := range uniqueSorted(item.Topics) {
		contribution := round(cfg.TopicWeight[topic])
		breakdown[topicPrefix+topic] = contribution
		// Topics are visited in ascending order so ties keep the first label.
		if contribution > best {
			best = contribution
			t := topic
			primary = &t
		}
	}

	if item.SeniorityLevel != "" {
		breakdown[seniorityPrefix+item.SeniorityLevel] = round(cfg.SeniorityWeight[item.SeniorityLevel])
	}

	total := 0.0
	for _, key := range sortedKeys(breakdown) {
		total += breakdown[key]
	}
	total = round(total)

	recommended := cfg.RecommendationThreshold != nil && total > *cfg.RecommendationThreshold

	return types.ScoredItem{
		ItemID:            item.ItemID,
		FinalScore:        total,
		PrimaryTopic:      primary,
		MetricBreakdown:   breakdown,
		IsRecommended:     recommended,
		EnrichmentVersion: item.EnrichmentVersion,
		ModelVersion:      item.ModelVersion,
		PromptVersion:     item.PromptVersion,
	}
}

func round(v float64) float64 {
	r := math.Round(v*precision) / precision
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
