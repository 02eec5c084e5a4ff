// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

var testTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func threshold(v float64) *float64 { return &v }

func item(id string, metrics map[string]float64, topics ...string) types.AnnotatedItem {
	return types.AnnotatedItem{ItemID: id, Annotation: types.Annotation{Metrics: metrics, Topics: topics}}
}

func TestScore_ReferenceScenario(t *testing.T) {
	cfg := types.ScoringConfig{
		ScoringVersion:          "v1",
		MetricWeight:            map[string]float64{types.MetricConceptDepth: 1.2, types.MetricHype: -2.0},
		RecommendationThreshold: threshold(5.0),
	}
	items := []types.AnnotatedItem{item("x", map[string]float64{types.MetricConceptDepth: 8, types.MetricHype: 3})}

	out := Score(items, cfg, "run-1", testTime, 1)
	require.Len(t, out, 1)
	got := out[0]
	assert.Equal(t, 3.6, got.FinalScore)
	assert.Equal(t, 1, got.Rank)
	assert.False(t, got.IsRecommended)
	assert.Nil(t, got.PrimaryTopic)
	assert.Equal(t, map[string]float64{types.MetricConceptDepth: 9.6, types.MetricHype: -6}, got.MetricBreakdown)
	assert.Equal(t, "v1", got.ScoringVersion)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, testTime, got.ComputedAt)
}

func TestScore_TopicsSeniorityAndMissingWeights(t *testing.T) {
	cfg := types.ScoringConfig{
		ScoringVersion:          "v2",
		MetricWeight:            map[string]float64{types.MetricClarity: 0.5},
		TopicWeight:             map[string]float64{"go": 2, "rust": 2, "crypto": -3},
		SeniorityWeight:         map[string]float64{"senior": 1},
		RecommendationThreshold: threshold(4),
	}
	it := item("a", map[string]float64{types.MetricClarity: 4, types.MetricNovelty: 9}, "rust", "go", "crypto", "unweighted", "go")
	it.SeniorityLevel = "senior"
	it.EnrichmentVersion, it.ModelVersion, it.PromptVersion = "e1", "m1", "p1"

	out := Score([]types.AnnotatedItem{it}, cfg, "r", testTime, 2)
	got := out[0]

	// 2 (clarity) + 0 (novelty, no weight) + 2 + 2 - 3 + 0 + 1
	assert.Equal(t, 4.0, got.FinalScore)
	assert.False(t, got.IsRecommended, "threshold comparison is strict")
	require.NotNil(t, got.PrimaryTopic)
	assert.Equal(t, "go", *got.PrimaryTopic, "ties break by label")
	assert.Equal(t, 0.0, got.MetricBreakdown[types.MetricNovelty])
	assert.Equal(t, -3.0, got.MetricBreakdown["topic:crypto"])
	assert.Equal(t, 0.0, got.MetricBreakdown["topic:unweighted"])
	assert.Equal(t, 1.0, got.MetricBreakdown["seniority:senior"])
	assert.Equal(t, "e1", got.EnrichmentVersion)
	assert.Equal(t, "m1", got.ModelVersion)
	assert.Equal(t, "p1", got.PromptVersion)
}

func TestScore_NoPositiveTopicHasNoPrimary(t *testing.T) {
	cfg := types.ScoringConfig{ScoringVersion: "v", TopicWeight: map[string]float64{"hype": -1}}
	out := Score([]types.AnnotatedItem{item("a", nil, "hype", "other")}, cfg, "r", testTime, 1)
	assert.Nil(t, out[0].PrimaryTopic)
}

func TestScore_NilThresholdRecommendsNothing(t *testing.T) {
	cfg := types.ScoringConfig{ScoringVersion: "v", MetricWeight: map[string]float64{types.MetricClarity: 10}}
	out := Score([]types.AnnotatedItem{item("a", map[string]float64{types.MetricClarity: 10})}, cfg, "r", testTime, 1)
	assert.Equal(t, 100.0, out[0].FinalScore)
	assert.False(t, out[0].IsRecommended)
}

func TestScore_RankingTiesByItemID(t *testing.T) {
	cfg := types.ScoringConfig{ScoringVersion: "v", MetricWeight: map[string]float64{types.MetricClarity: 1}}
	items := []types.AnnotatedItem{
		item("c", map[string]float64{types.MetricClarity: 5}),
		item("b", map[string]float64{types.MetricClarity: 7}),
		item("a", map[string]float64{types.MetricClarity: 5}),
		item("d", map[string]float64{types.MetricClarity: 9}),
	}
	out := Score(items, cfg, "r", testTime, 3)

	var order []string
	for i, it := range out {
		order = append(order, it.ItemID)
		assert.Equal(t, i+1, it.Rank)
	}
	assert.Equal(t, []string{"d", "b", "a", "c"}, order)
}

func TestScore_DeterministicAcrossWorkerCounts(t *testing.T) {
	cfg := types.ScoringConfig{
		ScoringVersion: "v",
		MetricWeight: map[string]float64{
			types.MetricConceptDepth: 0.1, types.MetricPracticalValue: 0.2, types.MetricTechnicalDepth: 0.3,
			types.MetricNovelty: 0.7, types.MetricClarity: 1.1, types.MetricHype: -0.3,
		},
		TopicWeight: map[string]float64{"go": 0.15, "k8s": 0.45},
	}
	var items []types.AnnotatedItem
	for i := range 200 {
		items = append(items, item(fmt.Sprintf("v%03d", i), map[string]float64{
			types.MetricConceptDepth: float64(i % 10), types.MetricPracticalValue: float64((i * 3) % 11),
			types.MetricTechnicalDepth: 3.3, types.MetricNovelty: float64(i%7) / 3,
			types.MetricClarity: 0.1 * float64(i%9), types.MetricHype: float64(i % 4),
		}, "go", "k8s"))
	}

	first := Score(items, cfg, "r", testTime, 1)
	second := Score(items, cfg, "r", testTime, 8)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ItemID, second[i].ItemID)
		assert.Equal(t, first[i].FinalScore, second[i].FinalScore)
		assert.Equal(t, first[i].Rank, second[i].Rank)
		assert.Equal(t, first[i].MetricBreakdown, second[i].MetricBreakdown)
	}
}

func TestScore_RescoringLeavesInputUntouched(t *testing.T) {
	items := []types.AnnotatedItem{item("a", map[string]float64{types.MetricClarity: 5}, "go")}
	v1 := types.ScoringConfig{ScoringVersion: "v1", MetricWeight: map[string]float64{types.MetricClarity: 1}}
	v2 := types.ScoringConfig{ScoringVersion: "v2", MetricWeight: map[string]float64{types.MetricClarity: 2}, TopicWeight: map[string]float64{"go": 1}}

	a := Score(items, v1, "r1", testTime, 1)
	b := Score(items, v2, "r2", testTime, 1)
	assert.Equal(t, 5.0, a[0].FinalScore)
	assert.Equal(t, 11.0, b[0].FinalScore)
	assert.Equal(t, map[string]float64{types.MetricClarity: 5}, items[0].Metrics)
	assert.Equal(t, []string{"go"}, items[0].Topics)
}

func TestScore_Empty(t *testing.T) {
	assert.Empty(t, Score(nil, types.ScoringConfig{ScoringVersion: "v"}, "r", testTime, 4))
}
