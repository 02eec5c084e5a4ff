// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullMetrics(v float64) map[string]float64 {
	m := make(map[string]float64)
	for _, name := range StandardMetrics {
		m[name] = v
	}
	return m
}

func TestAnnotationValidate(t *testing.T) {
	tests := []struct {
		name    string
		a       Annotation
		wantErr bool
	}{
		{"valid", Annotation{Metrics: fullMetrics(5), Topics: []string{"go"}, Confidence: 0.8}, false},
		{"no metrics", Annotation{Confidence: 0.5}, true},
		{"metric above range", Annotation{Metrics: map[string]float64{MetricHype: 11}}, true},
		{"metric below range", Annotation{Metrics: map[string]float64{MetricHype: -1}}, true},
		{"empty metric name", Annotation{Metrics: map[string]float64{"": 1}}, true},
		{"empty topic", Annotation{Metrics: fullMetrics(1), Topics: []string{""}}, true},
		{"confidence above one", Annotation{Metrics: fullMetrics(1), Confidence: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnnotationComplete(t *testing.T) {
	a := Annotation{Metrics: fullMetrics(3)}
	assert.NoError(t, a.Complete())
	delete(a.Metrics, MetricNovelty)
	assert.ErrorContains(t, a.Complete(), MetricNovelty)
}

func TestAnnotatedItemValidate(t *testing.T) {
	ok := AnnotatedItem{ItemID: "v1", Annotation: Annotation{Metrics: map[string]float64{MetricClarity: 4}}}
	assert.NoError(t, ok.Validate())

	noID := ok
	noID.ItemID = ""
	assert.Error(t, noID.Validate())
}

func TestScoringConfigValidate(t *testing.T) {
	assert.NoError(t, ScoringConfig{ScoringVersion: "v1"}.Validate())
	assert.Error(t, ScoringConfig{}.Validate())
}

func TestScoringConfigValidate_RejectsNonFinite(t *testing.T) {
	inf := math.Inf(1)
	nan := math.NaN()
	tests := map[string]ScoringConfig{
		"nan metric weight": {ScoringVersion: "v1", MetricWeight: map[string]float64{MetricClarity: nan}},
		"inf topic weight":  {ScoringVersion: "v1", TopicWeight: map[string]float64{"go": inf}},
		"-inf seniority":    {ScoringVersion: "v1", SeniorityWeight: map[string]float64{"senior": -inf}},
		"nan threshold":     {ScoringVersion: "v1", RecommendationThreshold: &nan},
		"inf threshold":     {ScoringVersion: "v1", RecommendationThreshold: &inf},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}

	limit := 5.0
	ok := ScoringConfig{
		ScoringVersion:          "v1",
		MetricWeight:            map[string]float64{MetricClarity: -2.5},
		RecommendationThreshold: &limit,
	}
	assert.NoError(t, ok.Validate())
}

func TestFetchReportComputeStatus(t *testing.T) {
	r := FetchReport{Entries: []EntryResult{{Status: EntryCompleted}, {Status: EntrySkipped}}}
	assert.Equal(t, RunPartial, r.ComputeStatus())
	r.Entries[1].Status = EntryCompleted
	assert.Equal(t, RunSuccess, r.ComputeStatus())
	r.Entries[0].Status, r.Entries[1].Status = EntryFailed, EntrySkipped
	assert.Equal(t, RunFailed, r.ComputeStatus())
}

func TestRawRecordCheck(t *testing.T) {
	rec := RawRecord{ItemID: "a", Source: SourceChannel, Payload: []byte(`{"id":"a"}`)}
	assert.NoError(t, rec.Check())
	rec.Payload = []byte(`{"id":`)
	assert.Error(t, rec.Check())
	rec.Payload, rec.Source = []byte(`{}`), "rss"
	assert.Error(t, rec.Check())
}
