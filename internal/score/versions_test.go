// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const versionsDoc = `
active: v2
versions:
  - scoring_version: v1
    name: baseline
    metric_weight:
      concept_depth_score: 1.2
      hype_score: -2.0
    recommendation_threshold: 5.0
  - scoring_version: v2
    name: practical
    metric_weight:
      practical_value_score: 1.5
    topic_weight:
      golang: 0.5
    seniority_weight:
      senior: 0.25
`

func TestLoadVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring_versions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(versionsDoc), 0o644))

	v, err := LoadVersions(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", v.Active)
	require.Len(t, v.Versions, 2)

	active, err := v.Select("")
	require.NoError(t, err)
	assert.Equal(t, "practical", active.Name)
	assert.Equal(t, 0.25, active.SeniorityWeight["senior"])
	assert.Nil(t, active.RecommendationThreshold)

	v1, err := v.Select("v1")
	require.NoError(t, err)
	require.NotNil(t, v1.RecommendationThreshold)
	assert.Equal(t, 5.0, *v1.RecommendationThreshold)
	assert.Equal(t, -2.0, v1.MetricWeight[types.MetricHype])

	_, err = v.Select("v9")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestParseVersions_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing id":     "versions:\n  - name: x\n",
		"duplicate id":   "versions:\n  - scoring_version: a\n  - scoring_version: a\n",
		"unknown active": "active: b\nversions:\n  - scoring_version: a\n",
		"bad yaml":       "versions: [",
		"nan weight":     "versions:\n  - scoring_version: a\n    metric_weight:\n      clarity_score: .nan\n",
		"inf threshold":  "versions:\n  - scoring_version: a\n    recommendation_threshold: .inf\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVersions([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSelect_NoActive(t *testing.T) {
	v, err := ParseVersions([]byte("versions:\n  - scoring_version: a\n"))
	require.NoError(t, err)
	_, err = v.Select("")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestFingerprint(t *testing.T) {
	base := types.ScoringConfig{
		ScoringVersion: "v1",
		MetricWeight:   map[string]float64{"a": 1, "b": -2},
		TopicWeight:    map[string]float64{"go": 0.5},
	}
	same := types.ScoringConfig{
		ScoringVersion: "other",
		Name:           "renamed",
		MetricWeight:   map[string]float64{"b": -2, "a": 1, "zero": 0},
		TopicWeight:    map[string]float64{"go": 0.5},
	}
	assert.Equal(t, Fingerprint(base), Fingerprint(same))

	changed := base
	changed.TopicWeight = map[string]float64{"go": 0.6}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))

	withThreshold := base
	withThreshold.RecommendationThreshold = threshold(1)
	assert.NotEqual(t, Fingerprint(base), Fingerprint(withThreshold))

	// A metric weight and a topic weight with the same name are distinct.
	asMetric := types.ScoringConfig{MetricWeight: map[string]float64{"go": 1}}
	asTopic := types.ScoringConfig{TopicWeight: map[string]float64{"go": 1}}
	assert.NotEqual(t, Fingerprint(asMetric), Fingerprint(asTopic))
}
