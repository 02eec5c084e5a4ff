// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.FetchEntry("completed", 3, 1, 0)
	r.FetchEntry("skipped", 0, 0, 0)
	r.FetchEntry("completed", 2, 0, 1)
	r.Compaction("success", 5)
	r.Annotation("annotated", 4)
	r.Annotation("failed", 0)
	r.Scored(7, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchEntries.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchEntries.WithLabelValues("skipped")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.fetchRecords.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchRecords.WithLabelValues("invalid")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.compactAppended))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.annotations.WithLabelValues("annotated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scoredItems.WithLabelValues("rejected")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.FetchEntry("completed", 1, 1, 1)
	r.Compaction("success", 1)
	r.Annotation("annotated", 1)
	r.Scored(1, 1)
	r.ObserveStage("fetch", time.Second)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Scored(3, 0)
	r.ObserveStage("score", 250*time.Millisecond)

	path := filepath.Join(t.TempDir(), "catalog_engine.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `catalog_engine_score_items_total{outcome="scored"} 3`)
	assert.Contains(t, string(data), `catalog_engine_stage_duration_seconds_count{stage="score"} 1`)
}
