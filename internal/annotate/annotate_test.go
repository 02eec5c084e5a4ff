// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const testDate = "2026-03-01"

var (
	chanPart = types.Partition{Kind: types.SourceChannel, Key: "UC1", FetchDate: testDate}
	kwPart   = types.Partition{Kind: types.SourceSearch, Key: "golang", FetchDate: testDate}
)

// fakeAnnotator returns a complete annotation unless the item is listed in
// fail (error) or partial (missing metrics).
type fakeAnnotator struct {
	mu      sync.Mutex
	fail    map[string]bool
	partial map[string]bool
	calls   []string
}

func (f *fakeAnnotator) Annotate(_ context.Context, rec types.RawRecord) (types.Annotation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rec.ItemID)
	f.mu.Unlock()
	if f.fail[rec.ItemID] {
		return types.Annotation{}, errors.New("model unavailable")
	}
	metrics := map[string]float64{}
	for _, m := range types.StandardMetrics {
		metrics[m] = 5
	}
	if f.partial[rec.ItemID] {
		delete(metrics, types.MetricHype)
	}
	return types.Annotation{Metrics: metrics, Topics: []string{"golang"}, SeniorityLevel: "senior", Confidence: 0.7}, nil
}

func putRecord(t *testing.T, store storage.Store, p types.Partition, id string) {
	t.Helper()
	rec := types.RawRecord{
		ItemID: id, Source: p.Kind, SourceKey: p.Key, FetchDate: p.FetchDate,
		Payload: json.RawMessage(fmt.Sprintf(`{"id":%q,"snippet":{"title":"Title %s"}}`, id, id)),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	key, err := storage.RecordKey(p, id)
	require.NoError(t, err)
	_, err = store.WriteOnce(context.Background(), key, data)
	require.NoError(t, err)
}

func readItems(t *testing.T, store storage.Store, key string) []types.AnnotatedItem {
	t.Helper()
	data, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	var out []types.AnnotatedItem
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var it types.AnnotatedItem
		require.NoError(t, json.Unmarshal([]byte(line), &it))
		out = append(out, it)
	}
	return out
}

func newRunner(t *testing.T, a Annotator) (*Runner, *storage.Local) {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	cfg := types.AnnotationConfig{Model: "test-model", EnrichmentVersion: "e1", PromptVersion: "v1"}
	return NewRunner(store, a, cfg, zerolog.Nop(), nil), store
}

func TestRun_AnnotatesAndDedupsAcrossPartitions(t *testing.T) {
	fake := &fakeAnnotator{}
	r, store := newRunner(t, fake)
	putRecord(t, store, chanPart, "a")
	putRecord(t, store, chanPart, "b")
	putRecord(t, store, kwPart, "b")
	putRecord(t, store, kwPart, "c")

	var out bytes.Buffer
	m, err := r.Run(context.Background(), []types.Partition{chanPart, kwPart}, testDate, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Annotated)
	assert.Equal(t, 0, m.Failed)
	assert.Len(t, fake.calls, 3)
	assert.Equal(t, storage.EnrichedPartKey("e1", testDate, m.RunID), m.OutputKey)

	items := readItems(t, store, m.OutputKey)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ItemID)
	assert.Equal(t, "Title a", items[0].Title)
	assert.Equal(t, types.SourceChannel, items[1].Source, "first partition wins")
	assert.Equal(t, "e1", items[0].EnrichmentVersion)
	assert.Equal(t, "test-model", items[0].ModelVersion)
	assert.Equal(t, "v1", items[0].PromptVersion)
	assert.Equal(t, "senior", items[0].SeniorityLevel)

	exists, err := store.Exists(context.Background(), storage.EnrichedManifestKey("e1", testDate, m.RunID))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_SkipsAlreadyEnriched(t *testing.T) {
	fake := &fakeAnnotator{}
	r, store := newRunner(t, fake)
	putRecord(t, store, chanPart, "a")
	_, err := r.Run(context.Background(), []types.Partition{chanPart}, testDate, &bytes.Buffer{})
	require.NoError(t, err)

	putRecord(t, store, chanPart, "b")
	m, err := r.Run(context.Background(), []types.Partition{chanPart}, testDate, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Annotated)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, []string{"a", "b"}, fake.calls)

	ids, err := EnrichedIDs(context.Background(), store, storage.EnrichedPrefix("e1", testDate))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, ids)
}

func TestRun_RefetchOnLaterDateIsNotReannotated(t *testing.T) {
	fake := &fakeAnnotator{}
	r, store := newRunner(t, fake)
	putRecord(t, store, chanPart, "a")
	_, err := r.Run(context.Background(), []types.Partition{chanPart}, testDate, &bytes.Buffer{})
	require.NoError(t, err)

	const laterDate = "2026-03-02"
	later := types.Partition{Kind: types.SourceChannel, Key: "UC1", FetchDate: laterDate}
	putRecord(t, store, later, "a")
	putRecord(t, store, later, "d")

	m, err := r.Run(context.Background(), []types.Partition{later}, laterDate, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Annotated)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, []string{"a", "d"}, fake.calls)

	items := readItems(t, store, m.OutputKey)
	require.Len(t, items, 1)
	assert.Equal(t, "d", items[0].ItemID)
}

func TestRun_FailuresAreCountedNotWritten(t *testing.T) {
	fake := &fakeAnnotator{fail: map[string]bool{"a": true}, partial: map[string]bool{"b": true}}
	r, store := newRunner(t, fake)
	putRecord(t, store, chanPart, "a")
	putRecord(t, store, chanPart, "b")
	putRecord(t, store, chanPart, "c")

	var out bytes.Buffer
	m, err := r.Run(context.Background(), []types.Partition{chanPart}, testDate, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Annotated)
	assert.Equal(t, 2, m.Failed)
	assert.Contains(t, out.String(), "failed:    a")

	items := readItems(t, store, m.OutputKey)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ItemID)
}

func TestRun_NothingPendingWritesOnlyManifest(t *testing.T) {
	r, store := newRunner(t, &fakeAnnotator{})
	m, err := r.Run(context.Background(), []types.Partition{chanPart}, testDate, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, m.OutputKey)

	keys, err := store.List(context.Background(), storage.EnrichedPrefix("e1", testDate))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, strings.HasSuffix(keys[0], ".manifest.json"))
}

func TestParseDetailsAndRenderPrompt(t *testing.T) {
	rec := types.RawRecord{ItemID: "v1", Payload: json.RawMessage(`{
		"id": "v1",
		"snippet": {"title": "Go Generics", "channelTitle": "GopherCon", "description": "Deep dive", "tags": ["go", "generics"]},
		"contentDetails": {"duration": "PT42M"}
	}`)}
	d := ParseDetails(rec.Payload)
	assert.Equal(t, "Go Generics", d.Title)
	assert.Equal(t, "GopherCon", d.Channel)
	assert.Equal(t, "PT42M", d.Duration)

	prompt, err := RenderPrompt("v1", rec)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Title: Go Generics")
	assert.Contains(t, prompt, "Tags: go, generics")
	assert.Contains(t, prompt, "Duration: PT42M")
	assert.Contains(t, prompt, "hype_score")

	_, err = RenderPrompt("v0", rec)
	assert.Error(t, err)

	assert.Equal(t, Details{}, ParseDetails(json.RawMessage(`not json`)))
	long := strings.Repeat("é", maxDescriptionRunes+10)
	assert.Len(t, []rune(truncateRunes(long, maxDescriptionRunes)), maxDescriptionRunes)
}
