// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

func TestPartitionDir(t *testing.T) {
	tests := []struct {
		name string
		p    types.Partition
		want string
	}{
		{
			name: "channel",
			p:    types.Partition{Kind: types.SourceChannel, Key: "UC_TEST", FetchDate: "2026-02-14"},
			want: "bronze/metadata/source=channel/dt=2026-02-14/UC_TEST",
		},
		{
			name: "keyword sanitised",
			p:    types.Partition{Kind: types.SourceSearch, Key: " spark structured/streaming ", FetchDate: "2026-02-14"},
			want: "bronze/metadata/source=search/dt=2026-02-14/keyword=spark_structured_streaming",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PartitionDir(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartitionDir_Rejects(t *testing.T) {
	for _, p := range []types.Partition{
		{Kind: "rss", Key: "x", FetchDate: "2026-02-14"},
		{Kind: types.SourceChannel, Key: "", FetchDate: "2026-02-14"},
		{Kind: types.SourceChannel, Key: "a/b", FetchDate: "2026-02-14"},
		{Kind: types.SourceSearch, Key: "  ", FetchDate: "2026-02-14"},
		{Kind: types.SourceChannel, Key: "UC", FetchDate: ""},
		{Kind: types.SourceChannel, Key: "UC", FetchDate: "03/01/2026"},
	} {
		_, err := PartitionDir(p)
		assert.Error(t, err, "partition %+v", p)
	}
}

func TestRecordKeyAndParsePartitionRoundTrip(t *testing.T) {
	p := types.Partition{Kind: types.SourceSearch, Key: "go generics", FetchDate: "2026-02-14"}
	key, err := RecordKey(p, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "bronze/metadata/source=search/dt=2026-02-14/keyword=go_generics/item_abc123.json", key)
	assert.True(t, IsRecordKey(key))

	parsed, err := ParsePartition(key)
	require.NoError(t, err)
	assert.Equal(t, "go_generics", parsed.Key)

	// The sanitised key maps back to the same directory.
	d1, err := PartitionDir(p)
	require.NoError(t, err)
	d2, err := PartitionDir(parsed)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestIsRecordKey(t *testing.T) {
	assert.False(t, IsRecordKey("p/_compacted.jsonl"))
	assert.False(t, IsRecordKey("p/_compaction_manifest.json"))
	assert.True(t, IsRecordKey("p/item_x.json"))
}

func TestRecordKey_RejectsBadItemID(t *testing.T) {
	p := types.Partition{Kind: types.SourceChannel, Key: "UC", FetchDate: "2026-02-14"}
	_, err := RecordKey(p, "")
	assert.Error(t, err)
	_, err = RecordKey(p, "../escape")
	assert.Error(t, err)
}

func TestJoinKeyAndBase(t *testing.T) {
	assert.Equal(t, "a/b/c", JoinKey("a/", "", "/b", "c"))
	assert.Equal(t, "c.json", Base("a/b/c.json"))
	assert.Equal(t, "c.json", Base("c.json"))
}

func TestOutputKeys(t *testing.T) {
	assert.Equal(t, "silver/enriched/enrichment_version=v1", EnrichmentVersionPrefix("v1"))
	assert.Equal(t, "silver/enriched/enrichment_version=v1/dt=2026-02-14/part-r1.jsonl", EnrichedPartKey("v1", "2026-02-14", "r1"))
	assert.Equal(t, "silver/enriched/enrichment_version=v1/dt=2026-02-14/part-r1.manifest.json", EnrichedManifestKey("v1", "2026-02-14", "r1"))
	assert.Equal(t, "gold/scored/scoring_version=s2/_config.json", ScoringConfigKey("s2"))
	assert.Equal(t, "gold/scored/scoring_version=s2/run-r9.jsonl", ScoredRunKey("s2", "r9"))
	assert.Equal(t, "gold/scored/scoring_version=s2/run-r9.manifest.json", ScoredManifestKey("s2", "r9"))
	assert.Equal(t, "reports/fetch/dt=2026-02-14/run-r1.json", FetchReportKey("2026-02-14", "r1"))
}
