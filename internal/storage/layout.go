// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	bronzeMetadataDir = "bronze/metadata"
	recordPrefix      = "item_"
	recordSuffix      = ".json"
	keywordSegment    = "keyword="

	// CompactedFile is the newline-delimited compacted stream of a partition.
	CompactedFile = "_compacted.jsonl"

	// ManifestFile holds the manifest of the latest compaction run.
	ManifestFile = "_compaction_manifest.json"

	// LockFile marks a partition as being compacted.
	LockFile = "_compaction.lock"

	manifestHistoryDir = "_manifests"
)

// SanitizeKeyword makes a keyword safe for use as a key segment.
func SanitizeKeyword(keyword string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return r.Replace(strings.TrimSpace(keyword))
}

// PartitionDir returns the key prefix holding a partition:
// bronze/metadata/source=<kind>/dt=<date>/<channel id | keyword=<sanitised>>.
func PartitionDir(p types.Partition) (string, error) {
	if _, err := time.Parse(types.DateLayout, p.FetchDate); err != nil {
		return "", fmt.Errorf("partition %s: fetch date must be YYYY-MM-DD", p)
	}
	var segment string
	switch p.Kind {
	case types.SourceChannel:
		segment = strings.TrimSpace(p.Key)
	case types.SourceSearch:
		segment = keywordSegment + SanitizeKeyword(p.Key)
	default:
		return "", fmt.Errorf("unknown source type %q, expected channel or search", p.Kind)
	}
	if segment == "" || segment == keywordSegment || strings.Contains(segment, "/") {
		return "", fmt.Errorf("invalid source key %q", p.Key)
	}
	return JoinKey(bronzeMetadataDir, "source="+string(p.Kind), "dt="+p.FetchDate, segment), nil
}

// RecordKey returns the key of one per-item raw record.
func RecordKey(p types.Partition, itemID string) (string, error) {
	dir, err := PartitionDir(p)
	if err != nil {
		return "", err
	}
	if itemID == "" || strings.ContainsAny(itemID, "/\\") {
		return "", fmt.Errorf("invalid item id %q", itemID)
	}
	return JoinKey(dir, recordPrefix+itemID+recordSuffix), nil
}

// IsRecordKey reports whether key names a per-item raw record.
func IsRecordKey(key string) bool {
	base := Base(key)
	return strings.HasPrefix(base, recordPrefix) && strings.HasSuffix(base, recordSuffix)
}

// CompactedKey returns the key of a partition's compacted stream.
func CompactedKey(p types.Partition) (string, error) {
	return partitionFile(p, CompactedFile)
}

// ManifestKey returns the key of a partition's latest compaction manifest.
func ManifestKey(p types.Partition) (string, error) {
	return partitionFile(p, ManifestFile)
}

// LockKey returns the key of a partition's compaction lock marker.
func LockKey(p types.Partition) (string, error) {
	return partitionFile(p, LockFile)
}

// ManifestHistoryKey returns the immutable per-run manifest key.
func ManifestHistoryKey(p types.Partition, stamp, runID string) (string, error) {
	return partitionFile(p, manifestHistoryDir+"/"+stamp+"-"+runID+".json")
}

func partitionFile(p types.Partition, name string) (string, error) {
	dir, err := PartitionDir(p)
	if err != nil {
		return "", err
	}
	return JoinKey(dir, name), nil
}

// SourceDatePrefix returns the prefix holding every partition of one source
// kind and fetch date.
func SourceDatePrefix(kind types.SourceKind, fetchDate string) string {
	return JoinKey(bronzeMetadataDir, "source="+string(kind), "dt="+fetchDate)
}

// ParsePartition recovers the partition from any key inside it. Keyword
// partitions carry the sanitised keyword as Key; PartitionDir maps it back
// to the same prefix.
func ParsePartition(key string) (types.Partition, error) {
	rest, ok := strings.CutPrefix(key, bronzeMetadataDir+"/")
	if !ok {
		return types.Partition{}, fmt.Errorf("key %q is outside %s", key, bronzeMetadataDir)
	}
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 3 {
		return types.Partition{}, fmt.Errorf("key %q is not inside a partition", key)
	}
	kind, ok1 := strings.CutPrefix(parts[0], "source=")
	date, ok2 := strings.CutPrefix(parts[1], "dt=")
	if !ok1 || !ok2 {
		return types.Partition{}, fmt.Errorf("key %q has malformed partition segments", key)
	}
	p := types.Partition{Kind: types.SourceKind(kind), FetchDate: date, Key: parts[2]}
	if p.Kind == types.SourceSearch {
		p.Key = strings.TrimPrefix(parts[2], keywordSegment)
	}
	if !p.Kind.Valid() {
		return types.Partition{}, fmt.Errorf("key %q has unknown source %q", key, kind)
	}
	return p, nil
}

// FetchReportKey returns the key of a fetch run report.
func FetchReportKey(fetchDate, runID string) string {
	return JoinKey("reports/fetch", "dt="+fetchDate, "run-"+runID+".json")
}

// EnrichmentVersionPrefix returns the prefix holding every date of one
// enrichment version.
func EnrichmentVersionPrefix(enrichmentVersion string) string {
	return JoinKey("silver/enriched", "enrichment_version="+enrichmentVersion)
}

// EnrichedPrefix returns the prefix holding enriched records of one
// enrichment version and date.
func EnrichedPrefix(enrichmentVersion, fetchDate string) string {
	return JoinKey(EnrichmentVersionPrefix(enrichmentVersion), "dt="+fetchDate)
}

// EnrichedPartKey returns the key of one annotation run's output.
func EnrichedPartKey(enrichmentVersion, fetchDate, runID string) string {
	return JoinKey(EnrichedPrefix(enrichmentVersion, fetchDate), "part-"+runID+".jsonl")
}

// EnrichedManifestKey returns the key of one annotation run's manifest.
func EnrichedManifestKey(enrichmentVersion, fetchDate, runID string) string {
	return JoinKey(EnrichedPrefix(enrichmentVersion, fetchDate), "part-"+runID+".manifest.json")
}

// ScoredPrefix returns the prefix holding every run of one scoring version.
func ScoredPrefix(scoringVersion string) string {
	return JoinKey("gold/scored", "scoring_version="+scoringVersion)
}

// ScoringConfigKey returns the key of the write-once record of a published
// scoring version.
func ScoringConfigKey(scoringVersion string) string {
	return JoinKey(ScoredPrefix(scoringVersion), "_config.json")
}

// ScoredRunKey returns the key of one scoring run's output stream.
func ScoredRunKey(scoringVersion, runID string) string {
	return JoinKey(ScoredPrefix(scoringVersion), "run-"+runID+".jsonl")
}

// ScoredManifestKey returns the key of one scoring run's manifest.
func ScoredManifestKey(scoringVersion, runID string) string {
	return JoinKey(ScoredPrefix(scoringVersion), "run-"+runID+".manifest.json")
}
