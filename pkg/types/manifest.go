// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CompactionManifest documents the outcome of one compaction run over a
// partition. It is written next to the compacted stream and can be read
// without touching the data.
type CompactionManifest struct {
	RunID     string     `json:"run_id"`
	Source    SourceKind `json:"source"`
	SourceKey string     `json:"source_key"`
	FetchDate string     `json:"fetch_date"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// FilesFound is the number of per-item records considered this run.
	FilesFound int `json:"files_found"`

	// RecordsAppended counts records newly added to the compacted stream.
	RecordsAppended int `json:"records_appended"`

	// RecordsSkipped counts records whose item_id was already compacted.
	RecordsSkipped int `json:"records_skipped"`

	// Errors counts unreadable or malformed records and failed writes.
	Errors int `json:"errors"`

	// TotalRecords is the number of distinct items in the stream after the run.
	TotalRecords int `json:"total_records"`

	AppendedIDs      []string `json:"appended_ids,omitempty"`
	OriginalsRemoved int      `json:"originals_removed"`
	Success          bool     `json:"success"`
}

// EntryStatus is the outcome of fetching one source entry.
type EntryStatus string

const (
	EntryCompleted EntryStatus = "completed"
	// EntrySkipped marks an entry aborted by a quota or permission failure.
	EntrySkipped EntryStatus = "skipped"
	EntryFailed  EntryStatus = "failed"
)

// EntryResult holds per-entry counts for a fetch run.
type EntryResult struct {
	Kind   SourceKind  `json:"kind"`
	Key    string      `json:"key"`
	Status EntryStatus `json:"status"`

	// Fetched is the number of detail documents returned by the catalog.
	Fetched int `json:"fetched"`

	// Written is the number of new records stored.
	Written int `json:"written"`

	// Existing is the number of records already present at their coordinate.
	Existing int `json:"existing"`

	// Invalid is the number of documents rejected before storage.
	Invalid int `json:"invalid"`

	Error string `json:"error,omitempty"`
}

// RunStatus summarises a whole run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// FetchReport is the audit record of one fetch run.
type FetchReport struct {
	RunID      string        `json:"run_id"`
	FetchDate  string        `json:"fetch_date"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Status     RunStatus     `json:"status"`
	Entries    []EntryResult `json:"entries"`
}

// Count returns the number of entries with the given status.
func (r FetchReport) Count(status EntryStatus) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

// Written returns the total number of records written across entries.
func (r FetchReport) Written() int {
	n := 0
	for _, e := range r.Entries {
		n += e.Written
	}
	return n
}

// ComputeStatus derives the run status from entry outcomes: success when
// every entry completed, failed when none did, partial otherwise.
func (r FetchReport) ComputeStatus() RunStatus {
	completed := r.Count(EntryCompleted)
	switch {
	case completed == len(r.Entries):
		return RunSuccess
	case completed == 0:
		return RunFailed
	default:
		return RunPartial
	}
}

// ScoringManifest is the audit record of one scoring run.
type ScoringManifest struct {
	RunID             string    `json:"run_id"`
	ScoringVersion    string    `json:"scoring_version"`
	ConfigFingerprint string    `json:"config_fingerprint"`
	InputPrefix       string    `json:"input_prefix"`
	ItemsConsidered   int       `json:"items_considered"`
	ItemsScored       int       `json:"items_scored"`
	ItemsRejected     int       `json:"items_rejected"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	OutputKey         string    `json:"output_key"`
	Success           bool      `json:"success"`
}

// EnrichmentManifest is the audit record of one annotation run.
type EnrichmentManifest struct {
	RunID             string    `json:"run_id"`
	FetchDate         string    `json:"fetch_date"`
	EnrichmentVersion string    `json:"enrichment_version"`
	ModelVersion      string    `json:"model_version"`
	PromptVersion     string    `json:"prompt_version"`
	Annotated         int       `json:"annotated"`
	Skipped           int       `json:"skipped"`
	Failed            int       `json:"failed"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	OutputKey         string    `json:"output_key,omitempty"`
}
