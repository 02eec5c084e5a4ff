// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the catalog-engine pipeline:
// raw records and partitions (fetch, compact), run manifests and reports,
// annotations (annotate) and scoring inputs and outputs (score).
package types

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SourceKind identifies how an item was discovered in the catalog.
type SourceKind string

const (
	SourceChannel SourceKind = "channel"
	SourceSearch  SourceKind = "search"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	return k == SourceChannel || k == SourceSearch
}

// DateLayout is the calendar-date format used for fetch dates and partition keys.
const DateLayout = "2006-01-02"

// SourceEntry is one configured origin of items: a channel-like collection
// or a keyword query.
type SourceEntry struct {
	// Kind is channel or search.
	Kind SourceKind `json:"kind" yaml:"kind"`

	// Key is the channel id or the keyword string.
	Key string `json:"key" yaml:"key"`

	// Name is a human-readable label used in logs. Defaults to Key.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// MaxResults caps the number of item identifiers listed for the entry.
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Label returns Name, falling back to Key.
func (e SourceEntry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Key
}

// Partition is the unit of compaction: one source, source key and fetch date.
type Partition struct {
	Kind      SourceKind `json:"source"`
	Key       string     `json:"source_key"`
	FetchDate string     `json:"fetch_date"`
}

// PartitionOf returns the partition an entry writes to on the given date.
func PartitionOf(e SourceEntry, fetchDate string) Partition {
	return Partition{Kind: e.Kind, Key: e.Key, FetchDate: fetchDate}
}

func (p Partition) String() string {
	return fmt.Sprintf("%s/%s/%s", p.Kind, p.Key, p.FetchDate)
}

// RawRecord is one immutable snapshot of an item as returned by the catalog
// at fetch time. Payload holds the catalog document with its content unchanged.
type RawRecord struct {
	ItemID    string          `json:"item_id"`
	Source    SourceKind      `json:"source"`
	SourceKey string          `json:"source_key"`
	FetchDate string          `json:"fetch_date"`
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Partition returns the partition the record belongs to.
func (r RawRecord) Partition() Partition {
	return Partition{Kind: r.Source, Key: r.SourceKey, FetchDate: r.FetchDate}
}

// Check reports the first data-integrity problem with the record, or nil.
func (r RawRecord) Check() error {
	if r.ItemID == "" {
		return fmt.Errorf("record has no item_id")
	}
	if !r.Source.Valid() {
		return fmt.Errorf("record %s: unknown source %q", r.ItemID, r.Source)
	}
	if len(r.Payload) == 0 || !json.Valid(r.Payload) {
		return fmt.Errorf("record %s: payload is not valid JSON", r.ItemID)
	}
	return nil
}
