// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog reads item identifiers and detail documents from the
// external video catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// ErrQuotaExceeded matches every quota or permission failure.
var ErrQuotaExceeded = errors.New("catalog quota or permission failure")

// Catalog is the boundary the fetcher depends on. Implementations return
// a *QuotaError (matching ErrQuotaExceeded) for quota and permission
// failures so callers can tell them apart from transient errors.
type Catalog interface {
	// ListItemIDs returns up to entry.MaxResults item identifiers.
	ListItemIDs(ctx context.Context, entry types.SourceEntry) ([]string, error)

	// FetchItems returns the detail documents for one batch of identifiers.
	FetchItems(ctx context.Context, ids []string) ([]Item, error)
}

// Item is one detail document. ID is empty when the document carries no
// usable identifier.
type Item struct {
	ID      string
	Payload json.RawMessage
}

// QuotaError reports an HTTP 403 from the catalog.
type QuotaError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("catalog %s returned HTTP %d (quota or permission): %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrQuotaExceeded) hold.
func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// StatusError reports any other non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s returned HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// itemID extracts the top-level string "id" of a detail document.
func itemID(doc json.RawMessage) string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(head.ID, &id); err != nil {
		return ""
	}
	return id
}
