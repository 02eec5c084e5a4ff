// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compact

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// ReadPartition returns every record of p: the compacted stream in order,
// followed by per-item records not yet compacted. Records that cannot be
// decoded or fail their integrity check are counted in invalid and left out.
func ReadPartition(ctx context.Context, store storage.Store, p types.Partition) (records []types.RawRecord, invalid int, err error) {
	keys, err := keysFor(p)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool)
	stream, err := store.Read(ctx, keys.compacted)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, 0, fmt.Errorf("reading %s: %w", store.URI(keys.compacted), err)
	default:
		for _, line := range bytes.Split(stream, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var rec types.RawRecord
			if err := json.Unmarshal(line, &rec); err != nil || rec.Check() != nil || seen[rec.ItemID] {
				invalid++
				continue
			}
			seen[rec.ItemID] = true
			records = append(records, rec)
		}
	}

	all, err := store.List(ctx, keys.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", keys.dir, err)
	}
	for _, key := range all {
		if !storage.IsRecordKey(key) || parentOf(key) != keys.dir {
			continue
		}
		data, err := store.Read(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			// Removed by a concurrent compaction after being merged.
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", store.URI(key), err)
		}
		var rec types.RawRecord
		if err := json.Unmarshal(data, &rec); err != nil || checkPlacement(rec, key, keys.dir) != nil {
			invalid++
			continue
		}
		if seen[rec.ItemID] {
			continue
		}
		seen[rec.ItemID] = true
		records = append(records, rec)
	}
	return records, invalid, nil
}
