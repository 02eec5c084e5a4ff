// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage hides the storage backend behind keyed objects. Keys are
// slash-separated paths relative to the store root; the root is selected by
// URI (a local directory or gs://bucket/prefix).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: object not found")

	// ErrExists is returned by CreateExclusive when the key already exists.
	ErrExists = errors.New("storage: object already exists")
)

// Store is the storage boundary used by every stage.
type Store interface {
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Read returns the object contents, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// WriteOnce stores data at key unless the key already exists. It reports
	// whether the object was written; existing objects are never modified.
	WriteOnce(ctx context.Context, key string, data []byte) (bool, error)

	// CreateExclusive atomically creates key, failing with ErrExists when it
	// is already present. It is the primitive behind lock markers.
	CreateExclusive(ctx context.Context, key string, data []byte) error

	// Replace atomically stores data at key: readers observe either the
	// previous contents or the new contents, never a partial write.
	Replace(ctx context.Context, key string, data []byte) error

	// List returns every key under prefix, recursively, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URI renders key as a location for logs and reports.
	URI(key string) string

	Close() error
}

// Open returns the Store for cfg.Root. Roots starting with gs:// use Google
// Cloud Storage with cfg.CredentialsFile; file:// URIs and plain paths use
// the local filesystem.
func Open(ctx context.Context, cfg types.StorageConfig) (Store, error) {
	root := cfg.Root
	switch {
	case root == "":
		return nil, fmt.Errorf("storage root is empty")
	case strings.HasPrefix(root, "gs://"):
		bucket, prefix := splitBucket(strings.TrimPrefix(root, "gs://"))
		if bucket == "" {
			return nil, fmt.Errorf("storage root %q has no bucket", root)
		}
		return NewGCS(ctx, bucket, prefix, cfg.CredentialsFile)
	case strings.HasPrefix(root, "file://"):
		return NewLocal(strings.TrimPrefix(root, "file://"))
	default:
		return NewLocal(root)
	}
}

func splitBucket(s string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(s, "/")
	return bucket, strings.Trim(prefix, "/")
}

// JoinKey joins key segments with "/", dropping empty segments.
func JoinKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Base returns the last segment of key.
func Base(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
