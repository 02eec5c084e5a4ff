// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket under a prefix.
// Object writes are atomic, and write-once semantics use the
// DoesNotExist precondition.
type GCS struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCS connects to bucket. When credentialsFile is empty the client uses
// application default credentials.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCS) object(key string) *gcs.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(JoinKey(g.prefix, key))
}

func (g *GCS) URI(key string) string {
	return "gs://" + g.bucket + "/" + JoinKey(g.prefix, key)
}

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", g.URI(key), err)
}

func (g *GCS) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := g.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", g.URI(key), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", g.URI(key), err)
	}
	return data, nil
}

func (g *GCS) WriteOnce(ctx context.Context, key string, data []byte) (bool, error) {
	err := createOutcome(g.write(ctx, g.object(key).If(gcs.Conditions{DoesNotExist: true}), data))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrExists):
		return false, nil
	default:
		return false, fmt.Errorf("writing %s: %w", g.URI(key), err)
	}
}

func (g *GCS) CreateExclusive(ctx context.Context, key string, data []byte) error {
	err := createOutcome(g.write(ctx, g.object(key).If(gcs.Conditions{DoesNotExist: true}), data))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExists):
		return fmt.Errorf("%s: %w", key, err)
	default:
		return fmt.Errorf("creating %s: %w", g.URI(key), err)
	}
}

func (g *GCS) Replace(ctx context.Context, key string, data []byte) error {
	if err := g.write(ctx, g.object(key), data); err != nil {
		return fmt.Errorf("writing %s: %w", g.URI(key), err)
	}
	return nil
}

// write uploads data in one object write; the object becomes visible only
// when the writer closes successfully.
func (g *GCS) write(ctx context.Context, obj *gcs.ObjectHandle, data []byte) error {
	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	full := JoinKey(g.prefix, prefix)
	if full != "" {
		full += "/"
	}
	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: full})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", g.URI(prefix), err)
		}
		keys = append(keys, relativeKey(g.prefix, attrs.Name))
	}
	sort.Strings(keys)
	return keys, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("deleting %s: %w", g.URI(key), err)
	}
	return nil
}

func (g *GCS) Close() error { return g.client.Close() }

// createOutcome maps the result of a DoesNotExist-conditioned write: a
// failed precondition means the object was already there.
func createOutcome(err error) error {
	if isPreconditionFailed(err) {
		return ErrExists
	}
	return err
}

// relativeKey strips the store prefix from an object name. Only a whole
// path segment is stripped, so prefix "a" leaves "ab/c" alone.
func relativeKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if rest, ok := strings.CutPrefix(name, prefix+"/"); ok {
		return rest
	}
	return name
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
