// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/catalog-engine/internal/httputil"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	// DefaultBaseURL is the YouTube Data API v3 root.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// DefaultBatchSize is the API limit on ids per videos request.
	DefaultBatchSize = 50

	maxPageSize  = 50
	maxErrorBody = 512
	maxBodyBytes = 32 << 20
	detailParts  = "snippet,contentDetails,statistics"
)

// Client reads from the YouTube Data API v3.
type Client struct {
	http    *http.Client
	cfg     types.CatalogConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

var _ Catalog = (*Client)(nil)

// NewClient builds a client. A zero RequestsPerSecond disables throttling.
func NewClient(httpClient *http.Client, cfg types.CatalogConfig, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	c := &Client{
		http: httpClient,
		cfg:  cfg,
		log:  log.With().Str("component", "catalog").Logger(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// BatchSize returns the maximum number of ids accepted by FetchItems.
func (c *Client) BatchSize() int { return c.cfg.BatchSize }

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListItemIDs pages through search results for a channel or keyword,
// newest first, until MaxResults ids are collected or pages run out.
func (c *Client) ListItemIDs(ctx context.Context, entry types.SourceEntry) ([]string, error) {
	maxResults := entry.MaxResults
	if maxResults <= 0 {
		return nil, nil
	}

	params := url.Values{
		"part":  {"id"},
		"order": {"date"},
		"type":  {"video"},
	}
	switch entry.Kind {
	case types.SourceChannel:
		params.Set("channelId", entry.Key)
	case types.SourceSearch:
		params.Set("q", entry.Key)
	default:
		return nil, fmt.Errorf("unknown source kind %q", entry.Kind)
	}

	seen := make(map[string]bool)
	var ids []string
	pageToken := ""
	for len(ids) < maxResults {
		params.Set("maxResults", strconv.Itoa(min(maxResults-len(ids), maxPageSize)))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page searchResponse
		if err := c.get(ctx, "search", params, &page); err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			id := it.ID.VideoID
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}

		pageToken = page.NextPageToken
		if pageToken == "" || len(page.Items) == 0 {
			break
		}
	}

	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

type videosResponse struct {
	Items []json.RawMessage `json:"items"`
}

// FetchItems resolves one batch of ids to full detail documents. Each
// document is returned exactly as the API sent it.
func (c *Client) FetchItems(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > c.cfg.BatchSize {
		return nil, fmt.Errorf("batch of %d ids exceeds limit %d", len(ids), c.cfg.BatchSize)
	}

	params := url.Values{
		"part": {detailParts},
		"id":   {strings.Join(ids, ",")},
	}
	var resp videosResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(resp.Items))
	for _, doc := range resp.Items {
		items = append(items, Item{ID: itemID(doc), Payload: doc})
	}
	return items, nil
}

// get calls one endpoint with the bounded retry loop and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	reqURL := c.cfg.BaseURL + "/" + endpoint + "?" + q.Encode()

	policy := httputil.Policy{
		MaxAttempts: c.cfg.MaxAttempts,
		BackoffStep: c.cfg.BackoffStep,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).
				Dur("backoff", wait).Msg("transient catalog error, retrying")
		},
	}

	body, err := httputil.Do(ctx, policy, func(ctx context.Context) httputil.Attempt[[]byte] {
		return c.attempt(ctx, endpoint, reqURL)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing catalog %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, endpoint, reqURL string) httputil.Attempt[[]byte] {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return httputil.Fail[[]byte](err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return httputil.Fail[[]byte](fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	outcome := httputil.Classify(ctx, resp, err)
	if err != nil {
		// Strip the URL (it carries the API key) from transport errors.
		if uerr, ok := err.(*url.Error); ok {
			err = uerr.Err
		}
		err = fmt.Errorf("catalog %s request: %w", endpoint, err)
		if outcome == httputil.Fatal {
			return httputil.Fail[[]byte](err)
		}
		return httputil.Retry[[]byte](err)
	}
	defer resp.Body.Close()

	switch outcome {
	case httputil.Success:
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return httputil.Retry[[]byte](fmt.Errorf("reading catalog %s response: %w", endpoint, err))
		}
		return httputil.Ok(data)
	case httputil.Retryable:
		return httputil.Retry[[]byte](&StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)})
	default:
		if resp.StatusCode == http.StatusForbidden {
			return httputil.Fail[[]byte](&QuotaError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)})
		}
		return httputil.Fail[[]byte](&StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)})
	}
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
