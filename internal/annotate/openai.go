// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/catalog-engine/internal/httputil"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// DefaultModel is used when the configuration names no model.
const DefaultModel = "gpt-4o-mini"

// OpenAIAnnotator annotates records with an OpenAI-compatible chat
// completions endpoint in JSON mode.
type OpenAIAnnotator struct {
	client        *openai.Client
	model         string
	promptVersion string
	policy        httputil.Policy
}

var _ Annotator = (*OpenAIAnnotator)(nil)

// NewOpenAIAnnotator builds an annotator from cfg. httpClient may be nil.
func NewOpenAIAnnotator(cfg types.AnnotationConfig, httpClient *http.Client, log zerolog.Logger) (*OpenAIAnnotator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("annotation API key is not set (openai-api-key secret or OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = DefaultPromptVersion
	}
	if _, ok := prompts[cfg.PromptVersion]; !ok {
		return nil, fmt.Errorf("unknown prompt version %q", cfg.PromptVersion)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	log = log.With().Str("component", "openai").Logger()
	return &OpenAIAnnotator{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		promptVersion: cfg.PromptVersion,
		policy: httputil.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BackoffStep: cfg.BackoffStep,
			OnRetry: func(attempt int, wait time.Duration, err error) {
				log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("transient annotation error, retrying")
			},
		},
	}, nil
}

// Annotate sends the rendered prompt for rec and decodes the JSON reply.
func (a *OpenAIAnnotator) Annotate(ctx context.Context, rec types.RawRecord) (types.Annotation, error) {
	prompt, err := RenderPrompt(a.promptVersion, rec)
	if err != nil {
		return types.Annotation{}, err
	}
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a precise content rater. Reply with JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	content, err := httputil.Do(ctx, a.policy, func(ctx context.Context) httputil.Attempt[string] {
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			if classify(ctx, err) == httputil.Retryable {
				return httputil.Retry[string](err)
			}
			return httputil.Fail[string](err)
		}
		if len(resp.Choices) == 0 {
			return httputil.Retry[string](errors.New("annotation service returned no choices"))
		}
		return httputil.Ok(resp.Choices[0].Message.Content)
	})
	if err != nil {
		return types.Annotation{}, fmt.Errorf("annotating %s: %w", rec.ItemID, err)
	}

	var ann types.Annotation
	if err := json.Unmarshal([]byte(stripFences(content)), &ann); err != nil {
		return types.Annotation{}, fmt.Errorf("parsing annotation for %s: %w", rec.ItemID, err)
	}
	return ann, nil
}

// classify maps go-openai errors onto retry outcomes: 429 and 5xx are
// retryable, other HTTP statuses fatal, transport errors retryable unless
// the context is done.
func classify(ctx context.Context, err error) httputil.Outcome {
	if ctx.Err() != nil {
		return httputil.Fatal
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == 0:
		return httputil.Retryable
	case status == http.StatusTooManyRequests, status >= 500:
		return httputil.Retryable
	default:
		return httputil.Fatal
	}
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
