// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/goccy/go-json"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// DefaultPromptVersion names the prompt template used when none is configured.
const DefaultPromptVersion = "v1"

const maxDescriptionRunes = 2000

var promptFuncs = template.FuncMap{"join": strings.Join}

var prompts = map[string]*template.Template{
	"v1": template.Must(template.New("v1").Funcs(promptFuncs).Parse(`You rate technical videos for an engineering audience.

Score the video below on each metric from 0 (none) to 10 (exceptional):
- concept_depth_score: how deeply underlying concepts are explained
- practical_value_score: how directly a practitioner can apply it
- technical_depth_score: how much technical detail it carries
- novelty_score: how new the material is relative to common knowledge
- clarity_score: how clearly it is presented
- production_quality_score: audio, visuals and editing
- hype_score: how much it relies on hype or clickbait rather than substance

Also give:
- seniority_level: one of "beginner", "intermediate", "senior", "expert"
- topics: up to five lowercase, hyphenated topic labels (e.g. "distributed-systems", "golang")
- summary: one or two sentences
- confidence: a number between 0.0 and 1.0

Respond with a single JSON object:
{"metrics": {"concept_depth_score": 0, "practical_value_score": 0, "technical_depth_score": 0, "novelty_score": 0, "clarity_score": 0, "production_quality_score": 0, "hype_score": 0}, "seniority_level": "", "topics": [], "summary": "", "confidence": 0}

Title: {{.Title}}
Channel: {{.Channel}}
Duration: {{.Duration}}
Tags: {{join .Tags ", "}}
Description:
{{.Description}}
`)),
}

// Details are the fields of a catalog document used for annotation.
type Details struct {
	Title       string
	Channel     string
	Description string
	Tags        []string
	Duration    string
}

// ParseDetails extracts Details from a video detail document. Missing or
// malformed fields are left empty.
func ParseDetails(payload json.RawMessage) Details {
	var doc struct {
		Snippet struct {
			Title        string   `json:"title"`
			ChannelTitle string   `json:"channelTitle"`
			Description  string   `json:"description"`
			Tags         []string `json:"tags"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	}
	_ = json.Unmarshal(payload, &doc)
	return Details{
		Title:       doc.Snippet.Title,
		Channel:     doc.Snippet.ChannelTitle,
		Description: truncateRunes(doc.Snippet.Description, maxDescriptionRunes),
		Tags:        doc.Snippet.Tags,
		Duration:    doc.ContentDetails.Duration,
	}
}

// RenderPrompt renders the named prompt template for a record.
func RenderPrompt(version string, rec types.RawRecord) (string, error) {
	tmpl, ok := prompts[version]
	if !ok {
		return "", fmt.Errorf("unknown prompt version %q", version)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ParseDetails(rec.Payload)); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", version, err)
	}
	return buf.String(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
