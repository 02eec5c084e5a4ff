// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Standard metric names emitted by the annotator. Each is scored 0-10.
const (
	MetricConceptDepth      = "concept_depth_score"
	MetricPracticalValue    = "practical_value_score"
	MetricTechnicalDepth    = "technical_depth_score"
	MetricNovelty           = "novelty_score"
	MetricClarity           = "clarity_score"
	MetricProductionQuality = "production_quality_score"
	MetricHype              = "hype_score"
)

// StandardMetrics lists the seven metrics of the annotation shape.
var StandardMetrics = []string{
	MetricConceptDepth,
	MetricPracticalValue,
	MetricTechnicalDepth,
	MetricNovelty,
	MetricClarity,
	MetricProductionQuality,
	MetricHype,
}

// Annotation is the fixed JSON shape returned by the annotation boundary.
type Annotation struct {
	// Metrics maps metric name to a value on the 0-10 scale.
	Metrics map[string]float64 `json:"metrics" validate:"required,min=1,dive,keys,required,endkeys,gte=0,lte=10"`

	// SeniorityLevel is the audience level label (e.g. "beginner", "senior").
	SeniorityLevel string `json:"seniority_level,omitempty"`

	// Topics lists the topic labels assigned to the item.
	Topics []string `json:"topics" validate:"dive,required"`

	Summary string `json:"summary,omitempty"`

	// Confidence is the annotator's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// AnnotatedItem is one row of the schema-validated input to scoring.
type AnnotatedItem struct {
	ItemID    string     `json:"item_id" validate:"required"`
	Title     string     `json:"title,omitempty"`
	Source    SourceKind `json:"source,omitempty"`
	SourceKey string     `json:"source_key,omitempty"`
	FetchDate string     `json:"fetch_date,omitempty"`

	Annotation

	EnrichmentVersion string    `json:"enrichment_version,omitempty"`
	ModelVersion      string    `json:"model_version,omitempty"`
	PromptVersion     string    `json:"prompt_version,omitempty"`
	AnnotatedAt       time.Time `json:"annotated_at,omitempty"`
}

// ScoringConfig is a named, versioned set of weights. A published version is
// immutable: new weights require a new ScoringVersion.
type ScoringConfig struct {
	ScoringVersion string `json:"scoring_version" yaml:"scoring_version" validate:"required"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`

	MetricWeight    map[string]float64 `json:"metric_weight" yaml:"metric_weight"`
	TopicWeight     map[string]float64 `json:"topic_weight" yaml:"topic_weight"`
	SeniorityWeight map[string]float64 `json:"seniority_weight,omitempty" yaml:"seniority_weight,omitempty"`

	// RecommendationThreshold is compared strictly: items scoring above it
	// are recommended. When nil no item is recommended.
	RecommendationThreshold *float64 `json:"recommendation_threshold,omitempty" yaml:"recommendation_threshold,omitempty"`
}

// ScoredItem is one ranked output row of a scoring run.
type ScoredItem struct {
	ItemID          string             `json:"item_id"`
	FinalScore      float64            `json:"final_score"`
	Rank            int                `json:"rank"`
	PrimaryTopic    *string            `json:"primary_topic"`
	MetricBreakdown map[string]float64 `json:"metric_breakdown"`
	IsRecommended   bool               `json:"is_recommended"`

	ScoringVersion string    `json:"scoring_version"`
	RunID          string    `json:"run_id"`
	ComputedAt     time.Time `json:"computed_at"`

	EnrichmentVersion string `json:"enrichment_version,omitempty"`
	ModelVersion      string `json:"model_version,omitempty"`
	PromptVersion     string `json:"prompt_version,omitempty"`
}
