// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// Validate checks the struct tags of an annotation: at least one metric,
// every metric within 0-10, non-empty topic labels and confidence within 0-1.
func (a Annotation) Validate() error {
	if err := validate().Struct(a); err != nil {
		return fmt.Errorf("invalid annotation: %w", err)
	}
	return nil
}

// Complete reports the first standard metric missing from the annotation.
func (a Annotation) Complete() error {
	for _, m := range StandardMetrics {
		if _, ok := a.Metrics[m]; !ok {
			return fmt.Errorf("annotation is missing metric %s", m)
		}
	}
	return nil
}

// Validate checks an annotated item before it is scored.
func (it AnnotatedItem) Validate() error {
	if err := validate().Struct(it); err != nil {
		return fmt.Errorf("invalid annotated item %q: %w", it.ItemID, err)
	}
	return nil
}

// Validate checks that a scoring config carries a version id and that every
// weight and the threshold are finite numbers.
func (c ScoringConfig) Validate() error {
	if err := validate().Struct(c); err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}
	for _, group := range []struct {
		kind    string
		weights map[string]float64
	}{
		{"metric_weight", c.MetricWeight},
		{"topic_weight", c.TopicWeight},
		{"seniority_weight", c.SeniorityWeight},
	} {
		for name, w := range group.weights {
			if !finite(w) {
				return fmt.Errorf("invalid scoring config %q: %s[%s] is %v", c.ScoringVersion, group.kind, name, w)
			}
		}
	}
	if c.RecommendationThreshold != nil && !finite(*c.RecommendationThreshold) {
		return fmt.Errorf("invalid scoring config %q: recommendation_threshold is %v", c.ScoringVersion, *c.RecommendationThreshold)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
