package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "catalog-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig bounds the retry loop used for transient failures.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per call (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BackoffStep is the wait after the first failed attempt; the n-th wait
	// is n times the step (default 2s: 2s, 4s, 6s).
	BackoffStep time.Duration `json:"backoff_step" yaml:"backoff_step"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Root is a local directory, a file:// URI or a gs://bucket/prefix URI.
	Root string `json:"root" yaml:"root"`

	// CredentialsFile is an optional service account key for gs:// roots.
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is json or console (default json).
	Format string `json:"format" yaml:"format"`
}

// CatalogConfig holds settings for the external catalog client.
type CatalogConfig struct {
	HTTPConfig  `yaml:",inline"`
	RetryConfig `yaml:",inline"`

	// BaseURL is the API root (default https://www.googleapis.com/youtube/v3).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates catalog requests.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BatchSize is the maximum number of ids per detail request (default 50).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// RequestsPerSecond throttles catalog calls; 0 disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the token bucket size used with RequestsPerSecond (default 1).
	Burst int `json:"burst" yaml:"burst"`
}

// FetchConfig holds settings for the fetch stage.
type FetchConfig struct {
	// Workers is the number of source entries processed in parallel (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// BatchSize bounds the ids per detail request (default 50).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// DefaultMaxResults applies to entries that do not set max_results (default 30).
	DefaultMaxResults int `json:"default_max_results" yaml:"default_max_results"`
}

// CompactionConfig holds settings for the compaction stage.
type CompactionConfig struct {
	// Workers is the number of partitions compacted in parallel (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// AnnotationConfig holds settings for the annotation stage.
type AnnotationConfig struct {
	RetryConfig `yaml:",inline"`

	// Model is the model identifier sent to the annotation service.
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the annotation service endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey authenticates annotation requests.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Workers is the number of items annotated in parallel (default 2).
	Workers int `json:"workers" yaml:"workers"`

	EnrichmentVersion string `json:"enrichment_version" yaml:"enrichment_version"`
	ModelVersion      string `json:"model_version" yaml:"model_version"`
	PromptVersion     string `json:"prompt_version" yaml:"prompt_version"`
}

// ScoringRunConfig holds settings for the scoring stage.
type ScoringRunConfig struct {
	// VersionsFile is the scoring versions document (configs/scoring_versions.yaml).
	VersionsFile string `json:"versions_file" yaml:"versions_file"`

	// IndexDir holds the SQLite score index (contains scores.db).
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// Workers is the number of goroutines scoring items (default 4).
	Workers int `json:"workers" yaml:"workers"`
}
