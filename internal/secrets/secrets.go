// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. An environment variable, when set, takes
// precedence over the file.
//
// Supported key files: youtube-api-key (YOUTUBE_API_KEY), openai-api-key (OPENAI_API_KEY).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Well-known secret names and their environment overrides.
const (
	YouTubeAPIKey = "youtube-api-key"
	OpenAIAPIKey  = "openai-api-key"
)

var envOverrides = map[string]string{
	YouTubeAPIKey: "YOUTUBE_API_KEY",
	OpenAIAPIKey:  "OPENAI_API_KEY",
}

// Secrets maps secret names to values.
type Secrets map[string]string

// Load reads all files in dir and returns their trimmed contents by filename.
// A missing directory or missing files are not errors; Load returns an empty set.
// Unreadable files are logged as warnings and skipped.
func Load(dir string, log zerolog.Logger) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Get returns the named secret. A non-empty environment override wins over
// the file value.
func (s Secrets) Get(name string) string {
	if env, ok := envOverrides[name]; ok {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return s[name]
}

// Names returns the loaded secret names in sorted order. Values are never exposed.
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
