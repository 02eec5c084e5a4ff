// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the source lists that drive the fetch and compact
// stages: configs/channels.yaml and configs/discovery_keywords.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	// ChannelsFile is the channel list inside a configs directory.
	ChannelsFile = "channels.yaml"

	// KeywordsFile is the keyword list inside a configs directory.
	KeywordsFile = "discovery_keywords.yaml"
)

type channelsDoc struct {
	Channels []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"channels"`
}

type keywordsDoc struct {
	Keywords []struct {
		Keyword    string `yaml:"keyword"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"keywords"`
}

// LoadChannels parses a channel list. Entries without an id are rejected.
// Entries that do not set max_results get defaultMax.
func LoadChannels(path string, defaultMax int) ([]types.SourceEntry, error) {
	var doc channelsDoc
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}

	entries := make([]types.SourceEntry, 0, len(doc.Channels))
	for i, c := range doc.Channels {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("%s: channel %d has no id", path, i+1)
		}
		entries = append(entries, types.SourceEntry{
			Kind:       types.SourceChannel,
			Key:        id,
			Name:       c.Name,
			MaxResults: orDefault(c.MaxResults, defaultMax),
		})
	}
	return entries, nil
}

// LoadKeywords parses a keyword list. Blank keywords are rejected.
func LoadKeywords(path string, defaultMax int) ([]types.SourceEntry, error) {
	var doc keywordsDoc
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}

	entries := make([]types.SourceEntry, 0, len(doc.Keywords))
	for i, k := range doc.Keywords {
		kw := strings.TrimSpace(k.Keyword)
		if kw == "" {
			return nil, fmt.Errorf("%s: keyword %d is empty", path, i+1)
		}
		entries = append(entries, types.SourceEntry{
			Kind:       types.SourceSearch,
			Key:        kw,
			MaxResults: orDefault(k.MaxResults, defaultMax),
		})
	}
	return entries, nil
}

// LoadSources reads both lists from dir, channels first. A missing file
// contributes no entries; a directory with neither file is an error.
func LoadSources(dir string, defaultMax int) ([]types.SourceEntry, error) {
	var all []types.SourceEntry
	found := 0

	for _, load := range []struct {
		file string
		fn   func(string, int) ([]types.SourceEntry, error)
	}{
		{ChannelsFile, LoadChannels},
		{KeywordsFile, LoadKeywords},
	} {
		path := filepath.Join(dir, load.file)
		entries, err := load.fn(path, defaultMax)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found++
		all = append(all, entries...)
	}

	if found == 0 {
		return nil, fmt.Errorf("no source lists found in %s (expected %s or %s)", dir, ChannelsFile, KeywordsFile)
	}
	return all, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func orDefault(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
