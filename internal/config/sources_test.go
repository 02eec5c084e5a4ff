// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

func TestLoadChannels(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ChannelsFile, `
channels:
  - id: UC_ONE
    name: First Channel
    max_results: 10
  - id: "  UC_TWO  "
`)

	got, err := LoadChannels(path, 30)
	require.NoError(t, err)
	assert.Equal(t, []types.SourceEntry{
		{Kind: types.SourceChannel, Key: "UC_ONE", Name: "First Channel", MaxResults: 10},
		{Kind: types.SourceChannel, Key: "UC_TWO", MaxResults: 30},
	}, got)
}

func TestLoadChannelsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ChannelsFile, "channels:\n  - name: nameless\n")

	_, err := LoadChannels(path, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel 1 has no id")
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, KeywordsFile, `
keywords:
  - keyword: spark structured streaming
    max_results: 5
  - keyword: data contracts
`)

	got, err := LoadKeywords(path, 25)
	require.NoError(t, err)
	assert.Equal(t, []types.SourceEntry{
		{Kind: types.SourceSearch, Key: "spark structured streaming", MaxResults: 5},
		{Kind: types.SourceSearch, Key: "data contracts", MaxResults: 25},
	}, got)
}

func TestLoadKeywordsBlank(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, KeywordsFile, "keywords:\n  - keyword: \"   \"\n")

	_, err := LoadKeywords(path, 25)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword 1 is empty")
}

func TestLoadKeywordsMalformed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, KeywordsFile, "keywords: [unterminated\n")

	_, err := LoadKeywords(path, 25)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoadSources(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantKeys []string
		errMsg   string
	}{
		{
			name: "channels before keywords",
			files: map[string]string{
				ChannelsFile: "channels:\n  - id: UC_A\n",
				KeywordsFile: "keywords:\n  - keyword: golang\n",
			},
			wantKeys: []string{"UC_A", "golang"},
		},
		{
			name: "keywords only",
			files: map[string]string{
				KeywordsFile: "keywords:\n  - keyword: golang\n",
			},
			wantKeys: []string{"golang"},
		},
		{
			name:   "no lists",
			files:  map[string]string{},
			errMsg: "no source lists found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			got, err := LoadSources(dir, 30)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)

			keys := make([]string, len(got))
			for i, e := range got {
				keys[i] = e.Key
				assert.Equal(t, 30, e.MaxResults)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
