package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFeedJSON(t *testing.T) {
	path := writeFeed(t, "feed.json", `[
		{"name": "Acme", "website": "https://acme.example", "source": "techdigest", "funding": "$4M seed"},
		{"name": "Beta", "article_url": "https://news.example/beta"}
	]`)

	candidates, err := parseFeed(path, "fallback-feed")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "Acme", candidates[0].Name)
	assert.Equal(t, "techdigest", candidates[0].Source)
	assert.Equal(t, "$4M seed", candidates[0].Funding)

	// Rows without a source fall back to --source.
	assert.Equal(t, "fallback-feed", candidates[1].Source)
	assert.Equal(t, "https://news.example/beta", candidates[1].ArticleURL)
}

func TestParseFeedYAML(t *testing.T) {
	path := writeFeed(t, "feed.yaml", `
- name: Acme
  website: https://acme.example
  source: techdigest
- name: Beta
  source: vcwire
  description: ledger infrastructure
`)

	candidates, err := parseFeed(path, "")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "vcwire", candidates[1].Source)
	assert.Equal(t, "ledger infrastructure", candidates[1].Description)
}

func TestParseFeedErrors(t *testing.T) {
	_, err := parseFeed(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.ErrorContains(t, err, "read feed file")

	path := writeFeed(t, "feed.csv", "name,source\n")
	_, err = parseFeed(path, "")
	assert.ErrorContains(t, err, "unsupported feed format")

	path = writeFeed(t, "feed.json", `{"not": "a list"}`)
	_, err = parseFeed(path, "")
	assert.ErrorContains(t, err, "parse JSON feed")

	path = writeFeed(t, "feed.json", `[{"website": "https://x.example", "source": "s"}]`)
	_, err = parseFeed(path, "")
	assert.ErrorContains(t, err, "missing name")

	path = writeFeed(t, "feed.json", `[{"name": "Acme"}]`)
	_, err = parseFeed(path, "")
	assert.ErrorContains(t, err, "missing source")
}
