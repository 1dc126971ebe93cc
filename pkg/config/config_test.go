package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/webtree/pkg/utils"
)

func TestGetEffectiveUserAgent(t *testing.T) {
	app := AppConfig{DefaultUserAgent: "crawler", BrowserUserAgent: "browser"}

	tests := []struct {
		name     string
		crawl    CrawlConfig
		expected string
	}{
		{"Default", CrawlConfig{}, "crawler"},
		{"Spoofed", CrawlConfig{SpoofUserAgent: true}, "browser"},
		{"Override", CrawlConfig{SpoofUserAgent: true, UserAgent: "custom"}, "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveUserAgent(tt.crawl, app))
		})
	}
}

func TestGetEffectiveNumWorkers(t *testing.T) {
	app := AppConfig{NumWorkers: 3}
	assert.Equal(t, 3, GetEffectiveNumWorkers(CrawlConfig{}, app))
	assert.Equal(t, 12, GetEffectiveNumWorkers(CrawlConfig{NumWorkers: 12}, app))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
num_workers: 6
global_crawl_timeout: 2m
visited_store: badger
crawls:
  docs:
    root_urls: ["https://example.com"]
    max_depth: 3
    omit_duplicates: true
    exclude_patterns: ["\\.pdf$"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.NumWorkers)
	assert.Equal(t, 2*time.Minute, cfg.GlobalCrawlTimeout)
	assert.Equal(t, "badger", cfg.VisitedStore)
	require.Contains(t, cfg.Crawls, "docs")
	assert.Equal(t, 3, cfg.Crawls["docs"].MaxDepth)
	assert.True(t, cfg.Crawls["docs"].OmitDuplicates)
	assert.Equal(t, []string{`\.pdf$`}, cfg.Crawls["docs"].ExcludePatterns)
}

func TestLoadFile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_wrokers: 6\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
}
