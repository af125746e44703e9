package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	f := Default()

	assert.Equal(t, 3*time.Second, f.Crawl.RequestDelay)
	assert.Equal(t, 50, f.Crawl.MaxPages)
	assert.Equal(t, 10, f.Crawl.MaxScrolls)
	assert.Equal(t, 10*time.Second, f.Crawl.ProbeTimeout)
	assert.Equal(t, 5, f.Crawl.MinCards)
	assert.Equal(t, 1, f.Crawl.MaxConcurrent)
	assert.Equal(t, DriverMongoDB, f.Storage.Driver)
	assert.Equal(t, "mongodb://localhost:27017", f.Storage.URI)
	assert.Equal(t, ".cache", f.CacheDir)
	assert.Equal(t, 1, f.CrawlConfig().MaxDepth)
	assert.NoError(t, f.Validate())
}

func TestLoadFromBytes(t *testing.T) {
	t.Setenv("CRAWLER_TEST_MONGO", "mongodb://db.internal:27017")

	f, err := LoadFromBytes([]byte(`
crawl:
  request_delay: 5s
  max_pages: 3
  use_browser: false
site:
  name: flipkart
  rules:
    Cameras:
      card: div.cPHDOP
      title: a.wjcEIp
      price: div.Nx9bqj
storage:
  driver: mongodb
  uri: ${CRAWLER_TEST_MONGO}
  database: products
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, f.Crawl.RequestDelay)
	assert.Equal(t, 3, f.Crawl.MaxPages)
	assert.Equal(t, 10, f.Crawl.MaxScrolls, "unset values take defaults")
	assert.Equal(t, "mongodb://db.internal:27017", f.Storage.URI)
	assert.Equal(t, "div.cPHDOP", f.Site.Rules["Cameras"].CardSelector)

	cfg := f.CrawlConfig()
	assert.False(t, cfg.UseHeadlessBrowser)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 3, cfg.MaxPages)
	assert.Equal(t, 5*time.Second, cfg.RequestDelay)
}

func TestLoadFromBytes_ZeroDepthDisablesTraversal(t *testing.T) {
	f, err := LoadFromBytes([]byte("crawl:\n  max_depth: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.CrawlConfig().MaxDepth)

	f, err = LoadFromBytes([]byte("crawl:\n  max_pages: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.CrawlConfig().MaxDepth, "an absent max_depth takes the default")
}

func TestLoadFromBytes_SQLiteDefaults(t *testing.T) {
	f, err := LoadFromBytes([]byte("storage:\n  driver: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, "catalog.db", f.Storage.SQLitePath)
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "cannot be empty"},
		{"syntax", "crawl: [", "failed to parse"},
		{"driver", "storage:\n  driver: postgres\n", "unknown storage driver"},
		{"negative delay", "crawl:\n  request_delay: -1s\n", "request_delay"},
		{"rule without card", "site:\n  rules:\n    Cameras:\n      title: a\n", "card selector is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  max_depth: 2\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f.Crawl.MaxDepth)
	assert.Equal(t, 2, *f.Crawl.MaxDepth)

	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFromReader(t *testing.T) {
	f, err := LoadFromReader(strings.NewReader("cache_dir: /tmp/crawler-cache\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/crawler-cache", f.CacheDir)
}
