package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalog-crawler/internal/config"
	"catalog-crawler/internal/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, origin string) *config.File {
	t.Helper()
	dir := t.TempDir()
	off := false

	file := config.Default()
	file.Site.Origin = origin
	file.Crawl.UseBrowser = &off
	file.Crawl.RequestDelay = time.Millisecond
	file.Storage.Driver = config.DriverSQLite
	file.Storage.SQLitePath = filepath.Join(dir, "catalog.db")
	file.CacheDir = filepath.Join(dir, "cache")
	return file
}

func quietLogger() *logrus.Logger {
	logger, _ := testutil.Logger()
	return logger
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts options
		ok   bool
	}{
		{"discover", options{discover: true}, true},
		{"category with url", options{category: "Mobiles", url: "https://www.flipkart.com/search?q=mobiles"}, true},
		{"all", options{all: true}, true},
		{"no mode", options{}, false},
		{"two modes", options{discover: true, all: true}, false},
		{"category without url", options{category: "Mobiles"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfig_AppliesOverrides(t *testing.T) {
	file, err := loadConfig(options{httpOnly: true, maxPages: 4, maxConcurrent: 3, requestDelay: time.Second})
	require.NoError(t, err)

	assert.Equal(t, 4, file.Crawl.MaxPages)
	assert.Equal(t, 3, file.Crawl.MaxConcurrent)
	assert.Equal(t, time.Second, file.Crawl.RequestDelay)
	assert.False(t, file.CrawlConfig().UseHeadlessBrowser)

	_, err = loadConfig(options{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestRun_WritesDiscoveryOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Nothing here</p></body></html>`)
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "categories.json")
	err := run(context.Background(), quietLogger(), testConfig(t, server.URL), options{discover: true, output: out})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRun_ReturnsErrorsInsteadOfExiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Nothing here</p></body></html>`)
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "missing", "categories.json")
	err := run(context.Background(), quietLogger(), testConfig(t, server.URL), options{discover: true, output: out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write output file")

	file := testConfig(t, server.URL)
	file.Storage.Driver = "postgres"
	err = run(context.Background(), quietLogger(), file, options{discover: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}
