package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "default_cards", cfg.Build.BulkType)
	assert.Equal(t, 0.85, cfg.Build.MyPriceMultiplier)
	assert.Equal(t, 20, cfg.Viewer.PageSize)
	assert.Equal(t, "price_desc", cfg.Viewer.DefaultSort)
	assert.Zero(t, cfg.GetMaxAge())
	assert.Equal(t, 100*time.Millisecond, cfg.GetRateLimit())
	assert.Equal(t, 5*time.Second, cfg.GetBusyTimeout())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[build]
collection_csv = "exports/collection.csv"
max_age = "168h"

[viewer]
page_size = 50
watch_catalog = false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "exports/collection.csv", cfg.Build.CollectionCSV)
	assert.Equal(t, 168*time.Hour, cfg.GetMaxAge())
	assert.Equal(t, 50, cfg.Viewer.PageSize)
	assert.False(t, cfg.Viewer.WatchCatalog)

	// Untouched keys keep their defaults.
	assert.Equal(t, "default_cards", cfg.Build.BulkType)
	assert.Equal(t, "price_desc", cfg.Viewer.DefaultSort)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[viewer]\nlisten = \"127.0.0.1:9000\"\n"), 0o644))

	t.Setenv("CARDCATALOG_VIEWER_LISTEN", "0.0.0.0:7000")
	t.Setenv("CARDCATALOG_VIEWER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("CARDCATALOG_LOG_LEVEL", "debug")
	t.Setenv("CARDCATALOG_BUILD_FORCE_DOWNLOAD", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Viewer.Listen)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Viewer.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Build.ForceDownload)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[build\n"), 0o644))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "parse config file")

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[viewer]\npage_size = 0\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "viewer.page_size")

	t.Setenv("CARDCATALOG_VIEWER_PAGE_SIZE", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "parse environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad duration", func(c *Config) { c.Scryfall.Timeout = "soon" }, "scryfall.timeout"},
		{"negative duration", func(c *Config) { c.Build.MaxAge = "-1h" }, "build.max_age"},
		{"multiplier", func(c *Config) { c.Build.MyPriceMultiplier = 0 }, "my_price_multiplier"},
		{"sort", func(c *Config) { c.Viewer.DefaultSort = "color" }, "default_sort"},
		{"page size too large", func(c *Config) { c.Viewer.PageSize = math.MaxInt }, "viewer.page_size"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"journal", func(c *Config) { c.Storage.JournalMode = "fast" }, "journal_mode"},
		{"retries", func(c *Config) { c.Scryfall.MaxRetries = -1 }, "max_retries"},
		{"bulk type", func(c *Config) { c.Build.BulkType = "" }, "bulk_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_AcceptsEverySortKey(t *testing.T) {
	for _, key := range viewer.SortKeys {
		cfg := DefaultConfig()
		cfg.Viewer.DefaultSort = strings.ToUpper(string(key))
		assert.NoError(t, cfg.Validate(), key)
	}

	cfg := DefaultConfig()
	cfg.Viewer.PageSize = viewer.MaxPageSize
	assert.NoError(t, cfg.Validate())
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Merge(&Config{
		Build:  BuildConfig{CollectionCSV: "mine.csv", ForceDownload: true},
		Viewer: ViewerConfig{Listen: ":9999"},
	})
	require.NoError(t, err)

	assert.Equal(t, "mine.csv", cfg.Build.CollectionCSV)
	assert.True(t, cfg.Build.ForceDownload)
	assert.Equal(t, ":9999", cfg.Viewer.Listen)
	assert.Equal(t, 20, cfg.Viewer.PageSize, "zero-valued overrides are ignored")

	require.NoError(t, cfg.Merge(nil))
	assert.Error(t, cfg.Merge(&Config{Viewer: ViewerConfig{DefaultSort: "bogus"}}))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Viewer.PageSize = 40
	cfg.Log.Format = "json"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
