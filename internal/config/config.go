package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

// EnvPrefix prefixes every environment override, e.g.
// CARDCATALOG_VIEWER_LISTEN.
const EnvPrefix = "CARDCATALOG_"

// Config represents the application configuration.
type Config struct {
	// Catalog build settings
	Build BuildConfig `toml:"build" envPrefix:"BUILD_"`

	// Scryfall API client settings
	Scryfall ScryfallConfig `toml:"scryfall" envPrefix:"SCRYFALL_"`

	// Viewer server settings
	Viewer ViewerConfig `toml:"viewer" envPrefix:"VIEWER_"`

	// Preference database settings
	Storage StorageConfig `toml:"storage" envPrefix:"STORAGE_"`

	// Logging settings
	Log LogConfig `toml:"log" envPrefix:"LOG_"`
}

// BuildConfig contains catalog build settings.
type BuildConfig struct {
	CollectionCSV     string  `toml:"collection_csv" env:"COLLECTION_CSV"`           // Collection export to read
	OutputFile        string  `toml:"output_file" env:"OUTPUT_FILE"`                 // Catalog file to write
	UnmatchedFile     string  `toml:"unmatched_file" env:"UNMATCHED_FILE"`           // Unmatched rows file
	CacheDir          string  `toml:"cache_dir" env:"CACHE_DIR"`                     // Bulk file cache directory
	BulkType          string  `toml:"bulk_type" env:"BULK_TYPE"`                     // Scryfall bulk type
	MaxAge            string  `toml:"max_age" env:"MAX_AGE"`                         // Cache max age, "0" never expires
	MyPriceMultiplier float64 `toml:"my_price_multiplier" env:"MY_PRICE_MULTIPLIER"` // Applied to market price
	DefaultLanguage   string  `toml:"default_language" env:"DEFAULT_LANGUAGE"`       // Language for rows without one
	ForceDownload     bool    `toml:"force_download" env:"FORCE_DOWNLOAD"`           // Ignore the cached bulk file
	ShowProgress      bool    `toml:"show_progress" env:"SHOW_PROGRESS"`             // Progress bar while downloading
}

// ScryfallConfig contains Scryfall API client settings.
type ScryfallConfig struct {
	BaseURL    string `toml:"base_url" env:"BASE_URL"`
	UserAgent  string `toml:"user_agent" env:"USER_AGENT"`
	RateLimit  string `toml:"rate_limit" env:"RATE_LIMIT"` // Minimum spacing between requests
	Timeout    string `toml:"timeout" env:"TIMEOUT"`       // Metadata request timeout
	MaxRetries int    `toml:"max_retries" env:"MAX_RETRIES"`
}

// ViewerConfig contains viewer server settings.
type ViewerConfig struct {
	CatalogFile        string   `toml:"catalog_file" env:"CATALOG_FILE"`
	PageSize           int      `toml:"page_size" env:"PAGE_SIZE"`
	DefaultSort        string   `toml:"default_sort" env:"DEFAULT_SORT"`
	HideIgnoredDefault bool     `toml:"hide_ignored_default" env:"HIDE_IGNORED_DEFAULT"`
	WatchCatalog       bool     `toml:"watch_catalog" env:"WATCH_CATALOG"`
	Listen             string   `toml:"listen" env:"LISTEN"`
	AllowedOrigins     []string `toml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	RequestTimeout     string   `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// StorageConfig contains preference database settings.
type StorageConfig struct {
	DBPath      string `toml:"db_path" env:"DB_PATH"`
	BusyTimeout string `toml:"busy_timeout" env:"BUSY_TIMEOUT"`
	JournalMode string `toml:"journal_mode" env:"JOURNAL_MODE"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `toml:"format" env:"FORMAT"` // auto, json, console
}

var (
	validLevels   = []string{"trace", "debug", "info", "warn", "error"}
	validFormats  = []string{"auto", "json", "console"}
	validJournals = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			CollectionCSV:     "cards.csv",
			OutputFile:        filepath.Join("data", "cards.json"),
			UnmatchedFile:     filepath.Join("data", "unmatched_cards.json"),
			CacheDir:          defaultCacheDir(),
			BulkType:          "default_cards",
			MaxAge:            "0",
			MyPriceMultiplier: 0.85,
			DefaultLanguage:   "en",
			ForceDownload:     false,
			ShowProgress:      true,
		},
		Scryfall: ScryfallConfig{
			BaseURL:    "https://api.scryfall.com",
			UserAgent:  "",
			RateLimit:  "100ms",
			Timeout:    "30s",
			MaxRetries: 3,
		},
		Viewer: ViewerConfig{
			CatalogFile:        filepath.Join("data", "cards.json"),
			PageSize:           20,
			DefaultSort:        "price_desc",
			HideIgnoredDefault: false,
			WatchCatalog:       true,
			Listen:             "127.0.0.1:8080",
			AllowedOrigins:     []string{"http://localhost:*", "http://127.0.0.1:*"},
			RequestTimeout:     "30s",
		},
		Storage: StorageConfig{
			DBPath:      filepath.Join(defaultDataDir(), "preferences.db"),
			BusyTimeout: "5s",
			JournalMode: "WAL",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "card-catalog")
	}
	return filepath.Join(os.TempDir(), "card-catalog")
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".card-catalog")
	}
	return ".card-catalog"
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// Load builds the configuration: defaults, then the TOML file at path (if
// it exists), then CARDCATALOG_* environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			// Keys absent from the file keep their defaults.
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge overlays the non-zero fields of overrides onto c, e.g. values from
// command-line flags.
func (c *Config) Merge(overrides *Config) error {
	if overrides == nil {
		return nil
	}
	if err := mergo.Merge(c, overrides, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return c.Validate()
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Marshal to TOML
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	var errs []error

	for name, value := range map[string]string{
		"build.max_age":          c.Build.MaxAge,
		"scryfall.rate_limit":    c.Scryfall.RateLimit,
		"scryfall.timeout":       c.Scryfall.Timeout,
		"viewer.request_timeout": c.Viewer.RequestTimeout,
		"storage.busy_timeout":   c.Storage.BusyTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, value, err))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative: %s", name, value))
		}
	}

	if c.Build.MyPriceMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("build.my_price_multiplier must be positive: %v", c.Build.MyPriceMultiplier))
	}
	if c.Build.BulkType == "" {
		errs = append(errs, errors.New("build.bulk_type cannot be empty"))
	}
	if c.Scryfall.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("scryfall.max_retries cannot be negative: %d", c.Scryfall.MaxRetries))
	}
	if c.Viewer.PageSize <= 0 || c.Viewer.PageSize > viewer.MaxPageSize {
		errs = append(errs, fmt.Errorf("viewer.page_size must be between 1 and %d: %d", viewer.MaxPageSize, c.Viewer.PageSize))
	}
	if _, err := viewer.ParseSortKey(c.Viewer.DefaultSort); err != nil {
		errs = append(errs, fmt.Errorf("invalid viewer.default_sort: %w", err))
	}
	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("invalid log.level %q", c.Log.Level))
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("invalid log.format %q", c.Log.Format))
	}
	if !slices.Contains(validJournals, strings.ToUpper(c.Storage.JournalMode)) {
		errs = append(errs, fmt.Errorf("invalid storage.journal_mode %q", c.Storage.JournalMode))
	}

	return errors.Join(errs...)
}

// GetMaxAge returns the bulk cache max age. Zero means never expire.
func (c *Config) GetMaxAge() time.Duration {
	return mustDuration(c.Build.MaxAge)
}

// GetRateLimit returns the Scryfall request spacing.
func (c *Config) GetRateLimit() time.Duration {
	return mustDuration(c.Scryfall.RateLimit)
}

// GetScryfallTimeout returns the Scryfall metadata request timeout.
func (c *Config) GetScryfallTimeout() time.Duration {
	return mustDuration(c.Scryfall.Timeout)
}

// GetRequestTimeout returns the viewer API request timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	return mustDuration(c.Viewer.RequestTimeout)
}

// GetBusyTimeout returns the SQLite busy timeout.
func (c *Config) GetBusyTimeout() time.Duration {
	return mustDuration(c.Storage.BusyTimeout)
}

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
