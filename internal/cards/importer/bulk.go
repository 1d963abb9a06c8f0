package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"

	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
	"github.com/ramonehamilton/card-catalog/internal/logger"
)

// DefaultCacheFile is the fixed name of the cached bulk document.
const DefaultCacheFile = "default-cards.json"

// ErrNoDownloadURI is returned when the bulk metadata carries no usable
// download location.
var ErrNoDownloadURI = errors.New("bulk data metadata has no download_uri")

// BulkSource is the subset of the Scryfall client the cache needs.
type BulkSource interface {
	GetBulkDataByType(ctx context.Context, bulkType string) (*scryfall.BulkData, error)
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// BulkCacheOptions configures the bulk cache.
type BulkCacheOptions struct {
	// Dir is the directory holding the cached bulk file.
	Dir string

	// FileName is the cache file name inside Dir.
	FileName string

	// BulkType is the Scryfall bulk data type to fetch.
	BulkType string

	// MaxAge is the maximum age of a cached file before re-downloading.
	// Zero means a cached file never expires.
	MaxAge time.Duration

	// ForceDownload forces re-download even if a cached file exists.
	ForceDownload bool

	// ShowProgress renders a progress bar on stderr while downloading.
	ShowProgress bool

	// LockTimeout bounds how long Ensure waits for another process holding
	// the cache lock.
	LockTimeout time.Duration
}

// DefaultBulkCacheOptions returns sensible default options.
func DefaultBulkCacheOptions() BulkCacheOptions {
	return BulkCacheOptions{
		Dir:         filepath.Join(os.TempDir(), "card-catalog", "bulk"),
		FileName:    DefaultCacheFile,
		BulkType:    "default_cards",
		MaxAge:      0,
		LockTimeout: 5 * time.Minute,
	}
}

// BulkCache keeps a local copy of a Scryfall bulk document.
type BulkCache struct {
	source  BulkSource
	options BulkCacheOptions
	log     *logger.Logger

	now func() time.Time
}

// NewBulkCache creates a new bulk cache. A nil log discards output.
func NewBulkCache(source BulkSource, options BulkCacheOptions, log *logger.Logger) *BulkCache {
	defaults := DefaultBulkCacheOptions()
	if options.Dir == "" {
		options.Dir = defaults.Dir
	}
	if options.FileName == "" {
		options.FileName = defaults.FileName
	}
	if options.BulkType == "" {
		options.BulkType = defaults.BulkType
	}
	if options.LockTimeout <= 0 {
		options.LockTimeout = defaults.LockTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	return &BulkCache{
		source:  source,
		options: options,
		log:     log,
		now:     time.Now,
	}
}

// Path returns the location of the cached bulk file.
func (bc *BulkCache) Path() string {
	return filepath.Join(bc.options.Dir, bc.options.FileName)
}

// FetchStats describes how Ensure obtained the bulk file.
type FetchStats struct {
	Path         string
	CacheHit     bool
	Age          time.Duration
	BulkFileURL  string
	BulkFileSize int64
	DownloadTime time.Duration
}

// Ensure returns the path of a usable bulk file, downloading it when the
// cache is missing, expired or ForceDownload is set. A cache hit never
// touches the network. Any download failure is fatal and leaves no partial
// file behind.
func (bc *BulkCache) Ensure(ctx context.Context) (*FetchStats, error) {
	if err := os.MkdirAll(bc.options.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if stats, ok := bc.cached(); ok {
		return stats, nil
	}

	lock := flock.New(bc.Path() + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, bc.options.LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, errors.New("bulk cache is locked by another process")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			bc.log.Warn().Err(err).Msg("failed to release bulk cache lock")
		}
	}()

	// Another process may have refreshed the file while we waited.
	if stats, ok := bc.cached(); ok {
		return stats, nil
	}

	return bc.download(ctx)
}

// cached reports whether the cache file can be used as is.
func (bc *BulkCache) cached() (*FetchStats, bool) {
	if bc.options.ForceDownload {
		return nil, false
	}

	info, err := os.Stat(bc.Path())
	if err != nil || info.IsDir() || info.Size() == 0 {
		return nil, false
	}

	age := bc.now().Sub(info.ModTime())
	if bc.options.MaxAge > 0 && age >= bc.options.MaxAge {
		bc.log.Info().
			Str("path", bc.Path()).
			Str("age", humanize.RelTime(info.ModTime(), bc.now(), "old", "")).
			Msg("bulk cache expired")
		return nil, false
	}

	bc.log.Info().
		Str("path", bc.Path()).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Str("modified", humanize.RelTime(info.ModTime(), bc.now(), "ago", "from now")).
		Msg("using cached bulk file")

	return &FetchStats{
		Path:         bc.Path(),
		CacheHit:     true,
		Age:          age,
		BulkFileSize: info.Size(),
	}, true
}

// download fetches the bulk metadata and streams the document into a temp
// file which is renamed over the cache file on success.
func (bc *BulkCache) download(ctx context.Context) (*FetchStats, error) {
	bulkInfo, err := bc.source.GetBulkDataByType(ctx, bc.options.BulkType)
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk data info: %w", err)
	}
	if bulkInfo == nil || bulkInfo.DownloadURI == "" {
		return nil, ErrNoDownloadURI
	}

	stats := &FetchStats{
		Path:        bc.Path(),
		BulkFileURL: bulkInfo.DownloadURI,
	}

	bc.log.Info().
		Str("type", bc.options.BulkType).
		Str("url", bulkInfo.DownloadURI).
		Str("size", humanize.Bytes(uint64(max(bulkInfo.Size, 0)))).
		Msg("downloading bulk file")

	tmpFile, err := os.CreateTemp(bc.options.Dir, "bulk-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		_ = tmpFile.Close()
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			bc.log.Warn().Err(err).Str("path", tmpPath).Msg("failed to remove temp file")
		}
	}

	var w io.Writer = tmpFile
	var bar *progressbar.ProgressBar
	if bc.options.ShowProgress {
		size := bulkInfo.Size
		if size <= 0 {
			size = -1
		}
		bar = progressbar.DefaultBytes(size, "downloading "+bc.options.FileName)
		w = io.MultiWriter(tmpFile, bar)
	}

	start := bc.now()
	written, err := bc.source.Download(ctx, bulkInfo.DownloadURI, w)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to download bulk file: %w", err)
	}
	if written == 0 {
		cleanup()
		return nil, fmt.Errorf("failed to download bulk file: empty document")
	}

	if err := tmpFile.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, bc.Path()); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to rename file: %w", err)
	}

	stats.BulkFileSize = written
	stats.DownloadTime = bc.now().Sub(start)

	bc.log.Info().
		Str("path", bc.Path()).
		Str("size", humanize.Bytes(uint64(written))).
		Dur("took", stats.DownloadTime).
		Msg("bulk file downloaded")

	return stats, nil
}

// Remove deletes the cached bulk file. A missing file is not an error.
func (bc *BulkCache) Remove() error {
	if err := os.Remove(bc.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove bulk cache: %w", err)
	}
	return nil
}
