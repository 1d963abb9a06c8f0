package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ramonehamilton/card-catalog/internal/cards/importer"
	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
	"github.com/ramonehamilton/card-catalog/internal/catalog"
	"github.com/ramonehamilton/card-catalog/internal/collection"
	"github.com/ramonehamilton/card-catalog/internal/config"
	"github.com/ramonehamilton/card-catalog/internal/logger"
	"github.com/ramonehamilton/card-catalog/internal/version"
)

type buildFlags struct {
	csv        string
	output     string
	unmatched  string
	cacheDir   string
	maxAge     string
	multiplier float64
	force      bool
	noProgress bool
}

func (f buildFlags) overrides() *config.Config {
	return &config.Config{Build: config.BuildConfig{
		CollectionCSV:     f.csv,
		OutputFile:        f.output,
		UnmatchedFile:     f.unmatched,
		CacheDir:          f.cacheDir,
		MaxAge:            f.maxAge,
		MyPriceMultiplier: f.multiplier,
		ForceDownload:     f.force,
	}}
}

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the catalog file from a collection export",
		Long: "Reads the collection CSV, matches every row against the Scryfall bulk\n" +
			"dataset (downloaded and cached on first use) and writes the catalog and\n" +
			"unmatched files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Merge(flags.overrides()); err != nil {
				return err
			}
			if flags.noProgress {
				cfg.Build.ShowProgress = false
			}

			report, err := runBuild(cmd.Context(), cfg, ctx.newLogger(cmd, "build"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.render())
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.csv, "csv", "", "Collection export to read")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Catalog file to write")
	cmd.Flags().StringVar(&flags.unmatched, "unmatched", "", "Unmatched rows file to write")
	cmd.Flags().StringVar(&flags.cacheDir, "cache-dir", "", "Directory for the cached bulk file")
	cmd.Flags().StringVar(&flags.maxAge, "max-age", "", "Re-download the bulk file when older than this (e.g. 24h)")
	cmd.Flags().Float64Var(&flags.multiplier, "multiplier", 0, "myPrice multiplier applied to market prices")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Download the bulk file even if a cached copy exists")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Disable the download progress bar")

	return cmd
}

// buildReport summarises one build run.
type buildReport struct {
	fetch         *importer.FetchStats
	read          collection.ReadStats
	indexRecords  int
	indexKeys     int
	indexSkipped  int
	stats         catalog.Stats
	outputFile    string
	unmatchedFile string
	elapsed       time.Duration
}

// runBuild executes the catalog build pipeline described by cfg.
func runBuild(ctx context.Context, cfg *config.Config, log *logger.Logger) (*buildReport, error) {
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	report := &buildReport{
		outputFile:    cfg.Build.OutputFile,
		unmatchedFile: cfg.Build.UnmatchedFile,
	}

	entries, readStats, err := collection.ReadFile(cfg.Build.CollectionCSV, collection.ReadOptions{
		DefaultLanguage: cfg.Build.DefaultLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	report.read = readStats
	if readStats.Dropped() > 0 {
		log.Warn().
			Int("missing_fields", readStats.MissingFields).
			Int("bad_quantity", readStats.BadQuantity).
			Msg("skipped invalid collection rows")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("read collection %s: %w", cfg.Build.CollectionCSV, collection.ErrNoEntries)
	}
	log.Info().Int("entries", len(entries)).Str("path", cfg.Build.CollectionCSV).Msg("collection loaded")

	userAgent := cfg.Scryfall.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	client := scryfall.NewClientWithOptions(scryfall.ClientOptions{
		BaseURL:    cfg.Scryfall.BaseURL,
		UserAgent:  userAgent,
		RateLimit:  cfg.GetRateLimit(),
		Timeout:    cfg.GetScryfallTimeout(),
		MaxRetries: cfg.Scryfall.MaxRetries,
	})

	cache := importer.NewBulkCache(client, importer.BulkCacheOptions{
		Dir:           cfg.Build.CacheDir,
		BulkType:      cfg.Build.BulkType,
		MaxAge:        cfg.GetMaxAge(),
		ForceDownload: cfg.Build.ForceDownload,
		ShowProgress:  cfg.Build.ShowProgress,
	}, log)

	fetch, err := cache.Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch bulk data: %w", err)
	}
	report.fetch = fetch

	ix := catalog.NewIndex()
	if _, err := importer.ReadBulkFile(ctx, fetch.Path, func(c *scryfall.Card) error {
		ix.Add(c)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read bulk data: %w", err)
	}
	report.indexRecords = ix.Records()
	report.indexKeys = ix.Len()
	report.indexSkipped = ix.Skipped()
	log.Info().
		Int("records", ix.Records()).
		Int("keys", ix.Len()).
		Int("skipped", ix.Skipped()).
		Msg("reference index built")

	result := catalog.NewBuilder(catalog.BuilderOptions{
		MyPriceMultiplier: cfg.Build.MyPriceMultiplier,
	}, log).Build(entries, ix)
	report.stats = result.Stats

	if err := catalog.WriteFile(cfg.Build.OutputFile, result.Cards); err != nil {
		return nil, fmt.Errorf("write catalog: %w", err)
	}
	if err := catalog.WriteUnmatched(cfg.Build.UnmatchedFile, result.Unmatched); err != nil {
		return nil, fmt.Errorf("write unmatched: %w", err)
	}

	report.elapsed = time.Since(start)
	log.Info().
		Int("matched", result.Stats.Matched).
		Int("unmatched", result.Stats.Unmatched).
		Str("output", cfg.Build.OutputFile).
		Dur("took", report.elapsed).
		Msg("catalog written")

	return report, nil
}

func (r *buildReport) render() string {
	source := "downloaded"
	if r.fetch != nil && r.fetch.CacheHit {
		source = "cached, " + humanize.Time(time.Now().Add(-r.fetch.Age))
	}

	rows := [][]string{
		{"Collection rows", strconv.Itoa(r.read.Rows)},
		{"Invalid rows", strconv.Itoa(r.read.Dropped())},
		{"Bulk data", source},
		{"Reference printings", humanize.Comma(int64(r.indexRecords))},
		{"Matched", strconv.Itoa(r.stats.Matched)},
		{"Unmatched", strconv.Itoa(r.stats.Unmatched)},
		{"No price", strconv.Itoa(r.stats.ZeroPrice)},
		{"No image", strconv.Itoa(r.stats.MissingImage)},
		{"Total quantity", humanize.Comma(int64(r.stats.TotalQuantity))},
		{"Market value", "$" + humanize.CommafWithDigits(r.stats.MarketValue, 2)},
		{"My value", "$" + humanize.CommafWithDigits(r.stats.MyValue, 2)},
		{"Catalog", r.outputFile},
	}
	if r.stats.Unmatched > 0 {
		rows = append(rows, []string{"Unmatched file", r.unmatchedFile})
	}
	rows = append(rows, []string{"Elapsed", r.elapsed.Round(time.Millisecond).String()})

	return renderTable([]string{"Build", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
