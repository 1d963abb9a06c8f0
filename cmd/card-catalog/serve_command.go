package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/card-catalog/internal/api"
	"github.com/ramonehamilton/card-catalog/internal/config"
	"github.com/ramonehamilton/card-catalog/internal/logger"
	"github.com/ramonehamilton/card-catalog/internal/notify"
	"github.com/ramonehamilton/card-catalog/internal/preferences"
	"github.com/ramonehamilton/card-catalog/internal/storage"
	"github.com/ramonehamilton/card-catalog/internal/storage/repository"
	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	catalog   string
	listen    string
	dbPath    string
	ephemeral bool
	noWatch   bool
}

func (f serveFlags) overrides() *config.Config {
	return &config.Config{
		Viewer:  config.ViewerConfig{CatalogFile: f.catalog, Listen: f.listen},
		Storage: config.StorageConfig{DBPath: f.dbPath},
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog viewer API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Merge(flags.overrides()); err != nil {
				return err
			}
			if flags.noWatch {
				cfg.Viewer.WatchCatalog = false
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := ctx.newLogger(cmd, "serve")
			return runServe(runCtx, cfg, flags.ephemeral, log, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog viewer API listening on http://%s\n", addr)
			})
		},
	}

	cmd.Flags().StringVar(&flags.catalog, "catalog", "", "Catalog file to serve")
	cmd.Flags().StringVarP(&flags.listen, "listen", "l", "", "Listen address (host:port)")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "Preference database path")
	cmd.Flags().BoolVar(&flags.ephemeral, "ephemeral", false, "Keep preferences in memory only")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "Do not reload the catalog when the file changes")

	return cmd
}

// runServe wires the viewer session to the HTTP API and blocks until ctx is
// done. ready receives the bound address once the server is accepting.
func runServe(ctx context.Context, cfg *config.Config, ephemeral bool, log *logger.Logger, ready func(addr string)) error {
	if log == nil {
		log = logger.Nop()
	}

	persist, closeStore, err := openPersistence(ctx, cfg, ephemeral)
	if err != nil {
		return err
	}
	defer closeStore()

	sortKey, err := viewer.ParseSortKey(cfg.Viewer.DefaultSort)
	if err != nil {
		return err
	}

	prefs := preferences.NewStore(persist, log.WithField("module", "preferences"))
	session := viewer.NewSession(viewer.SessionOptions{
		CatalogPath:     cfg.Viewer.CatalogFile,
		PageSize:        cfg.Viewer.PageSize,
		DefaultSort:     sortKey,
		DefaultCriteria: viewer.Criteria{HideIgnored: cfg.Viewer.HideIgnoredDefault},
	}, prefs, notify.New(), log.WithField("module", "viewer"))

	// A missing catalog is reported through the notification channel; the
	// API still starts so a later build can be picked up by the watcher.
	if err := session.Load(ctx); err != nil {
		log.Warn().Err(err).Str("catalog", cfg.Viewer.CatalogFile).Msg("catalog not loaded")
	} else {
		log.Info().Int("cards", session.Len()).Str("catalog", cfg.Viewer.CatalogFile).Msg("catalog loaded")
	}

	watchDone := make(chan struct{})
	if cfg.Viewer.WatchCatalog {
		watcher := viewer.NewCatalogWatcher(cfg.Viewer.CatalogFile, viewer.DefaultWatchDebounce, session, log.WithField("module", "watcher"))
		go func() {
			defer close(watchDone)
			if err := watcher.Run(ctx); err != nil {
				log.Warn().Err(err).Msg("catalog watcher stopped")
			}
		}()
	} else {
		close(watchDone)
	}

	server := api.NewServer(&api.Config{
		Addr:           cfg.Viewer.Listen,
		AllowedOrigins: cfg.Viewer.AllowedOrigins,
		RequestTimeout: cfg.GetRequestTimeout(),
	}, session, log.WithField("module", "api"))
	if err := server.Start(); err != nil {
		return err
	}
	if ready != nil {
		ready(server.Addr())
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	<-watchDone

	log.Info().Msg("server stopped")
	return nil
}

// openPersistence returns the preference backend and its close function.
func openPersistence(ctx context.Context, cfg *config.Config, ephemeral bool) (preferences.Persistence, func(), error) {
	if ephemeral {
		return preferences.NewMemoryPersistence(), func() {}, nil
	}

	dbConfig := storage.DefaultConfig(cfg.Storage.DBPath)
	dbConfig.BusyTimeout = cfg.GetBusyTimeout()
	dbConfig.JournalMode = cfg.Storage.JournalMode

	db, err := storage.Open(ctx, dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("open preference database: %w", err)
	}
	return repository.NewPreferenceRepository(db.Conn()), func() { _ = db.Close() }, nil
}
