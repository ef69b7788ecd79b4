package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/config"
	"github.com/arrflow/arrflow/internal/debrid"
	"github.com/arrflow/arrflow/internal/debrid/realdebrid"
	"github.com/arrflow/arrflow/internal/indexer/trakt"
	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/migrations"
	"github.com/arrflow/arrflow/internal/requestsource"
	"github.com/arrflow/arrflow/internal/scheduler"
	"github.com/arrflow/arrflow/internal/scraper"
	"github.com/arrflow/arrflow/internal/selector"
	"github.com/arrflow/arrflow/internal/subtitle"
	"github.com/arrflow/arrflow/internal/symlink"
	plexupdater "github.com/arrflow/arrflow/internal/updater/plex"
	"github.com/arrflow/arrflow/internal/workflow"
	"github.com/arrflow/arrflow/pkg/release"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseResolution(s string) release.Resolution {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2160p", "4k":
		return release.Resolution2160p
	case "1080p":
		return release.Resolution1080p
	case "720p":
		return release.Resolution720p
	default:
		return release.ResolutionUnknown
	}
}

// run opens the store, wires every configured capability adapter and
// content source into the workflow engine, and runs the schedulers until
// a termination signal arrives.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := mediaitem.NewStore(db)
	store.OnStateChange(stateLogger{log: logger})

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("build capability registry: %w", err)
	}

	engine := workflow.NewEngine(store, registry, logger)
	engine.PostProcessingEnabled = cfg.Workflow.PostProcessing
	engine.NeedsSubtitles = func(item *mediaitem.Item) bool {
		return cfg.Subtitle.Enabled && item.IsLeaf()
	}
	if cfg.Indexer.Trakt.APIKey != "" {
		// The workflow's re-index gate lets an already-indexed item back to
		// the indexer only once this long has passed since its IndexedAt.
		engine.ReindexCooldown = cfg.Workflow.ReindexInterval
	}

	sources, err := buildContentSources(cfg, store)
	if err != nil {
		return fmt.Errorf("build content sources: %w", err)
	}
	if len(sources) == 0 {
		logger.Warn("no content sources configured; only the retry sweeper will run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	for _, src := range sources {
		interval := src.interval
		if interval <= 0 {
			interval = 30 * time.Minute // fallback for a misconfigured/zero poll_interval
		}
		poller := scheduler.NewContentPoller(src.source, engine, interval, logger)
		g.Go(func() error { return poller.Run(gctx) })
	}

	sweeper := scheduler.NewRetrySweeper(store, engine, cfg.Workflow.RetryInterval, logger)
	g.Go(func() error { return sweeper.Run(gctx) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("arrflowd starting",
		"store", cfg.Store.Path,
		"content_sources", len(sources),
		"scrapers", len(cfg.Scrapers),
	)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	case <-gctx.Done():
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	logger.Info("arrflowd stopped")
	return nil
}

// stateLogger implements mediaitem.Notifier by logging every state
// transition the store persists.
type stateLogger struct {
	log *slog.Logger
}

func (s stateLogger) ItemStateChanged(item *mediaitem.Item, from, to mediaitem.State) {
	s.log.Info("item state changed", "item_id", item.ID, "title", item.Title, "from", from, "to", to)
}

// buildRegistry wires every capability adapter the config enables into a
// capability.Registry. An adapter whose config section is absent is left
// unregistered; the workflow only fails on a capability it actually needs.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*capability.Registry, error) {
	registry := capability.NewRegistry()

	if cfg.Indexer.Trakt.APIKey != "" {
		traktClient := trakt.NewClient(cfg.Indexer.Trakt.ClientID, logger)
		registry.WithIndexer(traktClient)
	}

	if len(cfg.Scrapers) > 0 {
		indexers := make([]scraper.IndexerAPI, 0, len(cfg.Scrapers))
		var minRes release.Resolution
		var minRatio float64
		for _, sc := range cfg.Scrapers {
			indexers = append(indexers, scraper.NewProwlarrClient(sc.URL, sc.APIKey))
			if r := parseResolution(sc.MinResolution); r > minRes {
				minRes = r
			}
			if sc.MinTitleRatio > minRatio {
				minRatio = sc.MinTitleRatio
			}
		}
		pool := scraper.NewPool(indexers, logger)
		registry.WithScraper(scraper.New(pool, scraper.Config{
			MinResolution: minRes,
			MinTitleRatio: minRatio,
		}, logger))
	}

	if cfg.Debrid.RealDebrid != nil {
		rdClient := realdebrid.NewClient(cfg.Debrid.RealDebrid.APIKey, logger)
		limits := selector.FilesizeLimits{
			MovieMin:   cfg.Debrid.MovieFilesizeMin << 20,
			MovieMax:   cfg.Debrid.MovieFilesizeMax << 20,
			EpisodeMin: cfg.Debrid.EpisodeFilesizeMin << 20,
			EpisodeMax: cfg.Debrid.EpisodeFilesizeMax << 20,
		}
		registry.WithDownloader(debrid.New(rdClient, limits, cfg.Debrid.WantedExtensions, logger))
	}

	if cfg.Symlink.MovieRoot != "" || cfg.Symlink.SeriesRoot != "" {
		registry.WithSymlinker(symlink.New(symlink.Config{
			MovieRoot:       cfg.Symlink.MovieRoot,
			SeriesRoot:      cfg.Symlink.SeriesRoot,
			MovieTemplate:   cfg.Symlink.MovieTemplate,
			EpisodeTemplate: cfg.Symlink.EpisodeTemplate,
			MountRoot:       mountRoot(cfg),
		}, logger))
	}

	if cfg.Updater.Plex != nil {
		registry.WithUpdater(plexupdater.NewClient(plexupdater.Config{
			BaseURL:      cfg.Updater.Plex.URL,
			Token:        cfg.Updater.Plex.Token,
			MovieSection: cfg.Updater.Plex.MovieSection,
			ShowSection:  cfg.Updater.Plex.ShowSection,
		}, logger))
	}

	if cfg.Subtitle.Enabled {
		registry.WithPostProcessor(subtitle.New(subtitle.Config{
			BaseURL:   cfg.Subtitle.BaseURL,
			APIKey:    cfg.Subtitle.APIKey,
			Languages: cfg.Subtitle.Languages,
		}, logger))
	}

	return registry, nil
}

func mountRoot(cfg *config.Config) string {
	if cfg.Debrid.RealDebrid != nil {
		return cfg.Debrid.RealDebrid.MountRoot
	}
	return ""
}

type namedSource struct {
	source   scheduler.ContentSource
	interval time.Duration
}

func buildContentSources(cfg *config.Config, store *mediaitem.Store) ([]namedSource, error) {
	var sources []namedSource

	if oc := cfg.ContentSources.Overseerr; oc != nil {
		src := requestsource.NewOverseerrSource(oc.URL, oc.APIKey)
		sources = append(sources, namedSource{src, oc.PollInterval})
	}
	if pc := cfg.ContentSources.PlexWatchlist; pc != nil {
		src := requestsource.NewPlexWatchlistSource(pc.Token)
		sources = append(sources, namedSource{src, pc.PollInterval})
	}
	if lc := cfg.ContentSources.Listrr; lc != nil {
		src := requestsource.NewListrrSource(lc.APIKey, lc.MovieLists, lc.ShowLists)
		sources = append(sources, namedSource{src, lc.PollInterval})
	}
	if mc := cfg.ContentSources.Mdblist; mc != nil {
		src := requestsource.NewMdblistSource(mc.APIKey, mc.ListIDs)
		sources = append(sources, namedSource{src, mc.PollInterval})
	}
	if tc := cfg.ContentSources.TraktContent; tc != nil && cfg.Indexer.Trakt.ClientID != "" {
		client := trakt.NewClient(cfg.Indexer.Trakt.ClientID, nil)
		src := trakt.NewContentSource(client, cfg.Indexer.Trakt.Lists)
		sources = append(sources, namedSource{src, tc.PollInterval})
	}
	if ls := cfg.ContentSources.LibraryScan; ls != nil {
		known := func(folder string) bool {
			ok, err := store.KnownFolder(folder)
			return err == nil && ok
		}
		src := requestsource.NewLibraryScanSource(ls.Roots, known)
		sources = append(sources, namedSource{src, ls.PollInterval})
	}

	return sources, nil
}
