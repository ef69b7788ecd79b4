// Package scheduler runs the two periodic drivers of SPEC_FULL.md §4.5:
// a Content Poller per configured request source, and a single Retry
// Sweeper that re-submits incomplete items. Both follow the teacher's
// poll-on-start-then-ticker pattern (see internal/adapters/sabnzbd).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
	"github.com/arrflow/arrflow/internal/workflow"
)

// ContentSource is one external request source (Overseerr, PlexWatchlist,
// Listrr, Mdblist, TraktContent, or a library scan) - SPEC_FULL.md §6.
type ContentSource interface {
	Name() transition.StartedBy
	Fetch(ctx context.Context) ([]*mediaitem.Item, error)
}

// ContentPoller polls one ContentSource on an interval and submits every
// item it returns to the workflow engine.
type ContentPoller struct {
	source   ContentSource
	engine   *workflow.Engine
	interval time.Duration
	log      *slog.Logger
}

func NewContentPoller(source ContentSource, engine *workflow.Engine, interval time.Duration, log *slog.Logger) *ContentPoller {
	if log == nil {
		log = slog.Default()
	}
	return &ContentPoller{
		source:   source,
		engine:   engine,
		interval: interval,
		log:      log.With("component", "content_poller", "source", source.Name()),
	}
}

// Run polls immediately, then on every tick, until ctx is cancelled.
func (p *ContentPoller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *ContentPoller) poll(ctx context.Context) {
	items, err := p.source.Fetch(ctx)
	if err != nil {
		p.log.Error("fetch failed", "error", err)
		return
	}
	p.log.Debug("poll complete", "items", len(items))
	for _, item := range items {
		p.engine.Submit(ctx, p.source.Name(), item)
	}
}

const retrySweepPageSize = 10

// RetrySweeper periodically re-submits items that are not yet Completed,
// giving stuck items another pass through the workflow without waiting
// for an external trigger. It processes one page per tick to bound load.
type RetrySweeper struct {
	store    *mediaitem.Store
	engine   *workflow.Engine
	interval time.Duration
	log      *slog.Logger

	page int
}

func NewRetrySweeper(store *mediaitem.Store, engine *workflow.Engine, interval time.Duration, log *slog.Logger) *RetrySweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RetrySweeper{store: store, engine: engine, interval: interval, log: log.With("component", "retry_sweeper")}
}

// Run sweeps immediately, then every interval, until ctx is cancelled.
func (s *RetrySweeper) Run(ctx context.Context) error {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep processes one page of incomplete items per call, advancing to the
// next page each time and wrapping back to the start once it runs out -
// over enough ticks every incomplete item gets revisited.
func (s *RetrySweeper) sweep(ctx context.Context) {
	items, err := s.store.ListIncomplete(s.page+1, retrySweepPageSize)
	if err != nil {
		s.log.Error("list incomplete failed", "error", err)
		return
	}
	s.log.Debug("sweep complete", "page", s.page, "items", len(items))

	if len(items) < retrySweepPageSize {
		s.page = 0
	} else {
		s.page++
	}

	for _, item := range items {
		s.engine.Submit(ctx, transition.StartedByRetryLibrary, item)
	}
}
