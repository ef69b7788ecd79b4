// Package capability declares the typed interfaces for every external
// collaborator the workflow hands items to, and a Registry that wires
// concrete adapters to the names internal/transition produces. Keeping
// these interfaces in one package, independent of any one adapter's
// implementation, is what lets internal/workflow depend on capability
// without importing internal/indexer/trakt, internal/scraper, etc.
// directly (see SPEC_FULL.md §6).
package capability

import (
	"context"
	"fmt"

	"github.com/arrflow/arrflow/internal/mediaitem"
)

// Indexer enriches an item with catalog metadata (title, year, children)
// from an external content index such as Trakt.
type Indexer interface {
	Index(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error)
}

// Scraper searches external sources for candidate streams and attaches
// them (ranked, scored) to item.Streams.
type Scraper interface {
	Scrape(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error)
}

// Downloader resolves an item's selected stream into a ready file/folder
// via the cached-source download provider.
type Downloader interface {
	Download(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error)
}

// Symlinker installs a downloaded item's file into the organized library
// layout symlinked back to the download provider's mount.
type Symlinker interface {
	Symlink(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error)
}

// Updater notifies the media server library of newly symlinked content.
type Updater interface {
	Update(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error)
}

// PostProcessor performs best-effort post-processing (subtitle fetch,
// etc.) on a completed item.
type PostProcessor interface {
	Process(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error)
}

// Name is a capability's registry key, matching internal/transition's
// Capability values so the workflow can look up the right adapter by the
// name the state machine returned.
type Name string

const (
	TraktIndexer   Name = "trakt_indexer"
	Scraping       Name = "scraping"
	Downloading    Name = "downloader"
	Symlinking     Name = "symlinker"
	Updating       Name = "updater"
	PostProcessing Name = "post_processing"
)

// Registry resolves a transition.Capability name to the adapter that
// implements it. Every activity the workflow invokes goes through here
// rather than holding direct references, so swapping an adapter (a
// different indexer, a different debrid provider) never touches
// internal/workflow.
type Registry struct {
	indexer    Indexer
	scraper    Scraper
	downloader Downloader
	symlinker  Symlinker
	updater    Updater
	postProc   PostProcessor
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) WithIndexer(i Indexer) *Registry             { r.indexer = i; return r }
func (r *Registry) WithScraper(s Scraper) *Registry             { r.scraper = s; return r }
func (r *Registry) WithDownloader(d Downloader) *Registry       { r.downloader = d; return r }
func (r *Registry) WithSymlinker(s Symlinker) *Registry         { r.symlinker = s; return r }
func (r *Registry) WithUpdater(u Updater) *Registry             { r.updater = u; return r }
func (r *Registry) WithPostProcessor(p PostProcessor) *Registry { r.postProc = p; return r }

// ErrUnregistered is returned by Invoke when no adapter was wired for a
// capability name.
var ErrUnregistered = fmt.Errorf("capability not registered")

// Invoke runs the named capability against item, dispatching to whichever
// adapter was wired for it.
func (r *Registry) Invoke(ctx context.Context, name Name, item *mediaitem.Item) (*mediaitem.Item, error) {
	switch name {
	case TraktIndexer:
		if r.indexer == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrUnregistered)
		}
		return r.indexer.Index(ctx, item)
	case Scraping:
		if r.scraper == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrUnregistered)
		}
		return r.scraper.Scrape(ctx, item)
	case Downloading:
		if r.downloader == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrUnregistered)
		}
		return r.downloader.Download(ctx, item)
	case Symlinking:
		if r.symlinker == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrUnregistered)
		}
		return r.symlinker.Symlink(ctx, item)
	case Updating:
		if r.updater == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrUnregistered)
		}
		return r.updater.Update(ctx, item)
	case PostProcessing:
		if r.postProc == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrUnregistered)
		}
		return r.postProc.Process(ctx, item)
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnregistered)
	}
}
