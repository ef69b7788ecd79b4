// Package transition implements the pure state-machine transition rules of
// SPEC_FULL.md §4.2: given an item's prior persisted version, the name of
// the capability that produced the incoming item, and the incoming item
// itself, it decides the next capability to invoke and the children to
// submit to it. It performs no I/O and imports nothing beyond the
// mediaitem model and the standard library, so repeated calls with the
// same inputs are guaranteed to return identical results (Testable
// Property 1).
package transition

import (
	"sort"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
)

// Capability names the external collaborator a transition hands control
// to. An empty Capability (together with an empty children slice) is a
// fixed point: the workflow persists and stops iterating.
type Capability string

const (
	CapabilityTraktIndexer   Capability = "trakt_indexer"
	CapabilityScraping       Capability = "scraping"
	CapabilityDownloader     Capability = "downloader"
	CapabilitySymlinker      Capability = "symlinker"
	CapabilityUpdater        Capability = "updater"
	CapabilityPostProcessing Capability = "post_processing"
)

// StartedBy names the service that produced the incoming item for this
// transition. The request-source emitters always force re-indexing.
type StartedBy string

const (
	StartedByOverseerr      StartedBy = "Overseerr"
	StartedByPlexWatchlist  StartedBy = "PlexWatchlist"
	StartedByListrr         StartedBy = "Listrr"
	StartedByMdblist        StartedBy = "Mdblist"
	StartedBySymlinkLibrary StartedBy = "SymlinkLibrary"
	StartedByTraktContent   StartedBy = "TraktContent"
	StartedByRetryLibrary   StartedBy = "RetryLibrary"
)

var emitters = map[StartedBy]bool{
	StartedByOverseerr:      true,
	StartedByPlexWatchlist:  true,
	StartedByListrr:         true,
	StartedByMdblist:        true,
	StartedBySymlinkLibrary: true,
	StartedByTraktContent:   true,
}

// Gate bundles the pure eligibility predicates the state machine consults.
// Each is the "should_submit"/"can_we_scrape" half of a capability's
// contract (SPEC_FULL.md §6) - a data-only check against the item, never
// a network call, so the transition stays side-effect free. A nil field
// is treated as "always eligible".
type Gate struct {
	// ShouldReindex reports whether an already-indexed item is due for
	// re-indexing (the indexer's should-submit predicate).
	ShouldReindex func(existing *mediaitem.Item) bool
	// CanScrape reports whether an item may be (re-)scraped.
	CanScrape func(item *mediaitem.Item) bool
	// ShouldSymlink filters which Downloaded items are eligible for
	// symlink installation right now.
	ShouldSymlink func(item *mediaitem.Item) bool
	// NeedsSubtitles reports whether an item still needs post-processing.
	NeedsSubtitles func(item *mediaitem.Item) bool
	// PostProcessingEnabled globally gates the PostProcessing capability.
	PostProcessingEnabled bool
	// Now is injected for deterministic testing of aired/needed-episode
	// computations; defaults to time.Now if zero.
	Now time.Time
}

func (g Gate) now() time.Time {
	if g.Now.IsZero() {
		return time.Now()
	}
	return g.Now
}

func (g Gate) shouldReindex(existing *mediaitem.Item) bool {
	if g.ShouldReindex == nil {
		return true
	}
	return g.ShouldReindex(existing)
}

func (g Gate) canScrape(item *mediaitem.Item) bool {
	if g.CanScrape == nil {
		return true
	}
	return g.CanScrape(item)
}

func (g Gate) shouldSymlink(item *mediaitem.Item) bool {
	if g.ShouldSymlink == nil {
		return true
	}
	return g.ShouldSymlink(item)
}

func (g Gate) needsSubtitles(item *mediaitem.Item) bool {
	if g.NeedsSubtitles == nil {
		return false
	}
	return g.NeedsSubtitles(item)
}

// Result is the outcome of one transition evaluation.
type Result struct {
	Item       *mediaitem.Item
	Capability Capability          // empty = fixed point
	Children   []*mediaitem.Item   // empty = fixed point
}

// FixedPoint reports whether this result signals the workflow to persist
// and stop iterating.
func (r Result) FixedPoint() bool {
	return r.Capability == "" || len(r.Children) == 0
}

// Apply evaluates one transition. existing is the prior persisted item (nil
// if this is the first time the item has been seen); incoming is the item
// just produced by startedBy.
func Apply(existing *mediaitem.Item, startedBy StartedBy, incoming *mediaitem.Item, gate Gate) Result {
	if emitters[startedBy] || incoming.LastState == mediaitem.StateRequested || incoming.LastState == mediaitem.StateUnknown {
		return applyRequested(existing, incoming, gate)
	}

	switch incoming.LastState {
	case mediaitem.StateIndexed, mediaitem.StatePartiallyCompleted:
		return applyIndexed(existing, incoming, gate)
	case mediaitem.StateScraped:
		return applyScraped(incoming, startedBy)
	case mediaitem.StateDownloaded:
		return applyDownloaded(incoming, gate)
	case mediaitem.StateSymlinked:
		return Result{Item: incoming, Capability: CapabilityUpdater, Children: []*mediaitem.Item{incoming}}
	case mediaitem.StateCompleted:
		return applyCompleted(incoming, gate)
	default:
		return Result{Item: incoming}
	}
}

func applyRequested(existing *mediaitem.Item, incoming *mediaitem.Item, gate Gate) Result {
	target := incoming
	if target.Kind == mediaitem.KindSeason && target.Parent != nil {
		target = target.Parent
	}

	merged := target
	if existing != nil {
		merged = existing
	}

	if existing != nil && !gate.shouldReindex(existing) {
		return Result{Item: merged}
	}
	return Result{Item: merged, Capability: CapabilityTraktIndexer, Children: []*mediaitem.Item{target}}
}

func applyIndexed(existing *mediaitem.Item, incoming *mediaitem.Item, gate Gate) Result {
	merged := incoming
	if existing != nil {
		merged = existing
		if existing.IndexedAt == nil {
			mergeMissingChildren(merged, incoming)
			copyDescriptiveAttrs(merged, incoming)
			merged.IndexedAt = incoming.IndexedAt
		}
	}

	if mediaitem.DeriveState(merged) == mediaitem.StateCompleted {
		return Result{Item: merged}
	}

	nextCap := CapabilityScraping
	var children []*mediaitem.Item

	switch merged.Kind {
	case mediaitem.KindMovie, mediaitem.KindEpisode:
		if gate.canScrape(merged) {
			children = []*mediaitem.Item{merged}
		}
	case mediaitem.KindShow:
		if gate.canScrape(merged) {
			children = []*mediaitem.Item{merged}
			break
		}
		for _, season := range sortedByNumber(merged.Seasons) {
			if gate.canScrape(season) {
				children = append(children, season)
				continue
			}
			if mediaitem.DeriveState(season) == mediaitem.StateScraped {
				nextCap = CapabilityDownloader
				children = append(children, season)
			}
		}
	case mediaitem.KindSeason:
		if gate.canScrape(merged) {
			children = []*mediaitem.Item{merged}
			break
		}
		for _, ep := range sortedByNumber(merged.Episodes) {
			if gate.canScrape(ep) {
				children = append(children, ep)
				continue
			}
			switch mediaitem.DeriveState(ep) {
			case mediaitem.StateScraped:
				nextCap = CapabilityDownloader
				children = append(children, ep)
			case mediaitem.StateDownloaded:
				nextCap = CapabilitySymlinker
				children = append(children, ep)
			}
		}
	}

	return Result{Item: merged, Capability: nextCap, Children: children}
}

// applyScraped dispatches a Scraped item to the downloader, unless the
// downloader is what just ran and produced no change - nothing came back
// cached, so this is a fixed point until the next poll tries again.
func applyScraped(incoming *mediaitem.Item, startedBy StartedBy) Result {
	if startedBy == StartedBy(CapabilityDownloader) {
		return Result{Item: incoming}
	}

	var children []*mediaitem.Item
	switch incoming.Kind {
	case mediaitem.KindMovie, mediaitem.KindEpisode:
		children = []*mediaitem.Item{incoming}
	case mediaitem.KindShow:
		for _, season := range sortedByNumber(incoming.Seasons) {
			children = append(children, downloadedDescendants(season)...)
		}
		children = append(children, incoming)
	case mediaitem.KindSeason:
		children = append(children, downloadedDescendants(incoming)...)
		children = append(children, incoming)
	}
	return Result{Item: incoming, Capability: CapabilityDownloader, Children: children}
}

func downloadedDescendants(item *mediaitem.Item) []*mediaitem.Item {
	var out []*mediaitem.Item
	for _, ep := range sortedByNumber(item.Episodes) {
		if mediaitem.DeriveState(ep) == mediaitem.StateDownloaded {
			out = append(out, ep)
		}
	}
	return out
}

func applyDownloaded(incoming *mediaitem.Item, gate Gate) Result {
	var children []*mediaitem.Item

	switch incoming.Kind {
	case mediaitem.KindMovie, mediaitem.KindEpisode:
		if gate.shouldSymlink(incoming) {
			children = []*mediaitem.Item{incoming}
		}
	case mediaitem.KindShow, mediaitem.KindSeason:
		leaves := leavesOf(incoming)
		allReady := len(leaves) > 0
		var unsymlinked []*mediaitem.Item
		for _, leaf := range leaves {
			if leaf.Symlinked {
				continue
			}
			unsymlinked = append(unsymlinked, leaf)
			if leaf.File == "" || leaf.Folder == "" {
				allReady = false
			}
		}
		if allReady && len(unsymlinked) > 0 {
			if gate.shouldSymlink(incoming) {
				children = []*mediaitem.Item{incoming}
			}
		} else {
			for _, leaf := range unsymlinked {
				if leaf.File != "" && leaf.Folder != "" && gate.shouldSymlink(leaf) {
					children = append(children, leaf)
				}
			}
		}
	}

	return Result{Item: incoming, Capability: CapabilitySymlinker, Children: children}
}

func leavesOf(item *mediaitem.Item) []*mediaitem.Item {
	switch item.Kind {
	case mediaitem.KindSeason:
		return sortedByNumber(item.Episodes)
	case mediaitem.KindShow:
		var leaves []*mediaitem.Item
		for _, season := range sortedByNumber(item.Seasons) {
			leaves = append(leaves, sortedByNumber(season.Episodes)...)
		}
		return leaves
	default:
		return nil
	}
}

func applyCompleted(incoming *mediaitem.Item, gate Gate) Result {
	if !gate.PostProcessingEnabled {
		return Result{Item: incoming}
	}

	var eligible []*mediaitem.Item
	switch incoming.Kind {
	case mediaitem.KindMovie, mediaitem.KindEpisode:
		if gate.needsSubtitles(incoming) {
			eligible = []*mediaitem.Item{incoming}
		}
	case mediaitem.KindShow, mediaitem.KindSeason:
		for _, leaf := range leavesOf(incoming) {
			if gate.needsSubtitles(leaf) {
				eligible = append(eligible, leaf)
			}
		}
	}

	if len(eligible) == 0 {
		return Result{Item: incoming}
	}
	return Result{Item: incoming, Capability: CapabilityPostProcessing, Children: eligible}
}

func sortedByNumber(items []*mediaitem.Item) []*mediaitem.Item {
	sorted := make([]*mediaitem.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return sorted
}

func copyDescriptiveAttrs(dst, src *mediaitem.Item) {
	dst.Title = src.Title
	dst.Year = src.Year
	dst.AiredAt = src.AiredAt
	dst.Language = src.Language
	dst.Country = src.Country
	dst.Network = src.Network
	dst.Genres = src.Genres
	dst.IsAnime = src.IsAnime
	dst.ImdbID = src.ImdbID
	dst.TvdbID = src.TvdbID
	dst.TmdbID = src.TmdbID
}

// mergeMissingChildren appends seasons/episodes present on src but absent
// (by number) from dst.
func mergeMissingChildren(dst, src *mediaitem.Item) {
	switch dst.Kind {
	case mediaitem.KindShow:
		have := map[int]bool{}
		for _, s := range dst.Seasons {
			have[s.Number] = true
		}
		for _, s := range src.Seasons {
			if !have[s.Number] {
				s.Parent = dst
				dst.Seasons = append(dst.Seasons, s)
			}
		}
	case mediaitem.KindSeason:
		have := map[int]bool{}
		for _, e := range dst.Episodes {
			have[e.Number] = true
		}
		for _, e := range src.Episodes {
			if !have[e.Number] {
				e.Parent = dst
				dst.Episodes = append(dst.Episodes, e)
			}
		}
	}
}
