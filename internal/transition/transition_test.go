package transition

import (
	"testing"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
)

func movie(state mediaitem.State) *mediaitem.Item {
	item := &mediaitem.Item{Kind: mediaitem.KindMovie, Title: "Arrival", ItemID: "tt2543164"}
	applyProgress(item, state)
	return item
}

func episode(number int, state mediaitem.State) *mediaitem.Item {
	item := &mediaitem.Item{Kind: mediaitem.KindEpisode, Number: number}
	applyProgress(item, state)
	return item
}

func season(number int, episodes ...*mediaitem.Item) *mediaitem.Item {
	s := &mediaitem.Item{Kind: mediaitem.KindSeason, Number: number, Episodes: episodes}
	for _, e := range episodes {
		e.Parent = s
	}
	return s
}

func show(seasons ...*mediaitem.Item) *mediaitem.Item {
	s := &mediaitem.Item{Kind: mediaitem.KindShow, Title: "The Wire", Seasons: seasons}
	for _, season := range seasons {
		season.Parent = s
	}
	return s
}

// applyProgress sets the minimal fields that make mediaitem.DeriveState
// compute to the given state, without going through a real capability.
func applyProgress(item *mediaitem.Item, state mediaitem.State) {
	now := time.Now()
	switch state {
	case mediaitem.StateUnknown:
	case mediaitem.StateRequested:
		item.RequestedAt = &now
	case mediaitem.StateIndexed:
		item.RequestedAt = &now
		item.IndexedAt = &now
	case mediaitem.StateScraped:
		item.RequestedAt = &now
		item.IndexedAt = &now
		item.ScrapedAt = &now
	case mediaitem.StateDownloaded:
		item.RequestedAt = &now
		item.IndexedAt = &now
		item.ScrapedAt = &now
		item.File = "movie.mkv"
		item.Folder = "/downloads/Arrival"
	case mediaitem.StateSymlinked:
		item.RequestedAt = &now
		item.IndexedAt = &now
		item.ScrapedAt = &now
		item.File = "movie.mkv"
		item.Folder = "/downloads/Arrival"
		item.Symlinked = true
	case mediaitem.StateCompleted:
		item.RequestedAt = &now
		item.IndexedAt = &now
		item.ScrapedAt = &now
		item.File = "movie.mkv"
		item.Folder = "/downloads/Arrival"
		item.Symlinked = true
		item.UpdateFolder = "/library/Arrival"
	case mediaitem.StateFailed:
		item.LastState = mediaitem.StateFailed
	}
	item.LastState = mediaitem.DeriveState(item)
}

// Testable Property 1: Apply is pure - identical inputs yield identical
// results, regardless of how many times it's called.
func TestApply_Deterministic(t *testing.T) {
	incoming := movie(mediaitem.StateRequested)
	gate := Gate{}

	first := Apply(nil, StartedByOverseerr, incoming, gate)
	second := Apply(nil, StartedByOverseerr, incoming, gate)

	if first.Capability != second.Capability {
		t.Fatalf("capability not deterministic: %q vs %q", first.Capability, second.Capability)
	}
	if len(first.Children) != len(second.Children) {
		t.Fatalf("children count not deterministic: %d vs %d", len(first.Children), len(second.Children))
	}
}

func TestApply_EmitterAlwaysReindexes(t *testing.T) {
	incoming := movie(mediaitem.StateRequested)
	existing := movie(mediaitem.StateIndexed)

	result := Apply(existing, StartedByOverseerr, incoming, Gate{})

	if result.Capability != CapabilityTraktIndexer {
		t.Fatalf("expected TraktIndexer, got %q", result.Capability)
	}
	if len(result.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(result.Children))
	}
}

func TestApply_RequestedWithoutEmitter_FirstSeen(t *testing.T) {
	incoming := movie(mediaitem.StateRequested)

	result := Apply(nil, StartedByRetryLibrary, incoming, Gate{})

	if result.Capability != CapabilityTraktIndexer {
		t.Fatalf("expected TraktIndexer for first-seen item, got %q", result.Capability)
	}
}

func TestApplyRequested_SeasonRetargetsToParentShow(t *testing.T) {
	sea := season(1, episode(1, mediaitem.StateUnknown))
	sea.RequestedAt = timePtr(time.Now())
	parent := show(sea)

	result := Apply(nil, StartedByOverseerr, sea, Gate{})

	if result.Item != parent {
		t.Fatalf("expected retarget to parent show, got kind %q", result.Item.Kind)
	}
	if len(result.Children) != 1 || result.Children[0] != parent {
		t.Fatalf("expected the show itself as the sole index target")
	}
}

func TestApplyRequested_ShouldReindexGateBlocks(t *testing.T) {
	incoming := movie(mediaitem.StateRequested)
	existing := movie(mediaitem.StateIndexed)
	gate := Gate{ShouldReindex: func(*mediaitem.Item) bool { return false }}

	// TraktContent is an emitter, so the re-index gate is what stops it.
	result := Apply(existing, StartedByTraktContent, incoming, gate)
	if !result.FixedPoint() {
		t.Fatalf("expected fixed point when ShouldReindex blocks, got capability %q", result.Capability)
	}
}

func TestApplyIndexed_MovieCanScrape(t *testing.T) {
	incoming := movie(mediaitem.StateIndexed)

	result := Apply(nil, StartedByRetryLibrary, incoming, Gate{})

	if result.Capability != CapabilityScraping {
		t.Fatalf("expected Scraping, got %q", result.Capability)
	}
	if len(result.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(result.Children))
	}
}

func TestApplyIndexed_MovieCanScrapeGateBlocks(t *testing.T) {
	incoming := movie(mediaitem.StateIndexed)
	gate := Gate{CanScrape: func(*mediaitem.Item) bool { return false }}

	result := Apply(nil, StartedByRetryLibrary, incoming, gate)

	if result.Capability != CapabilityScraping {
		t.Fatalf("expected capability to remain Scraping, got %q", result.Capability)
	}
	if len(result.Children) != 0 {
		t.Fatalf("expected no children when CanScrape blocks, got %d", len(result.Children))
	}
}

func TestApplyIndexed_AlreadyCompletedIsFixedPoint(t *testing.T) {
	incoming := movie(mediaitem.StateIndexed)
	existing := movie(mediaitem.StateCompleted)
	// merge takes the existing item (Completed) since IndexedAt is already set.
	existing.IndexedAt = incoming.IndexedAt

	result := Apply(existing, StartedByRetryLibrary, incoming, Gate{})

	if !result.FixedPoint() {
		t.Fatalf("expected fixed point for already-completed item, got capability %q", result.Capability)
	}
}

func TestApplyIndexed_SeasonMixedChildStates(t *testing.T) {
	scrapedEp := episode(1, mediaitem.StateScraped)
	unknownEp := episode(2, mediaitem.StateUnknown)
	sea := season(1, scrapedEp, unknownEp)
	sea.IndexedAt = timePtr(time.Now())
	sea.LastState = mediaitem.DeriveState(sea)

	gate := Gate{CanScrape: func(item *mediaitem.Item) bool { return item == unknownEp }}

	result := Apply(nil, StartedByRetryLibrary, sea, gate)

	if result.Capability != CapabilityDownloader {
		t.Fatalf("expected Downloader (the scraped episode is ready to download), got %q", result.Capability)
	}
	var gotUnknown, gotScraped bool
	for _, c := range result.Children {
		if c == unknownEp {
			gotUnknown = true
		}
		if c == scrapedEp {
			gotScraped = true
		}
	}
	if !gotUnknown || !gotScraped {
		t.Fatalf("expected both the scrapable and the scraped-but-not-downloaded episode as children")
	}
}

func TestApplyScraped_MovieGoesToDownloader(t *testing.T) {
	incoming := movie(mediaitem.StateScraped)

	result := Apply(nil, StartedByRetryLibrary, incoming, Gate{})

	if result.Capability != CapabilityDownloader {
		t.Fatalf("expected Downloader, got %q", result.Capability)
	}
	if len(result.Children) != 1 || result.Children[0] != incoming {
		t.Fatalf("expected the movie itself as the sole child")
	}
}

func TestApplyScraped_SeasonIncludesAlreadyDownloadedSiblings(t *testing.T) {
	downloaded := episode(1, mediaitem.StateDownloaded)
	sea := season(1, downloaded)
	sea.ScrapedAt = timePtr(time.Now())
	// DeriveState would rank this season Downloaded from its only child;
	// the Scraped branch is the one under test, so the state is set directly.
	sea.LastState = mediaitem.StateScraped

	result := Apply(nil, StartedByRetryLibrary, sea, Gate{})

	if result.Capability != CapabilityDownloader {
		t.Fatalf("expected Downloader, got %q", result.Capability)
	}
	found := false
	for _, c := range result.Children {
		if c == downloaded {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the already-downloaded episode to ride along to the downloader activity")
	}
}

func TestApplyDownloaded_MovieShouldSymlinkGate(t *testing.T) {
	incoming := movie(mediaitem.StateDownloaded)

	blocked := Apply(nil, StartedByRetryLibrary, incoming, Gate{ShouldSymlink: func(*mediaitem.Item) bool { return false }})
	if len(blocked.Children) != 0 {
		t.Fatalf("expected no children when ShouldSymlink blocks")
	}

	allowed := Apply(nil, StartedByRetryLibrary, incoming, Gate{})
	if len(allowed.Children) != 1 {
		t.Fatalf("expected 1 child when ShouldSymlink allows")
	}
	if allowed.Capability != CapabilitySymlinker {
		t.Fatalf("expected Symlinker, got %q", allowed.Capability)
	}
}

func TestApplyDownloaded_SeasonWaitsForAllLeavesReady(t *testing.T) {
	ready := episode(1, mediaitem.StateDownloaded)
	notReady := episode(2, mediaitem.StateScraped)
	sea := season(1, ready, notReady)
	// DeriveState would rank these mixed children PartiallyCompleted; the
	// Downloaded branch is the one under test, so the state is set directly.
	sea.LastState = mediaitem.StateDownloaded

	result := Apply(nil, StartedByRetryLibrary, sea, Gate{})

	if len(result.Children) != 1 || result.Children[0] != ready {
		t.Fatalf("expected only the individually-ready episode as a child, got %d children", len(result.Children))
	}
}

func TestApplyDownloaded_SeasonAllReadySymlinksAsGroup(t *testing.T) {
	ep1 := episode(1, mediaitem.StateDownloaded)
	ep2 := episode(2, mediaitem.StateDownloaded)
	sea := season(1, ep1, ep2)
	sea.LastState = mediaitem.DeriveState(sea)

	result := Apply(nil, StartedByRetryLibrary, sea, Gate{})

	if len(result.Children) != 1 || result.Children[0] != sea {
		t.Fatalf("expected the season itself as the sole child when all leaves are ready")
	}
}

func TestApply_SymlinkedAlwaysGoesToUpdater(t *testing.T) {
	incoming := movie(mediaitem.StateSymlinked)

	result := Apply(nil, StartedByRetryLibrary, incoming, Gate{})

	if result.Capability != CapabilityUpdater {
		t.Fatalf("expected Updater, got %q", result.Capability)
	}
	if len(result.Children) != 1 || result.Children[0] != incoming {
		t.Fatalf("expected the item itself as the sole child")
	}
}

func TestApplyCompleted_PostProcessingDisabled(t *testing.T) {
	incoming := movie(mediaitem.StateCompleted)

	result := Apply(nil, StartedByRetryLibrary, incoming, Gate{PostProcessingEnabled: false})

	if !result.FixedPoint() {
		t.Fatalf("expected fixed point when post-processing is disabled, got capability %q", result.Capability)
	}
}

func TestApplyCompleted_NeedsSubtitles(t *testing.T) {
	incoming := movie(mediaitem.StateCompleted)
	gate := Gate{PostProcessingEnabled: true, NeedsSubtitles: func(*mediaitem.Item) bool { return true }}

	result := Apply(nil, StartedByRetryLibrary, incoming, gate)

	if result.Capability != CapabilityPostProcessing {
		t.Fatalf("expected PostProcessing, got %q", result.Capability)
	}
	if len(result.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(result.Children))
	}
}

func TestApplyCompleted_NoSubtitlesNeededIsFixedPoint(t *testing.T) {
	incoming := movie(mediaitem.StateCompleted)
	gate := Gate{PostProcessingEnabled: true, NeedsSubtitles: func(*mediaitem.Item) bool { return false }}

	result := Apply(nil, StartedByRetryLibrary, incoming, gate)

	if !result.FixedPoint() {
		t.Fatalf("expected fixed point, got capability %q", result.Capability)
	}
}

func TestResult_FixedPoint(t *testing.T) {
	cases := []struct {
		name string
		r    Result
		want bool
	}{
		{"empty capability", Result{Capability: ""}, true},
		{"no children", Result{Capability: CapabilityScraping, Children: nil}, true},
		{"has work", Result{Capability: CapabilityScraping, Children: []*mediaitem.Item{{}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.r.FixedPoint(); got != tc.want {
				t.Fatalf("FixedPoint() = %v, want %v", got, tc.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
