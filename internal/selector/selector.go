// Package selector implements the Cached-Source Selector (SPEC_FULL.md
// §4.3): given an item's ranked stream candidates, it finds the
// highest-ranked one the download provider already holds cached with the
// files the item needs, attaching it and blacklisting the rest as they
// are ruled out. A stream is never reconsidered once blacklisted -
// blacklisting is monotonic for the lifetime of an item.
package selector

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/pkg/release"
)

const (
	// ProbeBatchSize bounds how many infohashes are sent to the provider
	// in a single cache-availability request.
	ProbeBatchSize = 5

	minTitleRatio = 0.70
)

// DefaultExtensions is the recognized video container allowlist, used when
// a Selector is built with no explicit extension set.
var DefaultExtensions = []string{".mkv", ".mp4", ".avi"}

// FilesizeLimits bounds candidate video files by size, in bytes, per media
// kind. A zero Max means unbounded.
type FilesizeLimits struct {
	MovieMin, MovieMax     int64
	EpisodeMin, EpisodeMax int64
}

// ProviderFile is one file inside a cached torrent/container, as reported
// by the download provider.
type ProviderFile struct {
	ID   string
	Path string
	Size int64
}

// Availability is the download provider's answer for one infohash. A
// torrent can be cached under more than one alternative file listing
// ("container" in SPEC_FULL.md terms); Containers holds every one the
// provider reported, sorted by descending file count so the richest
// listing is tried first.
type Availability struct {
	Cached     bool
	Containers [][]ProviderFile
}

// CachedProvider is the download provider's bulk instant-availability
// check (SPEC_FULL.md §6, "download provider" capability). Probe is
// always called with at most ProbeBatchSize hashes.
type CachedProvider interface {
	Probe(ctx context.Context, infohashes []string) (map[string]Availability, error)
}

// Selector picks a cached, file-complete stream for an item from its
// ranked candidate pool.
type Selector struct {
	provider   CachedProvider
	limits     FilesizeLimits
	extensions map[string]bool
}

// New builds a Selector. A zero FilesizeLimits field leaves that bound
// unbounded; a nil extensions slice falls back to DefaultExtensions.
func New(provider CachedProvider, limits FilesizeLimits, extensions []string) *Selector {
	if extensions == nil {
		extensions = DefaultExtensions
	}
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	return &Selector{provider: provider, limits: limits, extensions: extSet}
}

// Select evaluates item.Streams (already ranked and scored by the
// scraper) against the provider's cache, in batches of ProbeBatchSize,
// attaching the first viable candidate and blacklisting the rest as they
// are ruled out. It mutates item in place and returns nil once either a
// stream is selected or every candidate has been exhausted; callers
// should re-run Select on a later poll to pick up newly-cached torrents.
func (s *Selector) Select(ctx context.Context, item *mediaitem.Item, now time.Time) error {
	switch mediaitem.DeriveState(item) {
	case mediaitem.StateDownloaded, mediaitem.StateSymlinked, mediaitem.StateCompleted:
		return nil // already downloaded: fixed point, never re-probe
	}

	candidates := rankedCandidates(item)
	if len(candidates) == 0 {
		return nil
	}

	for _, batch := range chunk(candidates, ProbeBatchSize) {
		hashes := make([]string, len(batch))
		for i, c := range batch {
			hashes[i] = c.Infohash
		}

		avail, err := s.provider.Probe(ctx, hashes)
		if err != nil {
			return fmt.Errorf("probe cache for item %d: %w", item.ID, err)
		}

		for _, cand := range batch {
			a, ok := avail[cand.Infohash]
			if !ok || !a.Cached {
				continue // not cached yet; leave it for the next poll
			}

			if cand.TitleRatio < minTitleRatio {
				blacklist(item, cand, mediaitem.BlacklistNoMatch)
				continue
			}

			var matches []leafMatch
			for _, container := range a.Containers {
				matches = s.wantedFiles(item, container, now)
				if len(matches) > 0 {
					break
				}
			}
			if len(matches) == 0 {
				blacklist(item, cand, mediaitem.BlacklistNoContainer)
				continue
			}

			applySelection(item, cand, matches)
			return nil
		}
	}
	return nil
}

// rankedCandidates returns item.Streams minus anything already
// blacklisted, sorted by Rank then TitleRatio descending (best first).
func rankedCandidates(item *mediaitem.Item) []*mediaitem.Stream {
	blacklisted := item.BlacklistReasons
	var out []*mediaitem.Stream
	seen := map[string]bool{}
	for _, st := range item.Streams {
		if blacklisted[st.Infohash] != "" || seen[st.Infohash] {
			continue
		}
		seen[st.Infohash] = true
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].TitleRatio > out[j].TitleRatio
	})
	return out
}

func chunk(streams []*mediaitem.Stream, size int) [][]*mediaitem.Stream {
	var chunks [][]*mediaitem.Stream
	for size < len(streams) {
		streams, chunks = streams[size:], append(chunks, streams[:size])
	}
	return append(chunks, streams)
}

// blacklist moves a candidate out of contention for the remainder of this
// item's lifetime. It is the only place BlacklistReasons is written, which
// is what makes blacklisting monotonic: once set, rankedCandidates will
// never surface this infohash again.
func blacklist(item *mediaitem.Item, cand *mediaitem.Stream, reason mediaitem.BlacklistReason) {
	item.Blacklisted = append(item.Blacklisted, cand)
	if item.BlacklistReasons == nil {
		item.BlacklistReasons = map[string]mediaitem.BlacklistReason{}
	}
	item.BlacklistReasons[cand.Infohash] = reason
}

// leafMatch pairs a leaf item with the provider file satisfying it.
type leafMatch struct {
	leaf *mediaitem.Item
	file ProviderFile
}

// wantedFiles applies the per-Kind wanted-files predicate, returning the
// leaf/file pairs this container's candidate stream can satisfy. An empty
// result means the container has no usable match.
func (s *Selector) wantedFiles(item *mediaitem.Item, files []ProviderFile, now time.Time) []leafMatch {
	switch item.Kind {
	case mediaitem.KindMovie:
		if f, ok := s.largestVideo(files); ok {
			return []leafMatch{{leaf: item, file: f}}
		}
		return nil

	case mediaitem.KindEpisode:
		seasonNum := 0
		oneSeason := false
		if item.Parent != nil {
			seasonNum = item.Parent.Number
			if item.Parent.Parent != nil {
				oneSeason = len(item.Parent.Parent.Seasons) == 1
			}
		}
		if f, ok := s.findEpisodeFile(files, seasonNum, item.Number, oneSeason); ok {
			return []leafMatch{{leaf: item, file: f}}
		}
		return nil

	case mediaitem.KindSeason:
		oneSeason := item.Parent != nil && len(item.Parent.Seasons) == 1
		var matches []leafMatch
		for _, ep := range mediaitem.NeededEpisodes(item.Episodes, now) {
			if f, ok := s.findEpisodeFile(files, item.Number, ep.Number, oneSeason); ok {
				matches = append(matches, leafMatch{leaf: ep, file: f})
			}
		}
		return matches

	case mediaitem.KindShow:
		oneSeason := len(item.Seasons) == 1
		var matches []leafMatch
		for _, season := range item.Seasons {
			for _, ep := range mediaitem.NeededEpisodes(season.Episodes, now) {
				if f, ok := s.findEpisodeFile(files, season.Number, ep.Number, oneSeason); ok {
					matches = append(matches, leafMatch{leaf: ep, file: f})
				}
			}
		}
		return matches

	default:
		return nil
	}
}

// wantedExtension and isSample mirror the provider's historical
// WANTED_FORMATS/"sample" filename filters: a container can list trailer
// or sample files alongside the real episode/movie, and those must never
// win over the real thing.
func (s *Selector) wantedExtension(filePath string) bool {
	return s.extensions[strings.ToLower(path.Ext(filePath))]
}

func isSample(filePath string) bool {
	return strings.Contains(strings.ToLower(path.Base(filePath)), "sample")
}

func inSizeRange(size, min, max int64) bool {
	if size <= min {
		return false
	}
	if max > 0 && size >= max {
		return false
	}
	return true
}

func (s *Selector) largestVideo(files []ProviderFile) (ProviderFile, bool) {
	var best ProviderFile
	found := false
	for _, f := range files {
		if !inSizeRange(f.Size, s.limits.MovieMin, s.limits.MovieMax) {
			continue
		}
		if !s.wantedExtension(f.Path) || isSample(f.Path) {
			continue
		}
		info := release.Parse(path.Base(f.Path))
		if info.Title == "" {
			continue
		}
		if !found || f.Size > best.Size {
			best = f
			found = true
		}
	}
	return best, found
}

// findEpisodeFile matches a single episode within a container. When
// oneSeason is true the show has only one season, so a release's season
// tag (often missing or wrong for single-season shows) is ignored and only
// the episode number has to match.
func (s *Selector) findEpisodeFile(files []ProviderFile, season, episode int, oneSeason bool) (ProviderFile, bool) {
	var best ProviderFile
	found := false
	for _, f := range files {
		if !inSizeRange(f.Size, s.limits.EpisodeMin, s.limits.EpisodeMax) {
			continue
		}
		if !s.wantedExtension(f.Path) || isSample(f.Path) {
			continue
		}
		info := release.Parse(path.Base(f.Path))
		if !oneSeason && info.Season != season {
			continue
		}
		matches := info.Episode == episode
		for _, e := range info.Episodes {
			if e == episode {
				matches = true
			}
		}
		if !matches {
			continue
		}
		if !found || f.Size > best.Size {
			best = f
			found = true
		}
	}
	return best, found
}

// applySelection attaches cand to item and writes File/Folder onto every
// matched leaf, propagating the container's top-level folder to each leaf
// so siblings pulled from the same season pack share one download root.
func applySelection(item *mediaitem.Item, cand *mediaitem.Stream, matches []leafMatch) {
	item.Streams = append(item.Streams, cand)

	folder := cand.ParsedTitle
	if folder == "" {
		folder = cand.Infohash
	}

	for _, m := range matches {
		m.leaf.ActiveStream = &mediaitem.ActiveStream{
			Hash:  cand.Infohash,
			ID:    m.file.ID,
			Files: []string{m.file.Path},
		}
		m.leaf.File = path.Base(m.file.Path)
		m.leaf.Folder = folder
		m.leaf.AltFolder = path.Dir(m.file.Path)
	}

	if item.IsLeaf() {
		item.ActiveStream = matches[0].leaf.ActiveStream
		item.File = matches[0].leaf.File
		item.Folder = matches[0].leaf.Folder
		item.AltFolder = matches[0].leaf.AltFolder
	}
}
