package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/pkg/release"
	"github.com/arrflow/arrflow/pkg/release/scoring"
)

// Config bounds what the scraper considers an acceptable release.
type Config struct {
	MinResolution release.Resolution // releases below this are dropped
	MinTitleRatio float64
}

// Scraper implements capability.Scraper: it searches the indexer pool,
// parses and scores every result, extracts infohashes, and attaches the
// surviving candidates to the item sorted best-first.
type Scraper struct {
	pool   *Pool
	config Config
	log    *slog.Logger
}

func New(pool *Pool, config Config, log *slog.Logger) *Scraper {
	if log == nil {
		log = slog.Default()
	}
	if config.MinTitleRatio == 0 {
		config.MinTitleRatio = 0.70
	}
	return &Scraper{pool: pool, config: config, log: log.With("component", "scraper")}
}

// Scrape implements capability.Scraper.
func (s *Scraper) Scrape(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error) {
	query, isSeries := searchQuery(item)
	if query == "" {
		return nil, fmt.Errorf("item %d has no title to search", item.ID)
	}

	releases, errs := s.pool.Search(ctx, release.NormalizeSearchQuery(query), isSeries)
	if len(releases) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("scrape %q: all indexers failed: %v", query, errs[0])
	}

	var streams []*mediaitem.Stream
	for _, r := range releases {
		hash := infohashFromMagnet(r.DownloadURL)
		if hash == "" {
			continue // no extractable infohash, not usable by the debrid provider
		}

		info := release.Parse(r.Title)
		if info.Resolution < s.config.MinResolution {
			continue
		}
		if !episodeMatches(item, info) {
			continue
		}

		ratio := release.TitleRatio(query, info.Title)
		if ratio < s.config.MinTitleRatio {
			continue
		}

		streams = append(streams, &mediaitem.Stream{
			Infohash:    hash,
			RawTitle:    r.Title,
			ParsedTitle: info.Title,
			Rank:        scoreRelease(info),
			TitleRatio:  ratio,
		})
	}

	sort.SliceStable(streams, func(i, j int) bool {
		if streams[i].Rank != streams[j].Rank {
			return streams[i].Rank > streams[j].Rank
		}
		return streams[i].TitleRatio > streams[j].TitleRatio
	})

	item.Streams = append(item.Streams, streams...)
	now := time.Now()
	item.ScrapedAt = &now
	item.ScrapedTimes++

	s.log.Debug("scrape complete", "item_id", item.ID, "query", query, "candidates", len(streams))
	return item, nil
}

// episodeMatches rules out season-pack or other-episode results when
// scraping a single Episode; Movie/Season/Show items accept anything the
// title search already narrowed down.
func episodeMatches(item *mediaitem.Item, info release.Info) bool {
	if item.Kind != mediaitem.KindEpisode {
		return true
	}
	if info.IsCompleteSeason {
		return true // season pack, selector's wanted-files predicate will pick the right file
	}
	if info.Season == 0 && info.Episode == 0 {
		return true // couldn't parse episode numbering, let title ratio decide
	}
	seasonNum := 0
	if item.Parent != nil {
		seasonNum = item.Parent.Number
	}
	if info.Season != seasonNum {
		return false
	}
	if info.Episode == item.Number {
		return true
	}
	for _, e := range info.Episodes {
		if e == item.Number {
			return true
		}
	}
	return false
}

func scoreRelease(info release.Info) int {
	score := 0
	switch info.Resolution {
	case release.Resolution2160p:
		score += scoring.ScoreResolution2160p
	case release.Resolution1080p:
		score += scoring.ScoreResolution1080p
	case release.Resolution720p:
		score += scoring.ScoreResolution720p
	default:
		score += scoring.ScoreResolutionOther
	}
	if info.Source == release.SourceBluRay {
		score += scoring.BonusSource
	}
	if info.Codec == release.CodecX265 {
		score += scoring.BonusCodec
	}
	if info.HDR != release.HDRNone {
		score += scoring.BonusHDR
	}
	if info.Audio != release.AudioUnknown {
		score += scoring.BonusAudio
	}
	if info.IsRemux {
		score += scoring.BonusRemux
	}
	return score
}

func searchQuery(item *mediaitem.Item) (query string, isSeries bool) {
	switch item.Kind {
	case mediaitem.KindMovie:
		return item.Title, false
	case mediaitem.KindShow:
		return item.Title, true
	case mediaitem.KindSeason:
		if item.Parent != nil {
			return item.Parent.Title, true
		}
	case mediaitem.KindEpisode:
		if item.Parent != nil && item.Parent.Parent != nil {
			return item.Parent.Parent.Title, true
		}
	}
	return item.Title, true
}

var _ capability.Scraper = (*Scraper)(nil)
