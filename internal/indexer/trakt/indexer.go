// Package trakt implements the TraktIndexer capability (SPEC_FULL.md §6):
// given an item with only an imdb_id, it resolves the full catalog entry
// (title, year, descriptive metadata and, for a Show, every season and
// episode) from the Trakt API.
package trakt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/mediaitem"
)

const apiBase = "https://api.trakt.tv"

// Client is a Trakt API client for the TraktIndexer capability.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(clientID string, log *slog.Logger) *Client {
	var clientLog *slog.Logger
	if log != nil {
		clientLog = log.With("component", "trakt_indexer")
	}
	return &Client{
		baseURL:    apiBase,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        clientLog,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("trakt-api-version", "2")
	req.Header.Set("trakt-api-key", c.clientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type ids struct {
	Trakt int    `json:"trakt"`
	Imdb  string `json:"imdb"`
	Tmdb  int    `json:"tmdb"`
	Tvdb  int    `json:"tvdb"`
}

type searchResult struct {
	Type  string `json:"type"`
	Movie *entry `json:"movie"`
	Show  *entry `json:"show"`
}

type entry struct {
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	IDs        ids      `json:"ids"`
	Genres     []string `json:"genres"`
	Network    string   `json:"network"`
	Country    string   `json:"country"`
	Language   string   `json:"language"`
	Released   string   `json:"released"`
	FirstAired string   `json:"first_aired"`
}

type seasonEntry struct {
	Number   int             `json:"number"`
	IDs      ids             `json:"ids"`
	Episodes []episodeEntry  `json:"episodes"`
}

type episodeEntry struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	IDs        ids    `json:"ids"`
	FirstAired string `json:"first_aired"`
}

// Index implements capability.Indexer: it resolves item.ImdbID against
// Trakt and, for a show, fully populates its season/episode tree.
func (c *Client) Index(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error) {
	if item.ImdbID == "" {
		return nil, fmt.Errorf("item %d has no imdb_id, cannot index", item.ID)
	}

	var results []searchResult
	if err := c.get(ctx, "/search/imdb/"+item.ImdbID+"?extended=full", &results); err != nil {
		return nil, err
	}

	var resolved *mediaitem.Item
	for _, r := range results {
		switch {
		case r.Type == "movie" && r.Movie != nil:
			resolved = fromEntry(mediaitem.KindMovie, r.Movie, nil)
		case r.Type == "show" && r.Show != nil:
			resolved = fromEntry(mediaitem.KindShow, r.Show, nil)
		}
		if resolved != nil {
			break
		}
	}
	if resolved == nil {
		return nil, fmt.Errorf("no trakt match for imdb_id %s", item.ImdbID)
	}

	if resolved.Kind == mediaitem.KindShow {
		seasons, err := c.seasons(ctx, item.ImdbID, resolved.Genres)
		if err != nil {
			return nil, err
		}
		resolved.Seasons = seasons
		for _, s := range seasons {
			s.Parent = resolved
		}
	}

	now := time.Now()
	resolved.IndexedAt = &now
	resolved.ID = item.ID
	resolved.ItemID = item.ItemID
	return resolved, nil
}

func (c *Client) seasons(ctx context.Context, imdbID string, showGenres []string) ([]*mediaitem.Item, error) {
	var raw []seasonEntry
	if err := c.get(ctx, "/shows/"+imdbID+"/seasons?extended=episodes,full", &raw); err != nil {
		return nil, err
	}

	var seasons []*mediaitem.Item
	for _, s := range raw {
		if s.Number == 0 { // trakt's "Specials" pseudo-season
			continue
		}
		season := &mediaitem.Item{
			Kind:    mediaitem.KindSeason,
			Number:  s.Number,
			ItemID:  fmt.Sprintf("%d", s.IDs.Trakt),
			Genres:  showGenres,
		}
		for _, e := range s.Episodes {
			season.Episodes = append(season.Episodes, &mediaitem.Item{
				Kind:    mediaitem.KindEpisode,
				Number:  e.Number,
				Title:   e.Title,
				ItemID:  fmt.Sprintf("%d", e.IDs.Trakt),
				ImdbID:  e.IDs.Imdb,
				TvdbID:  itoaOrEmpty(e.IDs.Tvdb),
				TmdbID:  itoaOrEmpty(e.IDs.Tmdb),
				AiredAt: parseTraktTime(e.FirstAired),
				Genres:  showGenres,
			})
		}
		seasons = append(seasons, season)
	}
	return seasons, nil
}

func fromEntry(kind mediaitem.Kind, e *entry, genres []string) *mediaitem.Item {
	if genres == nil {
		genres = e.Genres
	}
	item := &mediaitem.Item{
		Kind:     kind,
		Title:    e.Title,
		Year:     e.Year,
		ImdbID:   e.IDs.Imdb,
		TvdbID:   itoaOrEmpty(e.IDs.Tvdb),
		TmdbID:   itoaOrEmpty(e.IDs.Tmdb),
		Genres:   genres,
		Network:  e.Network,
		Country:  e.Country,
		Language: e.Language,
		IsAnime:  isAnime(genres, e.Country, e.Language),
	}
	if kind == mediaitem.KindMovie {
		item.AiredAt = parseTraktDate(e.Released)
	} else {
		item.AiredAt = parseTraktTime(e.FirstAired)
	}
	return item
}

func isAnime(genres []string, country, language string) bool {
	for _, g := range genres {
		g = strings.ToLower(g)
		if g == "anime" {
			return true
		}
		if g == "animation" && (country == "jp" || country == "kr" || language == "ja") {
			return true
		}
	}
	return false
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}

func parseTraktTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", s)
	if err != nil {
		return nil
	}
	return &t
}

func parseTraktDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// ShouldRefresh is the indexer's pure should-submit predicate: an item is
// due for re-indexing when it has no IndexedAt or no title, or once
// interval has elapsed since its last index. The workflow's
// transition.Gate does not call it; it applies its own IndexedAt cooldown.
func ShouldRefresh(item *mediaitem.Item, interval time.Duration, now time.Time) bool {
	if item.IndexedAt == nil || item.Title == "" {
		return true
	}
	return now.Sub(*item.IndexedAt) > interval
}

var _ capability.Indexer = (*Client)(nil)
