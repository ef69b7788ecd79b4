package requestsource

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

const plexWatchlistBaseURL = "https://metadata.provider.plex.tv"

// PlexWatchlistSource polls a Plex account's discover watchlist (plex.tv,
// not the local media server) for titles the account owner added.
type PlexWatchlistSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewPlexWatchlistSource(token string) *PlexWatchlistSource {
	return &PlexWatchlistSource{baseURL: plexWatchlistBaseURL, token: token, httpClient: defaultHTTPClient()}
}

func (s *PlexWatchlistSource) Name() transition.StartedBy { return transition.StartedByPlexWatchlist }

type plexWatchlistResponse struct {
	MediaContainer struct {
		Metadata []struct {
			Type   string `json:"type"` // "movie" or "show"
			Title  string `json:"title"`
			Guids  []struct {
				ID string `json:"id"` // e.g. "imdb://tt1234567"
			} `json:"Guid"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

// Fetch returns one bare item per watchlist entry that carries an imdb guid.
func (s *PlexWatchlistSource) Fetch(ctx context.Context) ([]*mediaitem.Item, error) {
	var resp plexWatchlistResponse
	headers := map[string]string{"X-Plex-Token": s.token, "Accept": "application/json"}
	if err := httpGet(ctx, s.httpClient, s.baseURL, "/library/sections/watchlist/all", headers, &resp); err != nil {
		return nil, fmt.Errorf("fetch plex watchlist: %w", err)
	}

	now := time.Now()
	var items []*mediaitem.Item
	for _, m := range resp.MediaContainer.Metadata {
		imdb := imdbFromGuids(m.Guids)
		if imdb == "" {
			continue
		}
		kind := mediaitem.KindMovie
		if m.Type == "show" {
			kind = mediaitem.KindShow
		}
		items = append(items, &mediaitem.Item{
			Kind:        kind,
			ImdbID:      imdb,
			Title:       m.Title,
			RequestedAt: &now,
			RequestedBy: "plex_watchlist",
		})
	}
	return items, nil
}

func imdbFromGuids(guids []struct {
	ID string `json:"id"`
}) string {
	const prefix = "imdb://"
	for _, g := range guids {
		if len(g.ID) > len(prefix) && g.ID[:len(prefix)] == prefix {
			return g.ID[len(prefix):]
		}
	}
	return ""
}
