package trakt

import (
	"context"
	"fmt"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

// ContentSource implements scheduler.ContentSource for the TraktContent
// request source (SPEC_FULL.md §6): it polls one or more Trakt lists
// (e.g. a user's watchlist, a curated list) and emits an item per imdb_id
// found, to be indexed from scratch by the TraktIndexer capability.
type ContentSource struct {
	client *Client
	lists  []string // Trakt list URIs, e.g. "users/me/lists/to-watch"
}

func NewContentSource(client *Client, lists []string) *ContentSource {
	return &ContentSource{client: client, lists: lists}
}

func (s *ContentSource) Name() transition.StartedBy {
	return transition.StartedByTraktContent
}

type listItem struct {
	Type   string `json:"type"`
	Movie  *entry `json:"movie"`
	Show   *entry `json:"show"`
}

// Fetch returns one bare item (imdb_id only) per unique entry across all
// configured lists. The TraktIndexer capability fills in the rest.
func (s *ContentSource) Fetch(ctx context.Context) ([]*mediaitem.Item, error) {
	seen := map[string]bool{}
	var items []*mediaitem.Item

	for _, list := range s.lists {
		var entries []listItem
		if err := s.client.get(ctx, "/"+list+"/items?extended=full", &entries); err != nil {
			return nil, fmt.Errorf("fetch trakt list %s: %w", list, err)
		}

		for _, e := range entries {
			var kind mediaitem.Kind
			var imdb string
			switch {
			case e.Type == "movie" && e.Movie != nil:
				kind, imdb = mediaitem.KindMovie, e.Movie.IDs.Imdb
			case e.Type == "show" && e.Show != nil:
				kind, imdb = mediaitem.KindShow, e.Show.IDs.Imdb
			default:
				continue
			}
			if imdb == "" || seen[imdb] {
				continue
			}
			seen[imdb] = true

			now := time.Now()
			items = append(items, &mediaitem.Item{
				Kind:        kind,
				ImdbID:      imdb,
				RequestedAt: &now,
				RequestedBy: "trakt_content",
			})
		}
	}
	return items, nil
}
