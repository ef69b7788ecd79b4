package requestsource

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

const listrrBaseURL = "https://listrr.pro"

// ListrrSource polls one or more Listrr lists (curated movie/show lists
// keyed by imdb id) for new entries.
type ListrrSource struct {
	baseURL    string
	apiKey     string
	movieLists []string
	showLists  []string
	httpClient *http.Client
}

func NewListrrSource(apiKey string, movieLists, showLists []string) *ListrrSource {
	return &ListrrSource{baseURL: listrrBaseURL, apiKey: apiKey, movieLists: movieLists, showLists: showLists, httpClient: defaultHTTPClient()}
}

func (s *ListrrSource) Name() transition.StartedBy { return transition.StartedByListrr }

type listrrPage struct {
	Items []struct {
		IMDbID string `json:"imDbId"`
	} `json:"items"`
	Pages int `json:"pages"`
}

func (s *ListrrSource) Fetch(ctx context.Context) ([]*mediaitem.Item, error) {
	var items []*mediaitem.Item
	now := time.Now()

	fetchKind := func(lists []string, kind mediaitem.Kind, endpoint string) error {
		for _, listID := range lists {
			page := 1
			for {
				var resp listrrPage
				path := fmt.Sprintf("/api/List/%s/%s/%d/1000", endpoint, listID, page)
				headers := map[string]string{"x-api-key": s.apiKey}
				if err := httpGet(ctx, s.httpClient, s.baseURL, path, headers, &resp); err != nil {
					return fmt.Errorf("fetch listrr list %s: %w", listID, err)
				}
				for _, entry := range resp.Items {
					if entry.IMDbID == "" {
						continue
					}
					items = append(items, &mediaitem.Item{
						Kind:        kind,
						ImdbID:      entry.IMDbID,
						RequestedAt: &now,
						RequestedBy: "listrr",
					})
				}
				if page >= resp.Pages {
					break
				}
				page++
			}
		}
		return nil
	}

	if err := fetchKind(s.movieLists, mediaitem.KindMovie, "Movies"); err != nil {
		return nil, err
	}
	if err := fetchKind(s.showLists, mediaitem.KindShow, "Shows"); err != nil {
		return nil, err
	}
	return items, nil
}
