package requestsource

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

const mdblistBaseURL = "https://mdblist.com/api"

// MdblistSource polls one or more mdblist.com lists by numeric list id.
type MdblistSource struct {
	baseURL    string
	apiKey     string
	listIDs    []string
	httpClient *http.Client
}

func NewMdblistSource(apiKey string, listIDs []string) *MdblistSource {
	return &MdblistSource{baseURL: mdblistBaseURL, apiKey: apiKey, listIDs: listIDs, httpClient: defaultHTTPClient()}
}

func (s *MdblistSource) Name() transition.StartedBy { return transition.StartedByMdblist }

type mdblistEntry struct {
	IMDbID    string `json:"imdb_id"`
	Mediatype string `json:"mediatype"` // "movie" or "show"
}

func (s *MdblistSource) Fetch(ctx context.Context) ([]*mediaitem.Item, error) {
	now := time.Now()
	var items []*mediaitem.Item

	for _, listID := range s.listIDs {
		var entries []mdblistEntry
		path := fmt.Sprintf("/lists/%s/items?apikey=%s", listID, s.apiKey)
		if err := httpGet(ctx, s.httpClient, s.baseURL, path, nil, &entries); err != nil {
			return nil, fmt.Errorf("fetch mdblist list %s: %w", listID, err)
		}
		for _, e := range entries {
			if e.IMDbID == "" {
				continue
			}
			kind := mediaitem.KindMovie
			if e.Mediatype == "show" {
				kind = mediaitem.KindShow
			}
			items = append(items, &mediaitem.Item{
				Kind:        kind,
				ImdbID:      e.IMDbID,
				RequestedAt: &now,
				RequestedBy: "mdblist",
			})
		}
	}
	return items, nil
}
