package requestsource

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

// OverseerrSource polls an Overseerr instance for approved requests not
// yet handed off, in the same tmdbId/mediaType field shapes the teacher's
// Radarr/Sonarr-compat server (internal/api/compat) already speaks on the
// receiving end.
type OverseerrSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewOverseerrSource(baseURL, apiKey string) *OverseerrSource {
	return &OverseerrSource{baseURL: baseURL, apiKey: apiKey, httpClient: defaultHTTPClient()}
}

func (s *OverseerrSource) Name() transition.StartedBy { return transition.StartedByOverseerr }

type overseerrRequestList struct {
	Results []struct {
		ID    int64 `json:"id"`
		Media struct {
			MediaType string `json:"mediaType"` // "movie" or "tv"
			TMDBID    int64  `json:"tmdbId"`
			IMDBID    string `json:"imdbId"`
		} `json:"media"`
	} `json:"results"`
}

// Fetch returns one bare item per approved request, reading at most the
// first 50 that Overseerr lists; media availability is not checked.
func (s *OverseerrSource) Fetch(ctx context.Context) ([]*mediaitem.Item, error) {
	var list overseerrRequestList
	headers := map[string]string{"X-Api-Key": s.apiKey}
	if err := httpGet(ctx, s.httpClient, s.baseURL, "/api/v1/request?filter=approved&take=50", headers, &list); err != nil {
		return nil, fmt.Errorf("fetch overseerr requests: %w", err)
	}

	now := time.Now()
	items := make([]*mediaitem.Item, 0, len(list.Results))
	for _, r := range list.Results {
		kind := mediaitem.KindMovie
		if r.Media.MediaType == "tv" {
			kind = mediaitem.KindShow
		}
		id := r.ID
		items = append(items, &mediaitem.Item{
			Kind:        kind,
			TmdbID:      strconv.FormatInt(r.Media.TMDBID, 10),
			ImdbID:      r.Media.IMDBID,
			RequestedAt: &now,
			RequestedBy: "overseerr",
			OverseerrID: &id,
		})
	}
	return items, nil
}
