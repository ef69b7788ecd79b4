package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrProwlarrUnavailable means the Prowlarr instance could not be reached.
	ErrProwlarrUnavailable = errors.New("prowlarr unavailable")
	// ErrInvalidAPIKey means Prowlarr rejected the configured API key.
	ErrInvalidAPIKey = errors.New("invalid prowlarr api key")
)

var btihPattern = regexp.MustCompile(`(?i)urn:btih:([a-z0-9]{32,40})`)

// infohashFromMagnet extracts the btih hash from a magnet URI, lowercased.
// Non-magnet download URLs (direct .torrent links) have no extractable
// hash and are skipped by the scraper.
func infohashFromMagnet(magnet string) string {
	m := btihPattern.FindStringSubmatch(magnet)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

type prowlarrRelease struct {
	Title       string `json:"title"`
	GUID        string `json:"guid"`
	Indexer     string `json:"indexer"`
	DownloadURL string `json:"downloadUrl"`
	MagnetURL   string `json:"magnetUrl"`
	Size        int64  `json:"size"`
	PublishDate string `json:"publishDate"`
}

// ProwlarrClient queries a Prowlarr instance, which aggregates many
// torrent trackers behind one API.
type ProwlarrClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProwlarrClient(baseURL, apiKey string) *ProwlarrClient {
	return &ProwlarrClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ProwlarrClient) Name() string { return "prowlarr" }

func (c *ProwlarrClient) Search(ctx context.Context, query string, categories []int) ([]Release, error) {
	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	reqURL.Path = "/api/v1/search"

	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	catStrs := make([]string, len(categories))
	for i, cat := range categories {
		catStrs[i] = fmt.Sprintf("%d", cat)
	}
	if len(catStrs) > 0 {
		params.Set("categories", strings.Join(catStrs, ","))
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProwlarrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidAPIKey
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var raw []prowlarrRelease
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		magnet := r.MagnetURL
		if magnet == "" {
			magnet = r.DownloadURL
		}
		releases = append(releases, Release{
			Title:       r.Title,
			GUID:        r.GUID,
			Indexer:     r.Indexer,
			DownloadURL: magnet,
			Size:        r.Size,
			PublishDate: parseTime(r.PublishDate),
		})
	}
	return releases, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
