// Package plex implements the Updater capability (SPEC_FULL.md §6) against
// a Plex Media Server, notifying it of newly symlinked content so the
// library reflects it without a manual scan.
package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/mediaitem"
)

// Client is a Plex Media Server client scoped to one library section per
// media kind.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	log          *slog.Logger
	movieSection string
	showSection  string
}

// Config names the Plex library sections to refresh for each content
// kind; both are library "key" values as returned by /library/sections.
type Config struct {
	BaseURL      string
	Token        string
	MovieSection string
	ShowSection  string
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	var clientLog *slog.Logger
	if log != nil {
		clientLog = log.With("component", "plex_updater")
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		token:        cfg.Token,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          clientLog,
		movieSection: cfg.MovieSection,
		showSection:  cfg.ShowSection,
	}
}

// Update implements capability.Updater by triggering a targeted scan of
// the directory containing the item's symlinked path.
func (c *Client) Update(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error) {
	section := c.sectionFor(item)
	if section == "" {
		return item, fmt.Errorf("no Plex section configured for kind %s", item.Kind)
	}

	scanPath := filepath.Dir(item.SymlinkPath)
	if err := c.scanPath(ctx, section, scanPath); err != nil {
		return nil, err
	}

	item.UpdateFolder = scanPath
	return item, nil
}

func (c *Client) sectionFor(item *mediaitem.Item) string {
	switch item.Kind {
	case mediaitem.KindMovie:
		return c.movieSection
	case mediaitem.KindEpisode, mediaitem.KindSeason, mediaitem.KindShow:
		return c.showSection
	default:
		return ""
	}
}

func (c *Client) scanPath(ctx context.Context, sectionKey, path string) error {
	u := fmt.Sprintf("%s/library/sections/%s/refresh", c.baseURL, sectionKey)
	q := url.Values{"path": {path}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh section %s: %w", sectionKey, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("refresh section %s: unexpected status %d", sectionKey, resp.StatusCode)
	}
	if c.log != nil {
		c.log.Debug("scan requested", "section", sectionKey, "path", path)
	}
	return nil
}

type mediaContainer struct {
	XMLName xml.Name `xml:"MediaContainer"`
	Size    int      `xml:"size,attr"`
}

// HasContent reports whether Plex already has an item with the given
// title/year in the relevant section - used by request-source adapters
// to avoid re-requesting content already in the library.
func (c *Client) HasContent(ctx context.Context, kind mediaitem.Kind, title string, year int) (bool, error) {
	section := c.sectionFor(&mediaitem.Item{Kind: kind})
	if section == "" {
		return false, nil
	}

	u := fmt.Sprintf("%s/library/sections/%s/search", c.baseURL, section)
	q := url.Values{"title": {title}}
	if year > 0 {
		q.Set("year", fmt.Sprintf("%d", year))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("search section %s: %w", section, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var mc mediaContainer
	if err := xml.NewDecoder(resp.Body).Decode(&mc); err != nil {
		return false, fmt.Errorf("parse search response: %w", err)
	}
	return mc.Size > 0, nil
}

var _ capability.Updater = (*Client)(nil)
