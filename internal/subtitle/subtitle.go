// Package subtitle implements the PostProcessing capability
// (SPEC_FULL.md §6): it searches an OpenSubtitles-compatible REST API for
// the item's configured languages and downloads the best match next to
// the symlinked video file. It has no teacher analogue - the teacher
// never fetched subtitles - so its shape is borrowed from the other
// external-API clients in this module (internal/indexer/trakt,
// internal/debrid/realdebrid): a small typed client plus rate limiting
// via golang.org/x/time/rate.
package subtitle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/mediaitem"
)

// ErrNoMatch means the provider returned no subtitle for a language.
var ErrNoMatch = errors.New("subtitle: no match found")

// Config configures which languages to fetch and how to reach the provider.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Languages []string // ISO 639-1 codes, e.g. "en", "fr"
}

// Processor implements a best-effort subtitle search-and-download.
type Processor struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}
	return &Processor{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		log:        log.With("component", "subtitle"),
	}
}

type searchResult struct {
	Data []struct {
		Attributes struct {
			Language  string `json:"language"`
			Downloads int    `json:"download_count"`
			Files     []struct {
				FileID int `json:"file_id"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

type downloadResponse struct {
	Link string `json:"link"`
}

// Process implements capability.PostProcessor: for every leaf item with a
// symlinked file, it fetches subtitles for every configured language it
// doesn't already have. A language with no match is skipped silently, and
// any other fetch error for one language is logged and skipped, rather than
// failing the whole item - subtitles are best-effort.
func (p *Processor) Process(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error) {
	switch item.Kind {
	case mediaitem.KindMovie, mediaitem.KindEpisode:
		if err := p.processLeaf(ctx, item); err != nil {
			return nil, err
		}
	case mediaitem.KindSeason:
		for _, ep := range item.Episodes {
			if ep.Symlinked {
				_ = p.processLeaf(ctx, ep)
			}
		}
	case mediaitem.KindShow:
		for _, season := range item.Seasons {
			for _, ep := range season.Episodes {
				if ep.Symlinked {
					_ = p.processLeaf(ctx, ep)
				}
			}
		}
	}
	return item, nil
}

func (p *Processor) processLeaf(ctx context.Context, item *mediaitem.Item) error {
	if item.SymlinkPath == "" {
		return nil
	}
	have := make(map[string]bool, len(item.Subtitles))
	for _, s := range item.Subtitles {
		have[s.Language] = true
	}

	for _, lang := range p.cfg.Languages {
		if have[lang] {
			continue
		}
		path, err := p.fetchOne(ctx, item, lang)
		if err != nil {
			if !errors.Is(err, ErrNoMatch) {
				p.log.Warn("subtitle fetch failed", "item_id", item.ID, "language", lang, "error", err)
			}
			continue
		}
		item.Subtitles = append(item.Subtitles, &mediaitem.Subtitle{Language: lang, Path: path})
	}
	return nil
}

func (p *Processor) fetchOne(ctx context.Context, item *mediaitem.Item, lang string) (string, error) {
	fileID, err := p.search(ctx, item, lang)
	if err != nil {
		return "", err
	}
	link, err := p.requestDownload(ctx, fileID)
	if err != nil {
		return "", err
	}
	return p.download(ctx, item, lang, link)
}

func (p *Processor) search(ctx context.Context, item *mediaitem.Item, lang string) (int, error) {
	query := item.Title
	if item.Kind == mediaitem.KindEpisode && item.Parent != nil && item.Parent.Parent != nil {
		query = fmt.Sprintf("%s S%02dE%02d", item.Parent.Parent.Title, item.Parent.Number, item.Number)
	}

	req, err := p.newRequest(ctx, http.MethodGet, fmt.Sprintf(
		"/subtitles?query=%s&languages=%s", urlEscape(query), lang,
	), nil)
	if err != nil {
		return 0, err
	}

	var result searchResult
	if err := p.do(req, &result); err != nil {
		return 0, err
	}
	if len(result.Data) == 0 || len(result.Data[0].Attributes.Files) == 0 {
		return 0, ErrNoMatch
	}

	best := result.Data[0]
	for _, candidate := range result.Data[1:] {
		if candidate.Attributes.Downloads > best.Attributes.Downloads {
			best = candidate
		}
	}
	return best.Attributes.Files[0].FileID, nil
}

func (p *Processor) requestDownload(ctx context.Context, fileID int) (string, error) {
	body, err := json.Marshal(map[string]int{"file_id": fileID})
	if err != nil {
		return "", fmt.Errorf("marshal download request: %w", err)
	}
	req, err := p.newRequest(ctx, http.MethodPost, "/download", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var result downloadResponse
	if err := p.do(req, &result); err != nil {
		return "", err
	}
	if result.Link == "" {
		return "", ErrNoMatch
	}
	return result.Link, nil
}

func (p *Processor) download(ctx context.Context, item *mediaitem.Item, lang, link string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download subtitle: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download subtitle: status %d", resp.StatusCode)
	}

	dest := subtitlePath(item.SymlinkPath, lang)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create subtitle file %s: %w", dest, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write subtitle file %s: %w", dest, err)
	}
	return dest, nil
}

// subtitlePath places the subtitle next to the video with the media
// server's {name}.{lang}.srt convention.
func subtitlePath(videoPath, lang string) string {
	ext := filepath.Ext(videoPath)
	base := strings.TrimSuffix(videoPath, ext)
	return fmt.Sprintf("%s.%s.srt", base, lang)
}

func (p *Processor) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	return req, nil
}

func (p *Processor) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subtitle provider request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subtitle provider: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode subtitle provider response: %w", err)
	}
	return nil
}

func urlEscape(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
}

var _ capability.PostProcessor = (*Processor)(nil)
