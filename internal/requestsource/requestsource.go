// Package requestsource implements the request-source capabilities of
// SPEC_FULL.md §6 (Overseerr, PlexWatchlist, Listrr, Mdblist) plus the
// library-scan source, each as a scheduler.ContentSource. Overseerr reuses
// the teacher's Radarr/Sonarr-compat request shapes (internal/api/compat);
// the others are thin HTTP pollers in the same style as
// internal/indexer/trakt.Client, since nothing in the teacher's own corpus
// talks to any of these services.
package requestsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// httpGet performs a GET request against baseURL+path, decoding the JSON
// response body into out. Shared by every thin poller in this package.
func httpGet(ctx context.Context, client *http.Client, baseURL, path string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
