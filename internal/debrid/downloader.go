// Package debrid implements the Downloader capability (SPEC_FULL.md §6)
// by combining the Cached-Source Selector with a download provider: it
// picks a cached stream, then drives that stream through the provider so
// its files actually land in the account ready to symlink.
package debrid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/debrid/realdebrid"
	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/selector"
)

// Provider is the subset of the debrid client the Downloader drives
// beyond the selector's cache probing.
type Provider interface {
	selector.CachedProvider
	AddMagnet(ctx context.Context, magnet string) (string, error)
	SelectFiles(ctx context.Context, torrentID string, fileIDs []string) error
	GetInfo(ctx context.Context, torrentID string) (*realdebrid.TorrentInfo, error)
	ListTorrents(ctx context.Context) ([]realdebrid.TorrentInfo, error)
}

// Downloader implements capability.Downloader.
type Downloader struct {
	provider Provider
	selector *selector.Selector
	log      *slog.Logger
}

func New(provider Provider, limits selector.FilesizeLimits, extensions []string, log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{
		provider: provider,
		selector: selector.New(provider, limits, extensions),
		log:      log.With("component", "downloader"),
	}
}

// Download implements capability.Downloader: select a cached stream, then
// add its magnet and confirm the matched files are selected for
// download. If nothing is cached yet, item is returned unchanged so the
// workflow reaches a fixed point and the Retry Sweeper picks it up later.
func (d *Downloader) Download(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error) {
	if err := d.selector.Select(ctx, item, time.Now()); err != nil {
		return nil, fmt.Errorf("select stream for item %d: %w", item.ID, err)
	}

	if item.ActiveStream == nil || item.ActiveStream.Hash == "" {
		d.log.Debug("no cached stream yet", "item_id", item.ID)
		return item, nil
	}

	torrentID, info, err := d.reconcileExisting(ctx, item)
	if err != nil {
		return nil, err
	}
	if torrentID == "" {
		torrentID, err = d.provider.AddMagnet(ctx, magnetURI(item.ActiveStream.Hash))
		if err != nil {
			return nil, fmt.Errorf("add magnet for item %d: %w", item.ID, err)
		}
		info, err = d.provider.GetInfo(ctx, torrentID)
		if err != nil {
			return nil, fmt.Errorf("get torrent info for item %d: %w", item.ID, err)
		}
	} else {
		d.log.Debug("reusing already-added torrent", "item_id", item.ID, "torrent_id", torrentID)
	}

	fileIDs := matchingFileIDs(info, item.ActiveStream.Files)
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("no files in torrent %s matched item %d's selection", torrentID, item.ID)
	}
	if err := d.provider.SelectFiles(ctx, torrentID, fileIDs); err != nil {
		return nil, fmt.Errorf("select files for item %d: %w", item.ID, err)
	}

	d.log.Info("download submitted", "item_id", item.ID, "torrent_id", torrentID, "files", len(fileIDs))
	return item, nil
}

// reconcileExisting implements SPEC_FULL.md §4.3's already-downloaded
// detection: the selected infohash may already be on the account, added by
// an earlier run or another item pointing at the same torrent. Reusing it
// skips a redundant AddMagnet and avoids a duplicate transfer.
func (d *Downloader) reconcileExisting(ctx context.Context, item *mediaitem.Item) (string, *realdebrid.TorrentInfo, error) {
	torrents, err := d.provider.ListTorrents(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("list torrents for item %d: %w", item.ID, err)
	}
	for _, t := range torrents {
		if !strings.EqualFold(t.Hash, item.ActiveStream.Hash) {
			continue
		}
		info, err := d.provider.GetInfo(ctx, t.ID)
		if err != nil {
			return "", nil, fmt.Errorf("get torrent info for item %d: %w", item.ID, err)
		}
		return t.ID, info, nil
	}
	return "", nil, nil
}

func magnetURI(infohash string) string {
	return "magnet:?xt=urn:btih:" + infohash
}

func matchingFileIDs(info *realdebrid.TorrentInfo, wantPaths []string) []string {
	want := make(map[string]bool, len(wantPaths))
	for _, p := range wantPaths {
		want[p] = true
	}
	var ids []string
	for _, f := range info.Files {
		if want[f.Path] {
			ids = append(ids, fmt.Sprintf("%d", f.ID))
		}
	}
	return ids
}

var _ capability.Downloader = (*Downloader)(nil)
