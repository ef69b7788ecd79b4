package requestsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".mov": true, ".wmv": true,
}

func isVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// LibraryScanSource walks the symlinked library root looking for
// video files whose parent folder is not yet tracked as an item, the
// catch-all SymlinkLibrary request source used to pick up content placed
// in the library out of band (e.g. a manual copy).
type LibraryScanSource struct {
	roots []string
	known func(folder string) bool
}

// NewLibraryScanSource scans roots for video files; known reports whether
// a given containing folder is already tracked, so already-imported
// titles aren't re-submitted every sweep.
func NewLibraryScanSource(roots []string, known func(folder string) bool) *LibraryScanSource {
	return &LibraryScanSource{roots: roots, known: known}
}

func (s *LibraryScanSource) Name() transition.StartedBy { return transition.StartedBySymlinkLibrary }

func (s *LibraryScanSource) Fetch(ctx context.Context) ([]*mediaitem.Item, error) {
	now := time.Now()
	var items []*mediaitem.Item
	seen := map[string]bool{}

	for _, root := range s.roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				return err
			}
			if info.IsDir() || !isVideoFile(path) {
				return nil
			}
			if strings.Contains(strings.ToLower(info.Name()), "sample") {
				return nil
			}

			folder := filepath.Dir(path)
			if seen[folder] || (s.known != nil && s.known(folder)) {
				return nil
			}
			seen[folder] = true

			items = append(items, &mediaitem.Item{
				Kind:        mediaitem.KindMovie,
				Title:       filepath.Base(folder),
				Folder:      folder,
				RequestedAt: &now,
				RequestedBy: "library_scan",
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan library root %s: %w", root, err)
		}
	}
	return items, nil
}
