// Package symlink implements the Symlinker capability (SPEC_FULL.md §6):
// it links a downloaded item's file, from wherever the download provider
// mounts it, into the organized library layout the media server scans.
// It never copies - the provider's mount is the only copy of the data.
package symlink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/mediaitem"
)

// Default naming templates, in the same {name}/{name:02} placeholder
// syntax as the teacher's renamer.
const (
	DefaultMovieTemplate   = "{title} ({year})/{title} ({year}).{ext}"
	DefaultEpisodeTemplate = "{title}/Season {season:02}/{title} - S{season:02}E{episode:02}.{ext}"
)

// Config configures where symlinks are created and how they're named.
type Config struct {
	MovieRoot       string
	SeriesRoot      string
	MovieTemplate   string
	EpisodeTemplate string
	// MountRoot is where the download provider's filesystem mount lives;
	// Item.Folder/AltFolder are relative to it.
	MountRoot string
}

// Linker implements capability.Symlinker.
type Linker struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Linker {
	if cfg.MovieTemplate == "" {
		cfg.MovieTemplate = DefaultMovieTemplate
	}
	if cfg.EpisodeTemplate == "" {
		cfg.EpisodeTemplate = DefaultEpisodeTemplate
	}
	if log == nil {
		log = slog.Default()
	}
	return &Linker{cfg: cfg, log: log.With("component", "symlinker")}
}

// Symlink implements capability.Symlinker. For a leaf item it links the
// item's own file; for a container (Show/Season) it links every eligible
// descendant leaf, since internal/transition only ever submits a
// container here once every descendant is ready.
func (l *Linker) Symlink(ctx context.Context, item *mediaitem.Item) (*mediaitem.Item, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch item.Kind {
	case mediaitem.KindMovie:
		if err := l.linkMovie(item); err != nil {
			return nil, err
		}
	case mediaitem.KindEpisode:
		if err := l.linkEpisode(item, item.Parent); err != nil {
			return nil, err
		}
	case mediaitem.KindSeason:
		for _, ep := range item.Episodes {
			if ep.File == "" || ep.Symlinked {
				continue
			}
			if err := l.linkEpisode(ep, item); err != nil {
				return nil, err
			}
		}
	case mediaitem.KindShow:
		for _, season := range item.Seasons {
			for _, ep := range season.Episodes {
				if ep.File == "" || ep.Symlinked {
					continue
				}
				if err := l.linkEpisode(ep, season); err != nil {
					return nil, err
				}
			}
		}
	}
	return item, nil
}

func (l *Linker) linkMovie(item *mediaitem.Item) error {
	ext := strings.TrimPrefix(filepath.Ext(item.File), ".")
	rel := applyTemplate(l.cfg.MovieTemplate, map[string]any{
		"title": SanitizeFilename(item.Title),
		"year":  item.Year,
		"ext":   ext,
	})
	dest := filepath.Join(l.cfg.MovieRoot, rel)
	return l.link(item, dest, l.cfg.MovieRoot)
}

func (l *Linker) linkEpisode(ep, season *mediaitem.Item) error {
	if season == nil {
		return fmt.Errorf("episode %d has no parent season loaded", ep.ID)
	}
	show := season.Parent
	title := ep.Title
	if show != nil {
		title = show.Title
	}
	ext := strings.TrimPrefix(filepath.Ext(ep.File), ".")
	rel := applyTemplate(l.cfg.EpisodeTemplate, map[string]any{
		"title":   SanitizeFilename(title),
		"season":  season.Number,
		"episode": ep.Number,
		"ext":     ext,
	})
	dest := filepath.Join(l.cfg.SeriesRoot, rel)
	return l.link(ep, dest, l.cfg.SeriesRoot)
}

// link creates dest as a symlink to the provider-mounted source file,
// recording the result on item. It is idempotent: an existing correct
// symlink is left alone.
func (l *Linker) link(item *mediaitem.Item, dest, root string) error {
	if err := ValidatePath(dest, root); err != nil {
		return err
	}

	src := filepath.Join(l.cfg.MountRoot, item.Folder, item.File)
	if item.AltFolder != "" {
		if _, err := os.Stat(filepath.Join(l.cfg.MountRoot, item.AltFolder)); err == nil {
			src = filepath.Join(l.cfg.MountRoot, item.AltFolder)
		}
	}

	if existing, err := os.Readlink(dest); err == nil {
		if existing == src {
			item.Symlinked = true
			item.SymlinkPath = dest
			return nil
		}
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("remove stale symlink %s: %w", dest, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dest, err)
	}
	if err := os.Symlink(src, dest); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", dest, src, err)
	}

	l.log.Info("symlinked", "item_id", item.ID, "src", src, "dest", dest)
	now := time.Now()
	item.Symlinked = true
	item.SymlinkedAt = &now
	item.SymlinkPath = dest
	item.SymlinkedTimes++
	return nil
}

var formatPattern = regexp.MustCompile(`\{(\w+)(?::(\d+))?\}`)

func applyTemplate(template string, vars map[string]any) string {
	return formatPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := formatPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		val, ok := vars[parts[1]]
		if !ok {
			return match
		}
		if len(parts) >= 3 && parts[2] != "" {
			if width, err := strconv.Atoi(parts[2]); err == nil {
				switch v := val.(type) {
				case int:
					return fmt.Sprintf("%0*d", width, v)
				}
			}
		}
		return fmt.Sprintf("%v", val)
	})
}

var _ capability.Symlinker = (*Linker)(nil)
