// internal/config/validate.go
package config

import "fmt"

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	if c.Indexer.Trakt.APIKey == "" {
		errs = append(errs, "indexer.trakt.api_key: required")
	}
	if c.Indexer.Trakt.ClientID == "" {
		errs = append(errs, "indexer.trakt.client_id: required")
	}

	if c.Debrid.RealDebrid == nil {
		errs = append(errs, "debrid: at least one download provider (real_debrid) must be configured")
	} else {
		if c.Debrid.RealDebrid.APIKey == "" {
			errs = append(errs, "debrid.real_debrid.api_key: required")
		}
		if c.Debrid.RealDebrid.MountRoot == "" {
			errs = append(errs, "debrid.real_debrid.mount_root: required")
		}
	}
	if c.Debrid.MovieFilesizeMin < 0 || c.Debrid.MovieFilesizeMax < 0 ||
		c.Debrid.EpisodeFilesizeMin < 0 || c.Debrid.EpisodeFilesizeMax < 0 {
		errs = append(errs, "debrid: filesize bounds must not be negative")
	}
	if c.Debrid.MovieFilesizeMax != 0 && c.Debrid.MovieFilesizeMax <= c.Debrid.MovieFilesizeMin {
		errs = append(errs, "debrid.movie_filesize_max: must be greater than movie_filesize_min")
	}
	if c.Debrid.EpisodeFilesizeMax != 0 && c.Debrid.EpisodeFilesizeMax <= c.Debrid.EpisodeFilesizeMin {
		errs = append(errs, "debrid.episode_filesize_max: must be greater than episode_filesize_min")
	}

	if len(c.Scrapers) == 0 {
		errs = append(errs, "scrapers: at least one scraper must be configured")
	}
	for name, s := range c.Scrapers {
		if s.URL == "" {
			errs = append(errs, fmt.Sprintf("scrapers.%s.url: required", name))
		}
		if s.APIKey == "" {
			errs = append(errs, fmt.Sprintf("scrapers.%s.api_key: required", name))
		}
	}

	if c.Symlink.MovieRoot == "" && c.Symlink.SeriesRoot == "" {
		errs = append(errs, "symlink: at least one of movie_root or series_root must be configured")
	}

	if c.Updater.Plex != nil {
		if c.Updater.Plex.URL == "" {
			errs = append(errs, "updater.plex.url: required when updater.plex is configured")
		}
		if c.Updater.Plex.Token == "" {
			errs = append(errs, "updater.plex.token: required when updater.plex is configured")
		}
	}

	if c.Subtitle.Enabled {
		if c.Subtitle.BaseURL == "" {
			errs = append(errs, "subtitle.base_url: required when subtitle.enabled is true")
		}
		if len(c.Subtitle.Languages) == 0 {
			errs = append(errs, "subtitle.languages: at least one language required when subtitle.enabled is true")
		}
	}

	if !c.hasContentSource() {
		errs = append(errs, "content_sources: at least one request source must be configured")
	}

	return errs
}

func (c *Config) hasContentSource() bool {
	s := c.ContentSources
	return s.Overseerr != nil || s.PlexWatchlist != nil || s.Listrr != nil ||
		s.Mdblist != nil || s.TraktContent != nil || s.LibraryScan != nil
}
