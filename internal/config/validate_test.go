// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func minimalValidConfig() *Config {
	return &Config{
		Indexer: IndexerConfig{Trakt: TraktConfig{APIKey: "key", ClientID: "client"}},
		Debrid:  DebridConfig{RealDebrid: &RealDebridConfig{APIKey: "rd-key", MountRoot: "/mnt/rd"}},
		Scrapers: ScrapersConfig{
			"prowlarr": &ProwlarrConfig{URL: "http://localhost:9696", APIKey: "prowlarr-key"},
		},
		Symlink:        SymlinkConfig{MovieRoot: "/data/movies"},
		ContentSources: ContentSourcesConfig{TraktContent: &TraktContentSourceConfig{}},
	}
}

func TestValidate_MinimalValid(t *testing.T) {
	errs := minimalValidConfig().Validate()
	assert.Empty(t, errs, "expected no errors for minimal valid config, got %v", errs)
}

func TestValidate_NoContentSource(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.ContentSources = ContentSourcesConfig{}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "content_sources"), "expected content_sources error, got %v", errs)
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Server.Port = 99999
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "server.port"), "expected port error, got %v", errs)
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "verbose"
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "log_level"), "expected log_level error, got %v", errs)
}

func TestValidate_TraktMissingAPIKey(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Indexer.Trakt.APIKey = ""
	errs := cfg.Validate()
	assert.True(t, containsErrorBoth(errs, "indexer.trakt", "api_key"), "expected trakt api_key error, got %v", errs)
}

func TestValidate_NoDebridProvider(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Debrid.RealDebrid = nil
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "debrid:"), "expected debrid provider error, got %v", errs)
}

func TestValidate_ScraperMissingAPIKey(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Scrapers["prowlarr"].APIKey = ""
	errs := cfg.Validate()
	assert.True(t, containsErrorBoth(errs, "prowlarr", "api_key"), "expected scraper api_key error, got %v", errs)
}

func TestValidate_NoScrapers(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Scrapers = ScrapersConfig{}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "at least one scraper"), "expected scraper error, got %v", errs)
}

func TestValidate_NoSymlinkRoot(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Symlink = SymlinkConfig{}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "symlink:"), "expected symlink root error, got %v", errs)
}

func TestValidate_PlexUpdaterMissingToken(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Updater.Plex = &PlexUpdaterConfig{URL: "http://localhost:32400"}
	errs := cfg.Validate()
	assert.True(t, containsErrorBoth(errs, "updater.plex", "token"), "expected plex token error, got %v", errs)
}

func TestValidate_SubtitleEnabledMissingBaseURL(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Subtitle = SubtitleConfig{Enabled: true, Languages: []string{"en"}}
	errs := cfg.Validate()
	assert.True(t, containsErrorBoth(errs, "subtitle.base_url", "required"), "expected subtitle base_url error, got %v", errs)
}

func TestValidate_SubtitleDisabledSkipsValidation(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Subtitle = SubtitleConfig{Enabled: false}
	errs := cfg.Validate()
	assert.False(t, containsError(errs, "subtitle"), "subtitle should not be validated when disabled, got %v", errs)
}

func TestValidate_NegativeFilesizeBound(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Debrid.MovieFilesizeMin = -1
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "filesize bounds must not be negative"), "expected negative filesize error, got %v", errs)
}

func TestValidate_FilesizeMaxNotGreaterThanMin(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Debrid.MovieFilesizeMin = 500
	cfg.Debrid.MovieFilesizeMax = 500
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "movie_filesize_max"), "expected movie_filesize_max error, got %v", errs)
}

func TestValidate_FilesizeMaxZeroIsUnboundedAndValid(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Debrid.MovieFilesizeMin = 500
	cfg.Debrid.MovieFilesizeMax = 0
	errs := cfg.Validate()
	assert.False(t, containsError(errs, "movie_filesize_max"), "a zero max should mean unbounded, got %v", errs)
}

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func containsErrorBoth(errs []string, substr1, substr2 string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr1) && strings.Contains(e, substr2) {
			return true
		}
	}
	return false
}
