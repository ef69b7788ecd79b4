// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server         ServerConfig         `toml:"server"`
	Store          StoreConfig          `toml:"store"`
	Indexer        IndexerConfig        `toml:"indexer"`
	Debrid         DebridConfig         `toml:"debrid"`
	Scrapers       ScrapersConfig       `toml:"scrapers"`
	Symlink        SymlinkConfig        `toml:"symlink"`
	Updater        UpdaterConfig        `toml:"updater"`
	Subtitle       SubtitleConfig       `toml:"subtitle"`
	ContentSources ContentSourcesConfig `toml:"content_sources"`
	Workflow       WorkflowConfig       `toml:"workflow"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type IndexerConfig struct {
	Trakt TraktConfig `toml:"trakt"`
}

type TraktConfig struct {
	APIKey   string   `toml:"api_key"`
	ClientID string   `toml:"client_id"`
	Lists    []string `toml:"lists"` // e.g. "users/me/lists/to-watch"
}

type DebridConfig struct {
	RealDebrid *RealDebridConfig `toml:"real_debrid"`

	// Filesize bounds, in megabytes, applied by the Cached-Source Selector
	// when picking a file within a cached container. A max of 0 (or
	// unset) means unbounded.
	MovieFilesizeMin   int64 `toml:"movie_filesize_min"`
	MovieFilesizeMax   int64 `toml:"movie_filesize_max"`
	EpisodeFilesizeMin int64 `toml:"episode_filesize_min"`
	EpisodeFilesizeMax int64 `toml:"episode_filesize_max"`
	// WantedExtensions is the recognized video container allowlist. Empty
	// falls back to selector.DefaultExtensions.
	WantedExtensions []string `toml:"wanted_extensions"`
}

type RealDebridConfig struct {
	APIKey    string `toml:"api_key"`
	MountRoot string `toml:"mount_root"` // where the provider's filesystem is mounted locally
}

// ScrapersConfig is a map of scraper name to its indexer config.
// Parsed from [scrapers.NAME] sections in TOML.
type ScrapersConfig map[string]*ProwlarrConfig

type ProwlarrConfig struct {
	URL           string  `toml:"url"`
	APIKey        string  `toml:"api_key"`
	MinResolution string  `toml:"min_resolution"`
	MinTitleRatio float64 `toml:"min_title_ratio"`
}

type SymlinkConfig struct {
	MovieRoot       string `toml:"movie_root"`
	SeriesRoot      string `toml:"series_root"`
	MovieTemplate   string `toml:"movie_template"`
	EpisodeTemplate string `toml:"episode_template"`
}

type UpdaterConfig struct {
	Plex *PlexUpdaterConfig `toml:"plex"`
}

type PlexUpdaterConfig struct {
	URL          string `toml:"url"`
	Token        string `toml:"token"`
	MovieSection string `toml:"movie_section"`
	ShowSection  string `toml:"show_section"`
}

type SubtitleConfig struct {
	Enabled   bool     `toml:"enabled"`
	BaseURL   string   `toml:"base_url"`
	APIKey    string   `toml:"api_key"`
	Languages []string `toml:"languages"`
}

// ContentSourcesConfig configures every request source the Content Poller
// can drive, one section per source.
type ContentSourcesConfig struct {
	Overseerr     *OverseerrSourceConfig     `toml:"overseerr"`
	PlexWatchlist *PlexWatchlistSourceConfig `toml:"plex_watchlist"`
	Listrr        *ListrrSourceConfig        `toml:"listrr"`
	Mdblist       *MdblistSourceConfig       `toml:"mdblist"`
	TraktContent  *TraktContentSourceConfig  `toml:"trakt_content"`
	LibraryScan   *LibraryScanSourceConfig   `toml:"library_scan"`
}

type OverseerrSourceConfig struct {
	URL          string        `toml:"url"`
	APIKey       string        `toml:"api_key"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type PlexWatchlistSourceConfig struct {
	Token        string        `toml:"token"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type ListrrSourceConfig struct {
	APIKey       string        `toml:"api_key"`
	MovieLists   []string      `toml:"movie_lists"`
	ShowLists    []string      `toml:"show_lists"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type MdblistSourceConfig struct {
	APIKey       string        `toml:"api_key"`
	ListIDs      []string      `toml:"list_ids"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type TraktContentSourceConfig struct {
	PollInterval time.Duration `toml:"poll_interval"`
}

type LibraryScanSourceConfig struct {
	Roots        []string      `toml:"roots"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type WorkflowConfig struct {
	ReindexInterval time.Duration `toml:"reindex_interval"`
	RetryInterval   time.Duration `toml:"retry_interval"`
	PostProcessing  bool          `toml:"post_processing"`
}

// Load reads, parses, and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	// Build ConfigError if any issues
	configErr := &ConfigError{Path: path, Missing: missing}

	// Run validation
	configErr.Errors = cfg.Validate()

	if configErr.HasErrors() {
		return nil, configErr
	}

	return cfg, nil
}

// LoadWithoutValidation reads and parses the config without validation.
// Useful for init commands or debugging.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

// load is the internal loader that returns config, missing vars, and parse error.
func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8484
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/arrflow.db"
	}
	if cfg.Workflow.ReindexInterval == 0 {
		cfg.Workflow.ReindexInterval = 24 * time.Hour
	}
	if cfg.Workflow.RetryInterval == 0 {
		cfg.Workflow.RetryInterval = 10 * time.Minute
	}
	if cfg.Debrid.MovieFilesizeMin == 0 {
		cfg.Debrid.MovieFilesizeMin = 200 // MB
	}
	if cfg.Debrid.EpisodeFilesizeMin == 0 {
		cfg.Debrid.EpisodeFilesizeMin = 40 // MB
	}

	return &cfg, missing, nil
}

// substituteEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error} patterns.
// Returns the substituted content and a list of missing/error variables.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?:(:[-?])([^}]*))?\}`)

func substituteEnvVars(content string) (string, []string) {
	var missing []string

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		varName := parts[1]
		modifier := parts[2]
		modValue := parts[3]

		value, exists := os.LookupEnv(varName)

		switch modifier {
		case ":-": // Default value
			if !exists || value == "" {
				return modValue
			}
			return value
		case ":?": // Required with error
			if !exists || value == "" {
				missing = append(missing, varName+": "+modValue)
				return match
			}
			return value
		default: // Simple substitution
			if exists {
				return value
			}
			missing = append(missing, varName)
			return match
		}
	})

	return result, missing
}
