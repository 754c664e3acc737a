// SPDX-License-Identifier: MIT

// Package config loads URLens configuration with precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved application configuration.
type Config struct {
	// Server
	ListenAddr     string   `yaml:"listenAddr"`
	LogLevel       string   `yaml:"logLevel"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	MetricsEnabled bool     `yaml:"metricsEnabled"`
	RateLimitRPM   int      `yaml:"rateLimitRPM"`

	// Extraction provider (yt-dlp)
	YtdlpPath      string        `yaml:"ytdlpPath"`
	ExtractTimeout time.Duration `yaml:"extractTimeout"`
	CookiesBrowser string        `yaml:"cookiesBrowser"`
	CookiesFile    string        `yaml:"cookiesFile"`

	// Streaming proxy
	ProxyTimeout    time.Duration `yaml:"proxyTimeout"`
	DownloadTimeout time.Duration `yaml:"downloadTimeout"`

	// Merge delivery
	MergeTimeout   time.Duration `yaml:"mergeTimeout"`
	MergeContainer string        `yaml:"mergeContainer"`
	MergeJobs      int           `yaml:"mergeJobs"`
	TempDir        string        `yaml:"tempDir"`

	// Format resolution policy
	MaxVideoAudio   int      `yaml:"maxVideoAudio"`
	MaxAudio        int      `yaml:"maxAudio"`
	MaxVideoOnly    int      `yaml:"maxVideoOnly"`
	AudioExtensions []string `yaml:"audioExtensions"`

	// Version is injected by the build, never from file or env.
	Version string `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		ListenAddr:      ":8000",
		LogLevel:        "info",
		AllowedOrigins:  nil,
		MetricsEnabled:  true,
		RateLimitRPM:    60,
		YtdlpPath:       "yt-dlp",
		ExtractTimeout:  30 * time.Second,
		ProxyTimeout:    30 * time.Second,
		DownloadTimeout: 5 * time.Minute,
		MergeTimeout:    10 * time.Minute,
		MergeContainer:  "mp4",
		MergeJobs:       2,
		TempDir:         os.TempDir(),
		MaxVideoAudio:   8,
		MaxAudio:        3,
		MaxVideoOnly:    3,
		AudioExtensions: []string{"mp3", "m4a", "webm", "opus"},
	}
}

// Loader resolves a Config from defaults, an optional YAML file and the
// environment, in ascending precedence.
type Loader struct {
	path    string
	version string
}

// NewLoader creates a Loader. path may be empty (no config file).
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load resolves the configuration and validates it.
func (l *Loader) Load() (Config, error) {
	cfg := Default()
	cfg.Version = l.version

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", l.path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg fields from URLENS_* environment variables.
func applyEnv(cfg *Config) {
	cfg.ListenAddr = ParseString("URLENS_LISTEN", cfg.ListenAddr)
	cfg.LogLevel = ParseString("URLENS_LOG_LEVEL", cfg.LogLevel)
	cfg.AllowedOrigins = ParseStringSlice("URLENS_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.MetricsEnabled = ParseBool("URLENS_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.RateLimitRPM = ParseInt("URLENS_RATE_LIMIT_RPM", cfg.RateLimitRPM)

	cfg.YtdlpPath = ParseString("URLENS_YTDLP_PATH", cfg.YtdlpPath)
	cfg.ExtractTimeout = ParseDuration("URLENS_EXTRACT_TIMEOUT", cfg.ExtractTimeout)
	cfg.CookiesBrowser = ParseString("URLENS_COOKIES_BROWSER", cfg.CookiesBrowser)
	cfg.CookiesFile = ParseString("URLENS_COOKIES_FILE", cfg.CookiesFile)

	cfg.ProxyTimeout = ParseDuration("URLENS_PROXY_TIMEOUT", cfg.ProxyTimeout)
	cfg.DownloadTimeout = ParseDuration("URLENS_DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)

	cfg.MergeTimeout = ParseDuration("URLENS_MERGE_TIMEOUT", cfg.MergeTimeout)
	cfg.MergeContainer = ParseString("URLENS_MERGE_CONTAINER", cfg.MergeContainer)
	cfg.MergeJobs = ParseInt("URLENS_MERGE_JOBS", cfg.MergeJobs)
	cfg.TempDir = ParseString("URLENS_TEMP_DIR", cfg.TempDir)

	cfg.MaxVideoAudio = ParseInt("URLENS_MAX_VIDEO_AUDIO", cfg.MaxVideoAudio)
	cfg.MaxAudio = ParseInt("URLENS_MAX_AUDIO", cfg.MaxAudio)
	cfg.MaxVideoOnly = ParseInt("URLENS_MAX_VIDEO_ONLY", cfg.MaxVideoOnly)
	cfg.AudioExtensions = ParseStringSlice("URLENS_AUDIO_EXTENSIONS", cfg.AudioExtensions)
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.YtdlpPath == "" {
		return fmt.Errorf("config: yt-dlp path must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"extract timeout":  c.ExtractTimeout,
		"proxy timeout":    c.ProxyTimeout,
		"download timeout": c.DownloadTimeout,
		"merge timeout":    c.MergeTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	if c.MergeContainer == "" {
		return fmt.Errorf("config: merge container must not be empty")
	}
	if c.MergeJobs < 1 {
		return fmt.Errorf("config: merge jobs must be at least 1")
	}
	if c.MaxVideoAudio < 1 || c.MaxAudio < 0 || c.MaxVideoOnly < 0 {
		return fmt.Errorf("config: category caps out of range")
	}
	if c.RateLimitRPM < 1 {
		return fmt.Errorf("config: rate limit must be at least 1 request per minute")
	}
	return nil
}
