// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "yt-dlp", cfg.YtdlpPath)
	assert.Equal(t, 30*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 10*time.Minute, cfg.MergeTimeout)
	assert.Equal(t, "mp4", cfg.MergeContainer)
	assert.Equal(t, 8, cfg.MaxVideoAudio)
	assert.Equal(t, 3, cfg.MaxAudio)
	assert.Equal(t, 3, cfg.MaxVideoOnly)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("URLENS_LISTEN", ":9000")
	t.Setenv("URLENS_YTDLP_PATH", "/opt/yt-dlp")
	t.Setenv("URLENS_EXTRACT_TIMEOUT", "45s")
	t.Setenv("URLENS_MERGE_JOBS", "4")
	t.Setenv("URLENS_METRICS_ENABLED", "false")
	t.Setenv("URLENS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/opt/yt-dlp", cfg.YtdlpPath)
	assert.Equal(t, 45*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, 4, cfg.MergeJobs)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "v-test", cfg.Version)
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("URLENS_MERGE_JOBS", "many")
	t.Setenv("URLENS_EXTRACT_TIMEOUT", "soon")

	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)
	assert.Equal(t, Default().MergeJobs, cfg.MergeJobs)
	assert.Equal(t, Default().ExtractTimeout, cfg.ExtractTimeout)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listenAddr: ":7070"
extractTimeout: 1m
mergeJobs: 3
audioExtensions: [m4a, opus]
`), 0o644))

	cfg, err := NewLoader(path, "v-test").Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, time.Minute, cfg.ExtractTimeout)
	assert.Equal(t, 3, cfg.MergeJobs)
	assert.Equal(t, []string{"m4a", "opus"}, cfg.AudioExtensions)
	// Untouched keys keep their defaults.
	assert.Equal(t, "mp4", cfg.MergeContainer)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listenAddr: \":7070\"\n"), 0o644))
	t.Setenv("URLENS_LISTEN", ":6060")

	cfg, err := NewLoader(path, "v-test").Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.ListenAddr)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), "v").Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"empty ytdlp path", func(c *Config) { c.YtdlpPath = "" }},
		{"zero extract timeout", func(c *Config) { c.ExtractTimeout = 0 }},
		{"negative merge timeout", func(c *Config) { c.MergeTimeout = -time.Second }},
		{"empty container", func(c *Config) { c.MergeContainer = "" }},
		{"zero merge jobs", func(c *Config) { c.MergeJobs = 0 }},
		{"zero video audio cap", func(c *Config) { c.MaxVideoAudio = 0 }},
		{"negative audio cap", func(c *Config) { c.MaxAudio = -1 }},
		{"zero rate limit", func(c *Config) { c.RateLimitRPM = 0 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
