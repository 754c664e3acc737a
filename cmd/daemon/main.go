// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urlens/urlens/internal/api"
	"github.com/urlens/urlens/internal/config"
	"github.com/urlens/urlens/internal/extractor"
	urlog "github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/merge"
	"github.com/urlens/urlens/internal/proxy"
	"github.com/urlens/urlens/internal/resolver"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	urlog.Configure(urlog.Config{
		Level:   "info",
		Service: "urlens",
		Version: version,
	})
	logger := urlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	if *configPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", *configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting urlens")

	logger.Info().Msgf("→ Provider: %s (cookies: %v)", cfg.YtdlpPath, cfg.CookiesBrowser != "" || cfg.CookiesFile != "")
	logger.Info().Msgf("→ Timeouts: extract %s, proxy %s, download %s, merge %s",
		cfg.ExtractTimeout, cfg.ProxyTimeout, cfg.DownloadTimeout, cfg.MergeTimeout)
	logger.Info().Msgf("→ Merge: container %s, %d concurrent jobs, temp dir %s",
		cfg.MergeContainer, cfg.MergeJobs, cfg.TempDir)
	logger.Info().Msgf("→ Options policy: %d/%d/%d (video+audio/audio/video-only)",
		cfg.MaxVideoAudio, cfg.MaxAudio, cfg.MaxVideoOnly)

	provider := extractor.NewClient(extractor.Options{
		Path:           cfg.YtdlpPath,
		Timeout:        cfg.ExtractTimeout,
		CookiesBrowser: cfg.CookiesBrowser,
		CookiesFile:    cfg.CookiesFile,
	})
	res := resolver.New(resolver.Config{
		MaxVideoAudio:   cfg.MaxVideoAudio,
		MaxAudio:        cfg.MaxAudio,
		MaxVideoOnly:    cfg.MaxVideoOnly,
		AudioExtensions: cfg.AudioExtensions,
		MergeContainer:  cfg.MergeContainer,
	})
	streamer := proxy.NewStreamer(cfg.ProxyTimeout, cfg.DownloadTimeout)
	merger := merge.NewOrchestrator(merge.NewYtdlpExecutor(cfg.YtdlpPath), merge.Config{
		TempDir:   cfg.TempDir,
		Container: cfg.MergeContainer,
		Timeout:   cfg.MergeTimeout,
		MaxJobs:   cfg.MergeJobs,
	})

	server := api.New(cfg, provider, res, streamer, merger)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
		// No WriteTimeout: merged and proxied downloads stream for minutes;
		// the per-client outbound timeouts bound each transfer instead.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal().
			Err(err).
			Str("event", "server.failed").
			Msg("HTTP server failed")
	case <-ctx.Done():
		logger.Info().
			Str("event", "shutdown.start").
			Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().
			Err(err).
			Str("event", "shutdown.forced").
			Msg("graceful shutdown timed out, closing")
		_ = srv.Close()
	}

	logger.Info().Msg("server exiting")
}
