// SPDX-License-Identifier: MIT

// Package api exposes the URLens HTTP surface: metadata analysis, download
// option resolution and streaming delivery.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	mw "github.com/urlens/urlens/internal/api/middleware"
	"github.com/urlens/urlens/internal/config"
	"github.com/urlens/urlens/internal/extractor"
	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/proxy"
	"github.com/urlens/urlens/internal/resolver"
)

// MetadataProvider is the extraction capability: raw rendition metadata for a
// URL, or a taxonomy error.
type MetadataProvider interface {
	Fetch(ctx context.Context, url string) (*extractor.RawMetadata, error)
}

// Streamer relays a remote URL to the caller.
type Streamer interface {
	Stream(w http.ResponseWriter, r *http.Request, remoteURL string, opts proxy.Options) error
}

// MergeDeliverer merges two renditions of srcURL server-side and streams the
// result.
type MergeDeliverer interface {
	Deliver(ctx context.Context, w http.ResponseWriter, srcURL, formatSelector, filename string) error
}

// Server holds the request-handling dependencies. All of them are stateless;
// one Server serves concurrent requests without shared mutable state.
type Server struct {
	cfg      config.Config
	provider MetadataProvider
	resolver *resolver.Resolver
	streamer Streamer
	merger   MergeDeliverer
	log      zerolog.Logger
}

// New wires the server with explicit dependencies.
func New(cfg config.Config, provider MetadataProvider, res *resolver.Resolver, streamer Streamer, merger MergeDeliverer) *Server {
	return &Server{
		cfg:      cfg,
		provider: provider,
		resolver: res,
		streamer: streamer,
		merger:   merger,
		log:      log.WithComponent("api"),
	}
}

// Handler builds the routed HTTP handler with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := mw.NewRouter(mw.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  s.cfg.MetricsEnabled,
		EnableLogging:  true,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Extraction endpoints fork an external process per call; they get a
		// tighter per-IP budget than the global limiter.
		r.With(mw.ExtractionRateLimit()).Post("/analyze", s.handleAnalyze)
		r.With(mw.ExtractionRateLimit()).Post("/download-info", s.handleDownloadInfo)

		r.Get("/proxy", s.handleProxy)
		r.Get("/proxy-download", s.handleProxyDownload)
		r.Get("/download-merged", s.handleDownloadMerged)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "URLens API",
		"version": s.cfg.Version,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
