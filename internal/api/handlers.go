// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/metrics"
	"github.com/urlens/urlens/internal/resolver"
)

// maxBodySize bounds JSON request bodies; the only payload is a URL.
const maxBodySize = 64 << 10

type urlRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	Platform     string `json:"platform"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type downloadInfoResponse struct {
	DownloadOptions []resolver.DownloadOption `json:"download_options"`
}

// decodeURLRequest reads and validates the common {url} body.
func (s *Server) decodeURLRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req urlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	url, err := validateURL(req.URL)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return url, true
}

// handleAnalyze returns lightweight metadata for a URL without resolving
// download options.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	url, ok := s.decodeURLRequest(w, r)
	if !ok {
		return
	}

	logger := log.WithContext(r.Context(), s.log)
	logger.Info().
		Str("event", "analyze.start").
		Str("url", url).
		Msg("analyzing URL")

	start := time.Now()
	meta, err := s.provider.Fetch(r.Context(), url)
	metrics.ObserveExtraction("analyze", time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Platform:     meta.Platform(),
		Title:        meta.Title,
		ThumbnailURL: meta.Thumbnail,
	})
}

// handleDownloadInfo resolves the ranked download option list for a URL.
func (s *Server) handleDownloadInfo(w http.ResponseWriter, r *http.Request) {
	url, ok := s.decodeURLRequest(w, r)
	if !ok {
		return
	}

	logger := log.WithContext(r.Context(), s.log)
	logger.Info().
		Str("event", "download_info.start").
		Str("url", url).
		Msg("resolving download options")

	start := time.Now()
	meta, err := s.provider.Fetch(r.Context(), url)
	metrics.ObserveExtraction("download_info", time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	options, err := s.resolver.Resolve(meta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.Info().
		Str("event", "download_info.resolved").
		Int("options", len(options)).
		Msg("download options resolved")

	writeJSON(w, http.StatusOK, downloadInfoResponse{DownloadOptions: options})
}
