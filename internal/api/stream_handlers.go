// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strings"

	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/proxy"
	"github.com/urlens/urlens/internal/resolver"
)

// handleProxy relays arbitrary remote content (thumbnails, images) with the
// short timeout class.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	url, err := validateURL(r.URL.Query().Get("url"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.streamer.Stream(w, r, url, proxy.Options{Mode: proxy.ModeGeneric}); err != nil {
		s.writeError(w, r, err)
	}
}

// handleProxyDownload relays a direct rendition URL as an attachment with the
// long timeout class. Virtual merge tokens have no direct URL and are
// rejected toward the merge route.
func (s *Server) handleProxyDownload(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if strings.HasPrefix(rawURL, resolver.MergeURLPrefix) {
		writeDetail(w, http.StatusBadRequest,
			"this option requires server-side merging; use /api/v1/download-merged with the original URL and format_id")
		return
	}
	url, err := validateURL(rawURL)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	filename := r.URL.Query().Get("filename")

	logger := log.WithContext(r.Context(), s.log)
	logger.Info().
		Str("event", "proxy_download.start").
		Str("filename", filename).
		Msg("proxying download")

	opts := proxy.Options{Mode: proxy.ModeDownload, Filename: filename}
	if err := s.streamer.Stream(w, r, url, opts); err != nil {
		s.writeError(w, r, err)
	}
}

// handleDownloadMerged delivers a server-side merged rendition. The remux
// executor re-resolves streams by format identifier against the original
// source URL, so expired direct URLs are irrelevant here.
func (s *Server) handleDownloadMerged(w http.ResponseWriter, r *http.Request) {
	srcURL, err := validateURL(r.URL.Query().Get("original_url"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	selector := strings.TrimPrefix(r.URL.Query().Get("format_id"), resolver.MergeURLPrefix)
	if selector == "" {
		writeDetail(w, http.StatusBadRequest, "format_id must not be empty")
		return
	}
	filename := r.URL.Query().Get("filename")

	logger := log.WithContext(r.Context(), s.log)
	logger.Info().
		Str("event", "download_merged.start").
		Str("format_id", selector).
		Msg("delivering merged download")

	if err := s.merger.Deliver(r.Context(), w, srcURL, selector, filename); err != nil {
		s.writeError(w, r, err)
	}
}
