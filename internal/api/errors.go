// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/urlens/urlens/internal/extractor"
	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/proxy"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the uniform error body.
func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// statusFor maps the closed error taxonomy onto user-visible status codes.
// Classification happened at the adapter or streaming boundary; this only
// translates.
func statusFor(err error) int {
	var se *proxy.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	switch {
	case errors.Is(err, extractor.ErrUnsupportedURL),
		errors.Is(err, extractor.ErrRestricted),
		errors.Is(err, extractor.ErrAuthRequired),
		errors.Is(err, extractor.ErrExtraction),
		errors.Is(err, extractor.ErrNoFormats):
		return http.StatusBadRequest
	case errors.Is(err, extractor.ErrDRMProtected):
		return http.StatusUnavailableForLegalReasons
	case errors.Is(err, extractor.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, extractor.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err for the caller. Raw provider text never leaves
// the service; only the taxonomy detail string does.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var detail string
	var se *proxy.StatusError
	if errors.As(err, &se) {
		detail = fmt.Sprintf("failed to fetch from source: status %d", se.Code)
	} else {
		detail = extractor.Detail(err)
	}

	logger := log.WithContext(r.Context(), s.log)
	logger.Error().
		Str("event", "request.failed").
		Str("path", r.URL.Path).
		Int("status", status).
		Err(err).
		Msg("request failed")

	writeDetail(w, status, detail)
}
