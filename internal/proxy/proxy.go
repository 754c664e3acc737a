// SPDX-License-Identifier: MIT

// Package proxy relays remote media streams to callers without buffering
// whole bodies in memory.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/urlens/urlens/internal/extractor"
	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/metrics"
)

// chunkSize is the relay buffer size. Bodies are streamed, never slurped.
const chunkSize = 8192

// Mode selects the timeout class: the generic proxy stays short, the file
// download proxy tolerates large transfers.
type Mode string

const (
	ModeGeneric  Mode = "generic"
	ModeDownload Mode = "download"
)

// Options controls a single relay.
type Options struct {
	Mode     Mode
	Filename string // attachment filename, download mode only
}

// StatusError reports a non-200 remote response, surfaced before any byte is
// relayed.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proxy: remote returned status %d", e.Code)
}

// Streamer relays remote URLs to callers. Safe for concurrent use.
type Streamer struct {
	generic  *http.Client
	download *http.Client
	log      zerolog.Logger
}

// NewStreamer creates a Streamer with the two timeout classes. Both clients
// follow redirects; the timeout bounds the entire transfer.
func NewStreamer(genericTimeout, downloadTimeout time.Duration) *Streamer {
	if genericTimeout <= 0 {
		genericTimeout = 30 * time.Second
	}
	if downloadTimeout <= 0 {
		downloadTimeout = 5 * time.Minute
	}
	return &Streamer{
		generic:  &http.Client{Timeout: genericTimeout},
		download: &http.Client{Timeout: downloadTimeout},
		log:      log.WithComponent("proxy"),
	}
}

// Stream relays remoteURL to the caller. An error return means nothing was
// written yet and the caller may still send an error response; failures after
// streaming began are logged only. The outbound response body is closed on
// every path.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, remoteURL string, opts Options) error {
	mode := opts.Mode
	if mode == "" {
		mode = ModeGeneric
	}
	client := s.generic
	if mode == ModeDownload {
		client = s.download
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, remoteURL, nil)
	if err != nil {
		err = extractor.NewError(extractor.ErrNetwork, "proxy", "the remote URL is invalid", err)
		metrics.IncProxyRequest(string(mode), err)
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		err = classifyTransport(err)
		metrics.IncProxyRequest(string(mode), err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = &StatusError{Code: resp.StatusCode}
		metrics.IncProxyRequest(string(mode), err)
		return err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if mode == ModeDownload {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", SanitizeFilename(opts.Filename)))
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			w.Header().Set("Content-Length", cl)
		}
	}

	n, copyErr := io.CopyBuffer(w, resp.Body, make([]byte, chunkSize))
	metrics.AddProxyBytes(string(mode), n)
	metrics.IncProxyRequest(string(mode), copyErr)
	if copyErr != nil {
		// Headers are gone; this cannot become a different status code.
		logger := log.WithContext(r.Context(), s.log)
		logger.Warn().
			Str("event", "proxy.stream_interrupted").
			Str("mode", string(mode)).
			Int64("bytes", n).
			Err(copyErr).
			Msg("relay ended before remote body was exhausted")
	}
	return nil
}

// classifyTransport maps outbound transport failures onto the taxonomy.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return extractor.NewError(extractor.ErrTimeout, "proxy",
			"the remote host timed out", err)
	}
	return extractor.NewError(extractor.ErrNetwork, "proxy",
		"failed to reach the remote host", err)
}

// SanitizeFilename strips characters that would break the disposition header
// or smuggle path segments.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '-'
		case '"':
			return '\''
		case '\r', '\n':
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	return name
}
