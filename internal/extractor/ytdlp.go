// SPDX-License-Identifier: MIT

// Package extractor wraps the yt-dlp extraction provider behind a small
// capability interface and a closed error taxonomy.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/urlens/urlens/internal/log"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// runner abstracts the yt-dlp process so tests can substitute canned output.
type runner interface {
	run(ctx context.Context, args ...string) ([]byte, error)
}

type execRunner struct {
	bin string
}

func (r execRunner) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("yt-dlp: %w", err)
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, detail)
	}
	return stdout.Bytes(), nil
}

// Options configures the yt-dlp client.
type Options struct {
	Path           string        // yt-dlp binary, defaults to "yt-dlp"
	Timeout        time.Duration // per-fetch deadline, defaults to 30s
	CookiesBrowser string        // browser profile for the auth-challenge retry
	CookiesFile    string        // cookie file for the auth-challenge retry
}

// Client resolves media URLs to raw rendition metadata via yt-dlp.
// It is stateless and safe for concurrent use.
type Client struct {
	run            runner
	timeout        time.Duration
	cookiesBrowser string
	cookiesFile    string
	log            zerolog.Logger
}

// NewClient creates a yt-dlp backed metadata client.
func NewClient(opts Options) *Client {
	path := opts.Path
	if path == "" {
		path = "yt-dlp"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		run:            execRunner{bin: path},
		timeout:        timeout,
		cookiesBrowser: opts.CookiesBrowser,
		cookiesFile:    opts.CookiesFile,
		log:            log.WithComponent("extractor"),
	}
}

// ytdlpInfo mirrors the subset of `yt-dlp -J` output this service reads.
type ytdlpInfo struct {
	Title        string        `json:"title"`
	Thumbnail    string        `json:"thumbnail"`
	WebpageURL   string        `json:"webpage_url"`
	ExtractorKey string        `json:"extractor_key"`
	Formats      []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	ABR            float64 `json:"abr"`
	URL            string  `json:"url"`
}

// Fetch resolves url to raw metadata. Provider failures are classified into
// the taxonomy here; on a bot/sign-in challenge it performs exactly one retry
// with configured browser cookies before surfacing ErrAuthRequired.
func (c *Client) Fetch(ctx context.Context, url string) (*RawMetadata, error) {
	logger := log.WithContext(ctx, c.log)
	logger.Info().
		Str("event", "extract.start").
		Str("url", url).
		Msg("fetching provider metadata")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.run.run(ctx, c.args(url, false)...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewError(ErrTimeout, "fetch", "the extraction provider timed out", err)
		}
		sentinel := Classify(err.Error())
		if sentinel != ErrAuthRequired {
			logger.Error().
				Str("event", "extract.failed").
				Str("kind", sentinel.Error()).
				Err(err).
				Msg("provider error classified")
			return nil, NewError(sentinel, "fetch", detailFor(sentinel), err)
		}

		// Bot/sign-in challenge: at most one retry with local browser
		// credentials, never a backoff loop.
		if !c.hasCookies() {
			logger.Warn().
				Str("event", "extract.auth_challenge").
				Msg("provider requires authentication and no cookies are configured")
			return nil, NewError(ErrAuthRequired, "fetch", detailFor(ErrAuthRequired), err)
		}
		logger.Warn().
			Str("event", "extract.retry").
			Str("url", url).
			Msg("bot challenge detected, retrying with browser cookies")
		out, err = c.run.run(ctx, c.args(url, true)...)
		if err != nil {
			logger.Error().
				Str("event", "extract.retry_failed").
				Err(err).
				Msg("cookie retry failed")
			return nil, NewError(ErrAuthRequired, "fetch", detailFor(ErrAuthRequired), err)
		}
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, NewError(ErrExtraction, "fetch", "the provider returned malformed metadata", err)
	}

	meta := &RawMetadata{
		Extractor: info.ExtractorKey,
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		URL:       info.WebpageURL,
		Formats:   make([]RawRendition, 0, len(info.Formats)),
	}
	if meta.Title == "" {
		meta.Title = "Unknown Title"
	}
	if meta.URL == "" {
		meta.URL = url
	}
	for _, f := range info.Formats {
		meta.Formats = append(meta.Formats, RawRendition{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			Height:         f.Height,
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			Filesize:       int64(f.Filesize),
			FilesizeApprox: int64(f.FilesizeApprox),
			ABR:            f.ABR,
			URL:            f.URL,
		})
	}
	return meta, nil
}

func (c *Client) hasCookies() bool {
	return c.cookiesBrowser != "" || c.cookiesFile != ""
}

func (c *Client) args(url string, withCookies bool) []string {
	args := []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", strconv.Itoa(int(c.timeout.Seconds())),
		"--user-agent", defaultUserAgent,
		"--referer", "https://www.youtube.com/",
		"--extractor-args", "youtube:player_client=android,web",
	}
	if withCookies {
		if c.cookiesFile != "" {
			args = append(args, "--cookies", c.cookiesFile)
		} else {
			args = append(args, "--cookies-from-browser", c.cookiesBrowser)
		}
	}
	return append(args, url)
}

// detailFor maps a sentinel to the caller-safe detail string. Raw provider
// text never reaches the caller.
func detailFor(sentinel error) string {
	switch sentinel {
	case ErrUnsupportedURL:
		return "this URL is not supported"
	case ErrRestricted:
		return "the content is private, unavailable or geographically restricted"
	case ErrAuthRequired:
		return "the provider requires authentication for this content"
	case ErrDRMProtected:
		return "this content is protected by DRM and cannot be downloaded"
	case ErrNetwork:
		return "a network error occurred while contacting the provider"
	case ErrTimeout:
		return "the extraction provider timed out"
	default:
		return "failed to extract media information"
	}
}
