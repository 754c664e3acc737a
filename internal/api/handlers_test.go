// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urlens/urlens/internal/config"
	"github.com/urlens/urlens/internal/extractor"
	"github.com/urlens/urlens/internal/proxy"
	"github.com/urlens/urlens/internal/resolver"
)

type stubProvider struct {
	meta *extractor.RawMetadata
	err  error
}

func (s *stubProvider) Fetch(context.Context, string) (*extractor.RawMetadata, error) {
	return s.meta, s.err
}

type stubStreamer struct {
	err     error
	lastURL string
	lastOpt proxy.Options
}

func (s *stubStreamer) Stream(w http.ResponseWriter, _ *http.Request, remoteURL string, opts proxy.Options) error {
	s.lastURL = remoteURL
	s.lastOpt = opts
	if s.err != nil {
		return s.err
	}
	_, _ = w.Write([]byte("streamed"))
	return nil
}

type stubMerger struct {
	err      error
	lastURL  string
	lastSel  string
	lastName string
}

func (s *stubMerger) Deliver(_ context.Context, w http.ResponseWriter, srcURL, formatSelector, filename string) error {
	s.lastURL = srcURL
	s.lastSel = formatSelector
	s.lastName = filename
	if s.err != nil {
		return s.err
	}
	_, _ = w.Write([]byte("merged"))
	return nil
}

type testDeps struct {
	provider *stubProvider
	streamer *stubStreamer
	merger   *stubMerger
	handler  http.Handler
}

func newTestHandler(t *testing.T) *testDeps {
	t.Helper()
	cfg := config.Default()
	cfg.MetricsEnabled = false
	cfg.Version = "test"

	d := &testDeps{
		provider: &stubProvider{},
		streamer: &stubStreamer{},
		merger:   &stubMerger{},
	}
	srv := New(cfg, d.provider, resolver.New(resolver.Config{}), d.streamer, d.merger)
	d.handler = srv.Handler()
	return d
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	rec := get(t, d.handler, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "URLens API", body["name"])
	assert.Equal(t, "test", body["version"])

	rec = get(t, d.handler, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)
	d.provider.meta = &extractor.RawMetadata{
		Extractor: "Youtube",
		Title:     "Test Clip",
		Thumbnail: "https://i.example.com/t.jpg",
	}

	rec := postJSON(t, d.handler, "/api/v1/analyze", `{"url":"https://youtu.be/abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "youtube", body["platform"])
	assert.Equal(t, "Test Clip", body["title"])
	assert.Equal(t, "https://i.example.com/t.jpg", body["thumbnail_url"])
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"empty url", `{"url":"  "}`},
		{"non-http scheme", `{"url":"ftp://example.com/v"}`},
		{"missing scheme", `{"url":"example.com/v"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := postJSON(t, d.handler, "/api/v1/analyze", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["detail"])
		})
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		sentinel error
		want     int
	}{
		{"restricted", extractor.ErrRestricted, http.StatusBadRequest},
		{"unsupported", extractor.ErrUnsupportedURL, http.StatusBadRequest},
		{"auth required", extractor.ErrAuthRequired, http.StatusBadRequest},
		{"drm", extractor.ErrDRMProtected, http.StatusUnavailableForLegalReasons},
		{"network", extractor.ErrNetwork, http.StatusServiceUnavailable},
		{"timeout", extractor.ErrTimeout, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := newTestHandler(t)
			d.provider.err = extractor.NewError(tc.sentinel, "fetch", "detail for "+tc.name, nil)

			rec := postJSON(t, d.handler, "/api/v1/analyze", `{"url":"https://youtu.be/abc"}`)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "detail for "+tc.name, decodeBody(t, rec)["detail"])
		})
	}
}

func TestDownloadInfo(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)
	d.provider.meta = &extractor.RawMetadata{
		Extractor: "Youtube",
		Title:     "Test Clip",
		Formats: []extractor.RawRendition{
			{FormatID: "18", Ext: "mp4", Height: 360, VCodec: "avc1", ACodec: "mp4a",
				Filesize: 1000, URL: "https://cdn/18"},
		},
	}

	rec := postJSON(t, d.handler, "/api/v1/download-info", `{"url":"https://youtu.be/abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		DownloadOptions []resolver.DownloadOption `json:"download_options"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.DownloadOptions, 1)
	assert.Equal(t, "360p", body.DownloadOptions[0].QualityLabel)
	assert.Equal(t, resolver.CategoryVideoAudio, body.DownloadOptions[0].Type)
}

func TestDownloadInfoNoFormats(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)
	d.provider.meta = &extractor.RawMetadata{Extractor: "Youtube", Title: "Test Clip"}

	rec := postJSON(t, d.handler, "/api/v1/download-info", `{"url":"https://youtu.be/abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxy(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	rec := get(t, d.handler, "/api/v1/proxy?url="+url.QueryEscape("https://cdn.example.com/t.jpg"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "streamed", rec.Body.String())
	assert.Equal(t, "https://cdn.example.com/t.jpg", d.streamer.lastURL)
	assert.Equal(t, proxy.ModeGeneric, d.streamer.lastOpt.Mode)
}

func TestProxyRemoteFailure(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)
	d.streamer.err = &proxy.StatusError{Code: http.StatusNotFound}

	rec := get(t, d.handler, "/api/v1/proxy?url="+url.QueryEscape("https://cdn.example.com/t.jpg"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "failed to fetch from source: status 404", decodeBody(t, rec)["detail"])
}

func TestProxyDownload(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	q := url.Values{}
	q.Set("url", "https://cdn.example.com/video.mp4")
	q.Set("filename", "clip.mp4")
	rec := get(t, d.handler, "/api/v1/proxy-download?"+q.Encode())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, proxy.ModeDownload, d.streamer.lastOpt.Mode)
	assert.Equal(t, "clip.mp4", d.streamer.lastOpt.Filename)
}

func TestProxyDownloadRejectsMergeToken(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	q := url.Values{}
	q.Set("url", "MERGE:137+140")
	rec := get(t, d.handler, "/api/v1/proxy-download?"+q.Encode())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "download-merged")
}

func TestDownloadMerged(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	q := url.Values{}
	q.Set("original_url", "https://youtu.be/abc")
	q.Set("format_id", "MERGE:137+140")
	q.Set("filename", "clip.mp4")
	rec := get(t, d.handler, "/api/v1/download-merged?"+q.Encode())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "merged", rec.Body.String())
	assert.Equal(t, "https://youtu.be/abc", d.merger.lastURL)
	assert.Equal(t, "137+140", d.merger.lastSel, "merge prefix must be stripped from the selector")
	assert.Equal(t, "clip.mp4", d.merger.lastName)
}

func TestDownloadMergedAcceptsBareSelector(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	q := url.Values{}
	q.Set("original_url", "https://youtu.be/abc")
	q.Set("format_id", "137+140")
	rec := get(t, d.handler, "/api/v1/download-merged?"+q.Encode())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "137+140", d.merger.lastSel)
}

func TestDownloadMergedValidation(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)

	q := url.Values{}
	q.Set("original_url", "https://youtu.be/abc")
	rec := get(t, d.handler, "/api/v1/download-merged?"+q.Encode())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	q = url.Values{}
	q.Set("format_id", "137+140")
	rec = get(t, d.handler, "/api/v1/download-merged?"+q.Encode())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadMergedFailure(t *testing.T) {
	t.Parallel()
	d := newTestHandler(t)
	d.merger.err = extractor.NewError(extractor.ErrMergeFailed, "merge",
		"failed to merge the selected video and audio streams", nil)

	q := url.Values{}
	q.Set("original_url", "https://youtu.be/abc")
	q.Set("format_id", "137+140")
	rec := get(t, d.handler, "/api/v1/download-merged?"+q.Encode())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{extractor.NewError(extractor.ErrNoFormats, "resolve", "", nil), http.StatusBadRequest},
		{extractor.NewError(extractor.ErrExtraction, "fetch", "", nil), http.StatusBadRequest},
		{extractor.NewError(extractor.ErrDRMProtected, "fetch", "", nil), http.StatusUnavailableForLegalReasons},
		{extractor.NewError(extractor.ErrMergeFailed, "merge", "", nil), http.StatusInternalServerError},
		{extractor.NewError(extractor.ErrNetwork, "proxy", "", nil), http.StatusServiceUnavailable},
		{extractor.NewError(extractor.ErrTimeout, "fetch", "", nil), http.StatusGatewayTimeout},
		{&proxy.StatusError{Code: 403}, 403},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "error %v", tc.err)
	}
}
