// SPDX-License-Identifier: MIT

// Package merge delivers server-side merged renditions: it invokes the remux
// executor in an isolated temporary directory, streams the result and cleans
// up on every path.
package merge

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/urlens/urlens/internal/extractor"
	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/metrics"
	"github.com/urlens/urlens/internal/proxy"
)

const chunkSize = 8192

// Config bounds merge deliveries.
type Config struct {
	TempDir   string        // root for per-job working directories
	Container string        // merge output container, e.g. "mp4"
	Timeout   time.Duration // per-job executor deadline
	MaxJobs   int           // concurrent executor processes
}

// Orchestrator runs merge jobs. The executor is an external CPU/IO-bound
// process, so concurrency is bounded by a semaphore rather than left to the
// request pool.
type Orchestrator struct {
	exec      Executor
	sem       *semaphore.Weighted
	tempDir   string
	container string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewOrchestrator creates an Orchestrator around exec.
func NewOrchestrator(exec Executor, cfg Config) *Orchestrator {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Container == "" {
		cfg.Container = "mp4"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxJobs < 1 {
		cfg.MaxJobs = 1
	}
	return &Orchestrator{
		exec:      exec,
		sem:       semaphore.NewWeighted(int64(cfg.MaxJobs)),
		tempDir:   cfg.TempDir,
		container: cfg.Container,
		timeout:   cfg.Timeout,
		log:       log.WithComponent("merge"),
	}
}

// Deliver merges the selected renditions of srcURL and streams the result as
// an attachment. An error return means nothing was written yet; failures
// after streaming began are logged only. The working directory and its
// contents are removed on success, failure and cancellation alike.
func (o *Orchestrator) Deliver(ctx context.Context, w http.ResponseWriter, srcURL, formatSelector, filename string) error {
	logger := log.WithContext(ctx, o.log)
	start := time.Now()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return extractor.NewError(extractor.ErrMergeFailed, "merge",
			"the merge request was cancelled before it could start", err)
	}
	defer o.sem.Release(1)
	metrics.MergeActive.Inc()
	defer metrics.MergeActive.Dec()

	dir, err := os.MkdirTemp(o.tempDir, "urlens-merge-")
	if err != nil {
		err = extractor.NewError(extractor.ErrMergeFailed, "merge",
			"could not prepare a working directory", err)
		metrics.ObserveMerge(time.Since(start), err)
		return err
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Error().
				Str("event", "merge.cleanup_failed").
				Str("dir", dir).
				Err(rmErr).
				Msg("failed to remove merge working directory")
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	path, err := o.exec.Merge(execCtx, srcURL, formatSelector, dir, o.container)
	if err != nil {
		logger.Error().
			Str("event", "merge.exec_failed").
			Str("selector", formatSelector).
			Err(err).
			Msg("remux executor failed")
		err = extractor.NewError(extractor.ErrMergeFailed, "merge",
			"failed to merge the selected video and audio streams", err)
		metrics.ObserveMerge(time.Since(start), err)
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		err = extractor.NewError(extractor.ErrMergeFailed, "merge",
			"the merged file could not be read", err)
		metrics.ObserveMerge(time.Since(start), err)
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		err = extractor.NewError(extractor.ErrMergeFailed, "merge",
			"the merged file could not be read", err)
		metrics.ObserveMerge(time.Since(start), err)
		return err
	}

	contentType := mime.TypeByExtension("." + o.container)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", proxy.SanitizeFilename(filename)))

	n, copyErr := io.CopyBuffer(w, f, make([]byte, chunkSize))
	metrics.ObserveMerge(time.Since(start), copyErr)
	if copyErr != nil {
		// Headers already sent; nothing to re-report.
		logger.Warn().
			Str("event", "merge.stream_interrupted").
			Int64("bytes", n).
			Err(copyErr).
			Msg("merged delivery ended early")
		return nil
	}
	logger.Info().
		Str("event", "merge.delivered").
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("merged file delivered")
	return nil
}
