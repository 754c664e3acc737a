// SPDX-License-Identifier: MIT

package merge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/urlens/urlens/internal/log"
	"github.com/urlens/urlens/internal/procgroup"
)

// outputStem is the fixed basename handed to the executor; it appends the
// container extension itself.
const outputStem = "download"

// Executor combines a separate video and audio rendition of srcURL, selected
// by a provider format expression ("<videoID>+<audioID>"), into a single file
// under outDir. It returns the definitive output path.
type Executor interface {
	Merge(ctx context.Context, srcURL, formatSelector, outDir, container string) (string, error)
}

// YtdlpExecutor runs yt-dlp as the remux executor. The provider re-resolves
// both streams by format identifier against the original source URL, so
// expired direct fetch URLs do not matter here.
type YtdlpExecutor struct {
	bin string
	log zerolog.Logger
}

// NewYtdlpExecutor creates an executor using the given yt-dlp binary.
func NewYtdlpExecutor(bin string) *YtdlpExecutor {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtdlpExecutor{bin: bin, log: log.WithComponent("merge-executor")}
}

func (e *YtdlpExecutor) Merge(ctx context.Context, srcURL, formatSelector, outDir, container string) (string, error) {
	outTpl := filepath.Join(outDir, outputStem+".%(ext)s")
	cmd := exec.CommandContext(ctx, e.bin,
		"-f", formatSelector,
		"--no-playlist",
		"-q", "--no-warnings", "--no-progress",
		"--merge-output-format", container,
		"-o", outTpl,
		srcURL,
	)
	// yt-dlp forks ffmpeg; reap the whole group on cancellation.
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return procgroup.KillGroup(cmd.Process.Pid, 3*time.Second)
	}
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Info().
		Str("event", "merge.exec").
		Str("selector", formatSelector).
		Str("container", container).
		Msg("running remux executor")

	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return "", fmt.Errorf("remux executor: %w", err)
	}
	return locateOutput(outDir)
}

// locateOutput finds the single produced file. The executor may have appended
// an extension of its own choosing, so the directory is scanned; anything but
// exactly one candidate is an error rather than an arbitrary pick.
func locateOutput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan merge output: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), outputStem+".") {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, e.Name()))
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("remux executor produced no output file in %s", dir)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("remux executor produced %d candidate files in %s", len(candidates), dir)
	}
}
