// SPDX-License-Identifier: MIT

// Package resolver turns raw provider renditions into a ranked, deduplicated
// list of download options, synthesizing virtual merge options when the
// provider only exposes separate video and audio streams.
package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/urlens/urlens/internal/extractor"
)

// Category partitions download options by what the underlying stream carries.
type Category string

const (
	CategoryVideoAudio Category = "video_audio"
	CategoryAudio      Category = "audio"
	CategoryVideoOnly  Category = "video_only"
)

// MergeURLPrefix marks a download URL as a virtual merge token
// ("MERGE:<videoID>+<audioID>") that must be delivered via the merge route.
const MergeURLPrefix = "MERGE:"

// DownloadOption is one deliverable rendition choice.
type DownloadOption struct {
	QualityLabel   string   `json:"quality_label"`
	Extension      string   `json:"extension"`
	FileSizeApprox int64    `json:"file_size_approx,omitempty"`
	DownloadURL    string   `json:"download_url"`
	Type           Category `json:"type"`
	FormatID       string   `json:"format_id"`
}

// IsVirtualMerge reports whether the option requires server-side merging.
func (o DownloadOption) IsVirtualMerge() bool {
	return strings.HasPrefix(o.DownloadURL, MergeURLPrefix)
}

// Config holds the resolution policy. The caps and the audio allow-list are
// deployment policy, not fixed truths.
type Config struct {
	MaxVideoAudio   int
	MaxAudio        int
	MaxVideoOnly    int
	AudioExtensions []string
	MergeContainer  string
}

// DefaultConfig returns the production policy: 8 merged, 3 audio, 3
// video-only entries, common audio containers, mp4 merges.
func DefaultConfig() Config {
	return Config{
		MaxVideoAudio:   8,
		MaxAudio:        3,
		MaxVideoOnly:    3,
		AudioExtensions: []string{"mp3", "m4a", "webm", "opus"},
		MergeContainer:  "mp4",
	}
}

// Resolver is a pure function of its input beyond the configured policy.
type Resolver struct {
	cfg       Config
	audioExts map[string]struct{}
}

// New creates a Resolver with the given policy. Zero caps or an empty
// allow-list fall back to the defaults.
func New(cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.MaxVideoAudio <= 0 {
		cfg.MaxVideoAudio = def.MaxVideoAudio
	}
	if cfg.MaxAudio <= 0 {
		cfg.MaxAudio = def.MaxAudio
	}
	if cfg.MaxVideoOnly <= 0 {
		cfg.MaxVideoOnly = def.MaxVideoOnly
	}
	if len(cfg.AudioExtensions) == 0 {
		cfg.AudioExtensions = def.AudioExtensions
	}
	if cfg.MergeContainer == "" {
		cfg.MergeContainer = def.MergeContainer
	}
	exts := make(map[string]struct{}, len(cfg.AudioExtensions))
	for _, e := range cfg.AudioExtensions {
		exts[e] = struct{}{}
	}
	return &Resolver{cfg: cfg, audioExts: exts}
}

type comboKey struct {
	label string
	ext   string
	cat   Category
}

// Resolve classifies, deduplicates and ranks meta.Formats into the final
// ordered option list. It fails with ErrNoFormats when no rendition exposes
// a usable fetch URL; it never returns an empty list silently.
func (r *Resolver) Resolve(meta *extractor.RawMetadata) ([]DownloadOption, error) {
	usable := make([]extractor.RawRendition, 0, len(meta.Formats))
	for _, f := range meta.Formats {
		if f.URL != "" {
			usable = append(usable, f)
		}
	}
	if len(usable) == 0 {
		return nil, extractor.NewError(extractor.ErrNoFormats, "resolve",
			"no downloadable formats are available for this URL", nil)
	}

	var (
		videoAudio []DownloadOption
		audioOnly  []DownloadOption
		videoOnly  []DownloadOption
		seen       = map[comboKey]struct{}{}

		// Candidates for virtual merging: best audio-only stream by average
		// bitrate, and the first-seen video-only stream per height.
		bestAudio         *extractor.RawRendition
		bestVideoByHeight = map[int]extractor.RawRendition{}
		heights           []int
	)

	add := func(list *[]DownloadOption, opt DownloadOption) {
		key := comboKey{opt.QualityLabel, opt.Extension, opt.Type}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		*list = append(*list, opt)
	}

	for i := range usable {
		f := usable[i]
		switch {
		case f.HasVideo() && f.HasAudio():
			add(&videoAudio, DownloadOption{
				QualityLabel:   fmt.Sprintf("%dp", f.Height),
				Extension:      f.Ext,
				FileSizeApprox: f.Size(),
				DownloadURL:    f.URL,
				Type:           CategoryVideoAudio,
				FormatID:       f.FormatID,
			})

		case f.HasAudio() && !f.HasVideo():
			if bestAudio == nil || f.ABR > bestAudio.ABR {
				bestAudio = &usable[i]
			}
			// Only a declared "none" video codec is a listable audio option;
			// a real codec with unreported height stays a merge candidate but
			// never an Audio Only entry.
			if f.VCodec != "none" {
				continue
			}
			// Unfamiliar audio containers are noise, not options.
			if _, ok := r.audioExts[f.Ext]; !ok {
				continue
			}
			add(&audioOnly, DownloadOption{
				QualityLabel:   "Audio Only",
				Extension:      f.Ext,
				FileSizeApprox: f.Size(),
				DownloadURL:    f.URL,
				Type:           CategoryAudio,
				FormatID:       f.FormatID,
			})

		case f.HasVideo() && !f.HasAudio():
			// First-seen wins per height.
			if _, ok := bestVideoByHeight[f.Height]; !ok {
				bestVideoByHeight[f.Height] = f
				heights = append(heights, f.Height)
			}
		}
	}

	// Virtual merges are synthesized only when the provider offers no
	// pre-merged rendition but both halves exist separately.
	if len(videoAudio) == 0 && bestAudio != nil && len(bestVideoByHeight) > 0 {
		for _, h := range heights {
			vid := bestVideoByHeight[h]
			var size int64
			if vs, as := vid.Size(), bestAudio.Size(); vs > 0 && as > 0 {
				size = vs + as
			}
			selector := vid.FormatID + "+" + bestAudio.FormatID
			add(&videoAudio, DownloadOption{
				QualityLabel:   fmt.Sprintf("%dp", h),
				Extension:      r.cfg.MergeContainer,
				FileSizeApprox: size,
				DownloadURL:    MergeURLPrefix + selector,
				Type:           CategoryVideoAudio,
				FormatID:       selector,
			})
		}
	}

	// The video-only list documents what is individually fetchable without
	// merging, even when merges were synthesized from the same streams.
	for _, h := range heights {
		f := bestVideoByHeight[h]
		add(&videoOnly, DownloadOption{
			QualityLabel:   fmt.Sprintf("%dp (Video Only - No Audio)", h),
			Extension:      f.Ext,
			FileSizeApprox: f.Size(),
			DownloadURL:    f.URL,
			Type:           CategoryVideoOnly,
			FormatID:       f.FormatID,
		})
	}

	sortByHeight(videoAudio)
	sortByHeight(videoOnly)
	sort.SliceStable(audioOnly, func(i, j int) bool {
		return audioOnly[i].FileSizeApprox > audioOnly[j].FileSizeApprox
	})

	options := make([]DownloadOption, 0,
		r.cfg.MaxVideoAudio+r.cfg.MaxAudio+r.cfg.MaxVideoOnly)
	options = append(options, capped(videoAudio, r.cfg.MaxVideoAudio)...)
	options = append(options, capped(audioOnly, r.cfg.MaxAudio)...)
	options = append(options, capped(videoOnly, r.cfg.MaxVideoOnly)...)

	// Last resort: usable renditions exist but none classified anywhere.
	if len(options) == 0 {
		last := usable[len(usable)-1]
		ext := last.Ext
		if ext == "" {
			ext = r.cfg.MergeContainer
		}
		options = append(options, DownloadOption{
			QualityLabel:   "Best Available",
			Extension:      ext,
			FileSizeApprox: last.Size(),
			DownloadURL:    last.URL,
			Type:           CategoryVideoAudio,
			FormatID:       last.FormatID,
		})
	}

	return options, nil
}

// sortByHeight orders video options by descending height parsed from the
// label. Non-numeric labels rank 0 and sort last; parsing never fails hard.
func sortByHeight(opts []DownloadOption) {
	sort.SliceStable(opts, func(i, j int) bool {
		return heightFromLabel(opts[i].QualityLabel) > heightFromLabel(opts[j].QualityLabel)
	})
}

func heightFromLabel(label string) int {
	head, _, found := strings.Cut(label, "p")
	if !found {
		return 0
	}
	h, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return h
}

func capped(opts []DownloadOption, max int) []DownloadOption {
	if len(opts) > max {
		return opts[:max]
	}
	return opts
}
