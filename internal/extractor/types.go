// SPDX-License-Identifier: MIT

package extractor

import "strings"

// RawRendition is one encoded variant of the source media as reported by the
// extraction provider. Read-only input to the resolver.
type RawRendition struct {
	FormatID       string
	Ext            string
	Height         int     // 0 means absent: audio-only or unknown
	VCodec         string  // "none" sentinel for audio-only renditions
	ACodec         string  // "none" sentinel for video-only renditions
	Filesize       int64   // exact size when the provider knows it
	FilesizeApprox int64   // provider estimate, used when Filesize is absent
	ABR            float64 // average audio bitrate, audio comparison only
	URL            string  // direct fetch URL, possibly short-lived
}

// Size returns the best known byte size, preferring the exact value.
// Zero means unknown.
func (r RawRendition) Size() int64 {
	if r.Filesize > 0 {
		return r.Filesize
	}
	return r.FilesizeApprox
}

// HasVideo reports whether the rendition carries a video stream.
func (r RawRendition) HasVideo() bool {
	return r.Height > 0 && r.VCodec != "" && r.VCodec != "none"
}

// HasAudio reports whether the rendition carries an audio stream.
func (r RawRendition) HasAudio() bool {
	return r.ACodec != "" && r.ACodec != "none"
}

// RawMetadata is the provider's view of one media URL.
type RawMetadata struct {
	Extractor string // provider extractor key, e.g. "Youtube"
	Title     string
	Thumbnail string
	URL       string // original source URL the metadata was resolved from
	Formats   []RawRendition
}

// knownPlatforms collapses provider extractor keys to stable platform names.
var knownPlatforms = []string{"youtube", "instagram", "twitter", "facebook", "tiktok"}

// Platform normalizes the extractor key into a stable lowercase platform
// name. Unmatched keys pass through lowercased.
func (m *RawMetadata) Platform() string {
	key := strings.ToLower(m.Extractor)
	if key == "" {
		return "unknown"
	}
	for _, p := range knownPlatforms {
		if strings.Contains(key, p) {
			return p
		}
	}
	if strings.Contains(key, "x.com") {
		return "twitter"
	}
	return key
}
