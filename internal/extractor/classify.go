// SPDX-License-Identifier: MIT

package extractor

import "strings"

// The provider only exposes failures as text, so classification is substring
// matching over an ordered rule table. This table is the single point of
// fragility for provider error mapping; nothing downstream inspects provider
// text again.

type classifyRule struct {
	substrings []string
	sentinel   error
}

var classifyRules = []classifyRule{
	{[]string{"unsupported url", "no suitable extractor"}, ErrUnsupportedURL},
	{[]string{"drm"}, ErrDRMProtected},
	{[]string{"private", "not available", "unavailable"}, ErrRestricted},
	{[]string{"geo", "restricted"}, ErrRestricted},
	{[]string{"sign in", "bot", "cookies"}, ErrAuthRequired},
	{[]string{"network", "connection", "timed out", "timeout"}, ErrNetwork},
}

// Classify maps raw provider failure text to a taxonomy sentinel.
// Anything unmatched is a generic extraction failure.
func Classify(msg string) error {
	s := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, sub := range rule.substrings {
			if strings.Contains(s, sub) {
				return rule.sentinel
			}
		}
	}
	return ErrExtraction
}
