// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"strings"
)

var (
	errEmptyURL   = errors.New("url must not be empty")
	errInvalidURL = errors.New("url must start with http:// or https://")
)

// validateURL enforces the request contract before any provider call is made.
func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptyURL
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", errInvalidURL
	}
	return raw, nil
}
