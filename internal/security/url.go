// Package security provides shared URL validation for links that end up in
// rendered pattern documents.
package security

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateLinkURL checks a link authored inside pattern content.
// Relative links, fragments, http(s) and mailto are allowed; anything that
// could execute in the reader's browser (javascript:, data:, vbscript:) is not.
func ValidateLinkURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return fmt.Errorf("empty URL")
	}

	// Browsers ignore control characters and whitespace inside schemes,
	// so "java\tscript:" must be treated as "javascript:".
	cleaned := strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, trimmed)

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "":
		return nil
	case "http", "https":
		if parsed.Host == "" {
			return fmt.Errorf("URL must have a host")
		}
		return nil
	case "mailto":
		return nil
	default:
		return fmt.Errorf("URL scheme %q is not allowed in pattern content", parsed.Scheme)
	}
}

// ValidateSiteURL checks the configured live site address that exported
// documents link back to.
func ValidateSiteURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
