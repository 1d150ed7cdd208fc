// Package dedup decides when signals describe the same underlying event.
//
// Exact duplicates are caught at admission by the (company, kind, dedup key)
// triple; this package builds those keys. Semantic duplicates, such as one
// deal filed from both sides, are found afterwards by Plan and removed by
// Service.
package dedup

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// keySeparator joins key parts. It is not "#" so that a URL fragment is never
// mistaken for a category tag.
const keySeparator = "|"

// Key joins the non-empty parts of a dedup key.
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, keySeparator)
}

// NormalizeKey rewrites every URL part of a collector's dedup key in
// canonical form, so two spellings of one source page share a key. Parts
// that are not absolute URLs are only trimmed.
func NormalizeKey(raw string) string {
	parts := strings.Split(raw, keySeparator)
	for i, part := range parts {
		parts[i] = CanonicalURL(part)
	}
	return Key(parts...)
}

// WeekBucket returns the ISO week of t, e.g. "2026-W03", so recurring events
// from one source re-signal at most weekly.
func WeekBucket(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// CanonicalURL lower-cases scheme and host and drops fragments, default
// ports and trailing slashes so one page always yields one key.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	parsed.Host = host
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil
	if parsed.Path != "/" {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}
	parsed.RawPath = ""
	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}
	return parsed.String()
}
