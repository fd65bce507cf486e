// Package cors implements origin pattern matching and per-project CORS policy
// resolution. Patterns are literal origins or one of two wildcard forms:
// "scheme://host:*" matches any port on an exact scheme+host, and
// "scheme://*.domain" matches any subdomain of domain under the same scheme.
// The scheme always matches exactly; http never satisfies an https pattern.
package cors

import "strings"

// Matches reports whether an origin satisfies a single pattern.
func Matches(pattern, origin string) bool {
	if pattern == "" || origin == "" {
		return false
	}

	// Allow-all entry. The decision layer still echoes the exact request
	// origin; a literal "*" never reaches a response header.
	if pattern == "*" {
		return true
	}

	if pattern == origin {
		return true
	}

	// Port wildcard: scheme://host:*
	if strings.HasSuffix(pattern, ":*") {
		base := strings.TrimSuffix(pattern, ":*")
		if !strings.Contains(base, "://") {
			return false
		}
		// The origin may omit the port entirely (default port for the scheme).
		if origin == base {
			return true
		}
		return strings.HasPrefix(origin, base+":")
	}

	// Subdomain wildcard: scheme://*.domain
	if idx := strings.Index(pattern, "://*."); idx > 0 {
		scheme := pattern[:idx]
		domain := pattern[idx+len("://*."):]
		if domain == "" {
			return false
		}

		host, ok := strings.CutPrefix(origin, scheme+"://")
		if !ok {
			return false
		}
		host = stripPort(host)

		// One or more labels before the domain; the bare domain does not match.
		return strings.HasSuffix(host, "."+domain)
	}

	return false
}

// MatchesAny reports whether an origin satisfies any pattern in the list.
// An empty list matches nothing.
func MatchesAny(patterns []string, origin string) bool {
	for _, p := range patterns {
		if Matches(p, origin) {
			return true
		}
	}
	return false
}

// stripPort removes a trailing :port from a host if present
func stripPort(host string) string {
	idx := strings.LastIndex(host, ":")
	if idx < 0 {
		return host
	}
	for _, c := range host[idx+1:] {
		if c < '0' || c > '9' {
			return host
		}
	}
	return host[:idx]
}

// wildcardHeaderSet is the fixed superset the header wildcard "*" expands to.
// Requested header names are never reflected verbatim; a wildcard policy still
// emits only this list plus any explicitly configured extras.
var wildcardHeaderSet = []string{
	"Accept",
	"Accept-Language",
	"Authorization",
	"Content-Language",
	"Content-Type",
	"Origin",
	"X-Requested-With",
	"X-Session-Token",
	"x-session-token",
	"X-Project-Id",
	"X-Api-Key",
}

// ExpandHeaders resolves a configured allow-headers list. A "*" entry expands
// to the canonical superset unioned with the remaining explicit entries;
// without a wildcard the list passes through unchanged.
func ExpandHeaders(configured []string) []string {
	hasWildcard := false
	extras := make([]string, 0, len(configured))
	for _, h := range configured {
		if h == "*" {
			hasWildcard = true
			continue
		}
		extras = append(extras, h)
	}

	if !hasWildcard {
		return configured
	}

	seen := make(map[string]bool, len(wildcardHeaderSet)+len(extras))
	out := make([]string, 0, len(wildcardHeaderSet)+len(extras))
	for _, h := range wildcardHeaderSet {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	for _, h := range extras {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}
