package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// CanonicalURL returns the identity form of a URL used for PageNodes.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https), ensures an empty path becomes "/" and drops the fragment.
// Query strings and trailing slashes are preserved since they address different documents.
// Does not modify the input *url.URL
func CanonicalURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" && normalized.Opaque == "" {
		normalized.Path = "/"
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseRootURL turns a user-supplied root into its canonical form.
// A value without "://" is assumed to be https; schemeAssumed reports that so callers can warn.
func ParseRootURL(raw string) (canonical string, schemeAssumed bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
		schemeAssumed = true
	}

	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", schemeAssumed, err
	}
	if parsed.Host == "" {
		return "", schemeAssumed, fmt.Errorf("URL %q has no host", raw)
	}

	canonical = CanonicalURL(parsed)
	if !IsHTTPURL(canonical) {
		return "", schemeAssumed, fmt.Errorf("URL %q is not a valid http(s) URL", raw)
	}
	return canonical, schemeAssumed, nil
}

// DuplicateKey reduces a URL to the form compared by duplicate suppression.
// The scheme is removed, then a trailing "#", then a trailing "/", so http/https variants
// and "/", "#", "/#" suffixed variants share one key. Never used for fetching.
func DuplicateKey(rawURL string) string {
	key := rawURL
	if idx := strings.Index(key, "://"); idx >= 0 {
		key = key[idx+len("://"):]
	}
	key = strings.TrimSuffix(key, "#")
	key = strings.TrimSuffix(key, "/")
	return key
}
