package parse

import (
	"net/url"
	"regexp"
	"strings"
)

var httpURLPattern = regexp.MustCompile(`^https?:\/\/?(www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)$`)

// IsHTTPURL is the syntactic check a discovered link must pass before admission filtering.
func IsHTTPURL(s string) bool {
	return httpURLPattern.MatchString(s)
}

// ResolveLink resolves a raw href against the page URL and returns the canonical absolute form.
// ok is false for hrefs that fail to parse, resolve to the page itself, or are not http(s) URLs.
func ResolveLink(base *url.URL, href string) (resolved string, ok bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := base.ResolveReference(ref)
	resolved = CanonicalURL(abs)
	if resolved == CanonicalURL(base) {
		return "", false
	}
	if !IsHTTPURL(resolved) {
		return "", false
	}
	return resolved, true
}

// ExtractLinks resolves hrefs in document order, dropping the ones ResolveLink rejects.
func ExtractLinks(pageURL string, hrefs []string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if resolved, ok := ResolveLink(base, href); ok {
			links = append(links, resolved)
		}
	}
	return links
}
