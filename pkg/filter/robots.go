package filter

import (
	"context"
	"net/url"
)

// RobotsChecker answers robots-exclusion questions; implemented by fetch.RobotsHandler.
type RobotsChecker interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// RobotsFilter rejects URLs disallowed by their host's robots.txt for the wildcard agent.
type RobotsFilter struct {
	checker RobotsChecker
}

// NewRobotsFilter wraps a per-crawl robots cache
func NewRobotsFilter(checker RobotsChecker) *RobotsFilter {
	return &RobotsFilter{checker: checker}
}

func (f *RobotsFilter) Name() string { return "robots" }

func (f *RobotsFilter) Allow(ctx context.Context, u *url.URL) bool {
	return f.checker.Allowed(ctx, u)
}
