package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

const (
	robotsWildcardAgent = "*"
	maxRobotsBytes      = 512 * 1024
)

// RobotsRecord is the cached robots-exclusion outcome for one host.
// Data is nil when the file could not be fetched or parsed, which allows everything.
type RobotsRecord struct {
	Host      string
	Data      *robotstxt.RobotsData
	FetchedAt time.Time
}

// Unavailable reports whether the record is the fail-open marker
func (r *RobotsRecord) Unavailable() bool {
	return r.Data == nil
}

// Allows reports whether path is permitted for the wildcard agent.
func (r *RobotsRecord) Allows(path string) bool {
	if r.Data == nil {
		return true
	}
	group := r.Data.FindGroup(robotsWildcardAgent)
	if group == nil {
		return true
	}
	return group.Test(path)
}

// RobotsHandler fetches, parses and caches robots.txt per host.
// The cache is owned by one crawl; records are written at most once per host.
type RobotsHandler struct {
	fetcher   *Fetcher
	userAgent string
	cache     map[string]*RobotsRecord
	mu        sync.RWMutex
	log       *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler with an empty cache
func NewRobotsHandler(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:   fetcher,
		userAgent: userAgent,
		cache:     make(map[string]*RobotsRecord),
		log:       log,
	}
}

// Record returns the cached record for targetURL's host, fetching http://{host}/robots.txt on a miss.
// Concurrent misses for one host may each fetch; the first stored record wins.
func (rh *RobotsHandler) Record(ctx context.Context, targetURL *url.URL) *RobotsRecord {
	host := strings.ToLower(targetURL.Host)

	rh.mu.RLock()
	record, found := rh.cache[host]
	rh.mu.RUnlock()
	if found {
		return record
	}

	fetched := rh.fetch(ctx, host)

	rh.mu.Lock()
	defer rh.mu.Unlock()
	if existing, ok := rh.cache[host]; ok {
		return existing
	}
	rh.cache[host] = fetched
	return fetched
}

func (rh *RobotsHandler) fetch(ctx context.Context, host string) *RobotsRecord {
	record := &RobotsRecord{Host: host, FetchedAt: time.Now()}
	robotsURL := (&url.URL{Scheme: "http", Host: host, Path: "/robots.txt"}).String()
	robotsLog := rh.log.WithField("robots_url", robotsURL)
	robotsLog.Debug("Fetching robots.txt")

	resp, err := rh.fetcher.Get(ctx, robotsURL, rh.userAgent, maxRobotsBytes)
	if err != nil {
		robotsLog.Infof("robots.txt unavailable, allowing all paths: %v", err)
		return record
	}

	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		robotsLog.Infof("robots.txt unparseable, allowing all paths: %v", err)
		return record
	}

	robotsLog.Debug("Parsed robots.txt")
	record.Data = data
	return record
}

// Allowed reports whether targetURL may be fetched. Missing or broken robots.txt allows everything.
func (rh *RobotsHandler) Allowed(ctx context.Context, targetURL *url.URL) bool {
	return rh.Record(ctx, targetURL).Allows(targetURL.RequestURI())
}

// CachedHosts returns the number of hosts with a stored record
func (rh *RobotsHandler) CachedHosts() int {
	rh.mu.RLock()
	defer rh.mu.RUnlock()
	return len(rh.cache)
}
