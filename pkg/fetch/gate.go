package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/webtree/pkg/utils"
)

// hostEntry tracks a single host's semaphore and its usage state.
type hostEntry struct {
	sem         *semaphore.Weighted
	activeCount int64     // number of held + waiting permits
	lastRelease time.Time // updated on every release; zero if never released
}

// RequestGate bounds concurrent outbound requests, both in total and per host.
// One gate is shared by page fetches and robots.txt fetches of a crawl.
type RequestGate struct {
	global         *semaphore.Weighted
	entries        map[string]*hostEntry
	mu             sync.Mutex
	perHost        int64
	acquireTimeout time.Duration
	log            *logrus.Entry
}

// NewRequestGate creates a gate allowing maxTotal requests overall and maxPerHost per host.
// acquireTimeout bounds how long a caller waits for a slot (0 = wait for ctx only).
func NewRequestGate(maxTotal, maxPerHost int, acquireTimeout time.Duration, log *logrus.Entry) *RequestGate {
	if maxTotal <= 0 {
		maxTotal = 64
	}
	if maxPerHost <= 0 {
		maxPerHost = 4
	}
	return &RequestGate{
		global:         semaphore.NewWeighted(int64(maxTotal)),
		entries:        make(map[string]*hostEntry),
		perHost:        int64(maxPerHost),
		acquireTimeout: acquireTimeout,
		log:            log,
	}
}

// Acquire blocks until both a global and a per-host slot are held.
// The returned release func must be called exactly once.
func (g *RequestGate) Acquire(ctx context.Context, host string) (release func(), err error) {
	if g.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.acquireTimeout)
		defer cancel()
	}

	if err := g.global.Acquire(ctx, 1); err != nil {
		return nil, g.acquireError("global", host, err)
	}

	g.mu.Lock()
	entry, exists := g.entries[host]
	if !exists {
		entry = &hostEntry{sem: semaphore.NewWeighted(g.perHost)}
		g.entries[host] = entry
		g.log.WithFields(logrus.Fields{"host": host, "limit": g.perHost}).Debug("Created new host semaphore")
	}
	entry.activeCount++
	g.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		g.mu.Lock()
		entry.activeCount--
		g.mu.Unlock()
		g.global.Release(1)
		return nil, g.acquireError("host", host, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			entry.activeCount--
			entry.lastRelease = time.Now()
			g.mu.Unlock()
			entry.sem.Release(1)
			g.global.Release(1)
		})
	}, nil
}

// acquireError keeps caller cancellation distinct from a slot timeout
func (g *RequestGate) acquireError(scope, host string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s slot for %s: %w", utils.ErrSemaphoreTimeout, scope, host, err)
	}
	return err
}

// RunEviction periodically removes idle host entries until ctx is done. Should be run in a goroutine.
func (g *RequestGate) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.evictIdle(interval)
		case <-ctx.Done():
			return
		}
	}
}

// evictIdle removes entries that have been idle longer than maxIdle.
func (g *RequestGate) evictIdle(maxIdle time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	evicted := 0
	for host, entry := range g.entries {
		if entry.activeCount == 0 && !entry.lastRelease.IsZero() && now.Sub(entry.lastRelease) >= maxIdle {
			delete(g.entries, host)
			evicted++
		}
	}
	if evicted > 0 {
		g.log.Debugf("Evicted %d idle host semaphores, %d remain", evicted, len(g.entries))
	}
}

// Len returns the current number of tracked hosts.
func (g *RequestGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
