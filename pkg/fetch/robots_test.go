package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func robotsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		hits.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func newTestRobotsHandler() *RobotsHandler {
	fetcher := NewFetcher(testClient(), nil, RetryPolicy{}, testLogger())
	return NewRobotsHandler(fetcher, "test-agent", testLogger())
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRobotsHandler_DisallowedPath(t *testing.T) {
	server, hits := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\n")
	rh := newTestRobotsHandler()

	assert.False(t, rh.Allowed(context.Background(), mustParse(t, server.URL+"/private/page")))
	assert.True(t, rh.Allowed(context.Background(), mustParse(t, server.URL+"/public")))
	assert.True(t, rh.Allowed(context.Background(), mustParse(t, server.URL+"/")))

	assert.Equal(t, int32(1), hits.Load(), "robots.txt should be fetched once per host")
	assert.Equal(t, 1, rh.CachedHosts())
}

func TestRobotsHandler_WildcardGroupOnly(t *testing.T) {
	server, _ := robotsServer(t, http.StatusOK, "User-agent: test-agent\nDisallow: /\n\nUser-agent: *\nDisallow: /admin\n")
	rh := newTestRobotsHandler()

	assert.True(t, rh.Allowed(context.Background(), mustParse(t, server.URL+"/docs")))
	assert.False(t, rh.Allowed(context.Background(), mustParse(t, server.URL+"/admin")))
}

func TestRobotsHandler_FailOpen(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"NotFound", http.StatusNotFound, ""},
		{"ServerError", http.StatusInternalServerError, "User-agent: *\nDisallow: /\n"},
		{"Forbidden", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := robotsServer(t, tt.status, tt.body)
			rh := newTestRobotsHandler()

			target := mustParse(t, server.URL+"/anything")
			assert.True(t, rh.Allowed(context.Background(), target))
			assert.True(t, rh.Record(context.Background(), target).Unavailable())
		})
	}
}

func TestRobotsHandler_UnreachableHost(t *testing.T) {
	server, _ := robotsServer(t, http.StatusOK, "")
	target := mustParse(t, server.URL+"/page")
	server.Close()

	rh := newTestRobotsHandler()
	assert.True(t, rh.Allowed(context.Background(), target))
}

func TestRobotsHandler_ConcurrentMissesConverge(t *testing.T) {
	server, _ := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /x\n")
	rh := newTestRobotsHandler()
	target := mustParse(t, server.URL+"/x")

	records := make([]*RobotsRecord, 16)
	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i] = rh.Record(context.Background(), target)
		}(i)
	}
	wg.Wait()

	stored := rh.Record(context.Background(), target)
	for _, r := range records {
		assert.Same(t, stored, r)
	}
	assert.False(t, stored.Allows("/x"))
}

func TestRobotsRecord_NilDataAllows(t *testing.T) {
	record := &RobotsRecord{Host: "example.com"}
	assert.True(t, record.Unavailable())
	assert.True(t, record.Allows("/anything"))
}
