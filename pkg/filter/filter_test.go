package filter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/webtree/pkg/fetch"
	"github.com/Sriram-PR/webtree/pkg/storage"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// recordingFilter counts calls and rejects a fixed set of URLs
type recordingFilter struct {
	name   string
	reject map[string]bool
	calls  atomic.Int32
}

func (f *recordingFilter) Name() string { return f.name }

func (f *recordingFilter) Allow(_ context.Context, u *url.URL) bool {
	f.calls.Add(1)
	return !f.reject[u.String()]
}

func TestChain_AllMustAllow(t *testing.T) {
	first := &recordingFilter{name: "first"}
	second := &recordingFilter{name: "second", reject: map[string]bool{"https://example.com/no": true}}
	chain := NewChain(first, second)

	v := chain.Evaluate(context.Background(), mustURL(t, "https://example.com/yes"))
	assert.True(t, v.Admitted)
	assert.Empty(t, v.RejectedBy)

	v = chain.Evaluate(context.Background(), mustURL(t, "https://example.com/no"))
	assert.False(t, v.Admitted)
	assert.Equal(t, "second", v.RejectedBy)
	assert.False(t, v.Suppressed)
}

func TestChain_ShortCircuits(t *testing.T) {
	first := &recordingFilter{name: "first", reject: map[string]bool{"https://example.com/x": true}}
	second := &recordingFilter{name: "second"}
	chain := NewChain(first, second)

	assert.False(t, chain.Allow(context.Background(), mustURL(t, "https://example.com/x")))
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(0), second.calls.Load())
}

func TestChain_EmptyAndNil(t *testing.T) {
	assert.True(t, NewChain().Allow(context.Background(), mustURL(t, "https://example.com")))
	var nilChain *Chain
	assert.True(t, nilChain.Allow(context.Background(), mustURL(t, "https://example.com")))
	assert.Equal(t, []string{"first"}, NewChain(nil, &recordingFilter{name: "first"}).Names())
}

func TestDuplicateFilter_EquivalentVariants(t *testing.T) {
	f := NewDuplicateFilter(storage.NewMemoryStore(), testLogger())
	chain := NewChain(f)

	v := chain.Evaluate(context.Background(), mustURL(t, "https://example.com/docs"))
	assert.True(t, v.Admitted)

	for _, variant := range []string{
		"http://example.com/docs",
		"https://example.com/docs/",
		"https://example.com/docs#",
		"http://example.com/docs/#",
	} {
		v := chain.Evaluate(context.Background(), mustURL(t, variant))
		assert.False(t, v.Admitted, variant)
		assert.True(t, v.Suppressed, variant)
		assert.Equal(t, "duplicate", v.RejectedBy)
	}

	assert.True(t, chain.Allow(context.Background(), mustURL(t, "https://example.com/other")))
}

func TestDuplicateFilter_ConcurrentFirstSeenOnce(t *testing.T) {
	f := NewDuplicateFilter(storage.NewMemoryStore(), testLogger())

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := "https://example.com/page"
			if i%2 == 0 {
				raw = "http://example.com/page/"
			}
			if f.Reserve(raw) {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestPatternFilter(t *testing.T) {
	f, err := NewPatternFilter([]string{`\.pdf$`, `/private/`})
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.False(t, f.Allow(context.Background(), mustURL(t, "https://example.com/file.pdf")))
	assert.False(t, f.Allow(context.Background(), mustURL(t, "https://example.com/private/x")))
	assert.True(t, f.Allow(context.Background(), mustURL(t, "https://example.com/docs")))

	empty, err := NewPatternFilter([]string{""})
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = NewPatternFilter([]string{"[bad"})
	assert.Error(t, err)
}

func TestRobotsFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			io.WriteString(w, "User-agent: *\nDisallow: /secret\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	fetcher := fetch.NewFetcher(server.Client(), nil, fetch.RetryPolicy{}, testLogger())
	f := NewRobotsFilter(fetch.NewRobotsHandler(fetcher, "test-agent", testLogger()))
	chain := NewChain(f)

	v := chain.Evaluate(context.Background(), mustURL(t, server.URL+"/secret/plans"))
	assert.False(t, v.Admitted)
	assert.Equal(t, "robots", v.RejectedBy)
	assert.False(t, v.Suppressed)

	assert.True(t, chain.Allow(context.Background(), mustURL(t, server.URL+"/open")))
}

func TestChain_ReserveClaimsDuplicateSlot(t *testing.T) {
	other := &recordingFilter{name: "other"}
	chain := NewChain(NewDuplicateFilter(storage.NewMemoryStore(), testLogger()), other)

	chain.Reserve("https://example.com/")

	v := chain.Evaluate(context.Background(), mustURL(t, "http://example.com"))
	assert.False(t, v.Admitted)
	assert.True(t, v.Suppressed)
	assert.Equal(t, int32(0), other.calls.Load(), "Reserve must not evaluate non-reserving filters")

	var nilChain *Chain
	assert.NotPanics(t, func() { nilChain.Reserve("https://example.com") })
}
