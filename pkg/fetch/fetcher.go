package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webtree/pkg/utils"
)

// RetryPolicy controls FetchWithRetry. The zero value performs a single attempt.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	URL        *url.URL // Final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration // From first byte sent to last byte read
}

// Fetcher performs gated HTTP GETs with optional retry
type Fetcher struct {
	client *http.Client
	gate   *RequestGate // nil = ungated
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, gate *RequestGate, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		gate:   gate,
		policy: policy,
		log:    log,
	}
}

// Get fetches rawURL and reads at most maxBytes of the body (0 = unlimited).
// Any non-2xx final status is an error.
func (f *Fetcher) Get(ctx context.Context, rawURL, userAgent string, maxBytes int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	if f.gate != nil {
		release, err := f.gate.Acquire(ctx, req.URL.Host)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	start := time.Now()
	resp, err := f.FetchWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", utils.ErrPageTooLarge, maxBytes)
	}

	return &Response{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}, nil
}

// FetchWithRetry executes req, retrying network errors, 5xx and 429 with exponential backoff and jitter.
// On success the caller must close the response body. On error no body is left open.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := max(f.policy.MaxRetries, 0)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) after error: %w", err, lastErr)
			}
			return nil, err
		}

		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err // Caller cancelled, not retryable
			}
			reqLog.WithField("attempt", attempt).Debugf("Network error: %v", err)
			lastErr = err
			continue
		}

		statusCode := resp.StatusCode
		switch {
		case statusCode >= 200 && statusCode < 300:
			return resp, nil
		case statusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, http.StatusText(statusCode))
		case statusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, http.StatusText(statusCode))
		case statusCode >= 400:
			drainAndClose(resp)
			return nil, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, http.StatusText(statusCode))
		default:
			drainAndClose(resp)
			return nil, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, http.StatusText(statusCode))
		}
		drainAndClose(resp)
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	reqLog.Debugf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoff returns initial * 2^(attempt-1), capped at MaxDelay, with +/- 10% jitter
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(f.policy.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (f.policy.MaxDelay > 0 && delay > f.policy.MaxDelay) {
		delay = f.policy.MaxDelay
	}
	if delay <= 0 {
		return 0
	}
	if window := int64(delay) / 5; window > 0 {
		delay += time.Duration(rand.Int63n(window)) - delay/10
	}
	return max(delay, 0)
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
