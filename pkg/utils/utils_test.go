package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"NotHTML", ErrNotHTML, "Content_NotHTML"},
		{"PageTooLarge", ErrPageTooLarge, "Content_TooLarge"},
		{"SemaphoreTimeout", ErrSemaphoreTimeout, "Resource_SemaphoreTimeout"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
		{"CrawlCancelled", ErrCrawlCancelled, "System_CrawlCancelled"},
		{"TaskPanic", ErrTaskPanic, "Internal_Panic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"404", fmt.Errorf("%w: status 404 Not Found", ErrClientHTTPError), "HTTP_404"},
		{"403", fmt.Errorf("%w: status 403 Forbidden", ErrClientHTTPError), "HTTP_403"},
		{"429", fmt.Errorf("%w: status 429 Too Many Requests", ErrClientHTTPError), "HTTP_429"},
		{"Generic4xx", fmt.Errorf("%w: status 418", ErrClientHTTPError), "HTTP_4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_RetryFailed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Server", fmt.Errorf("%w: %w", ErrRetryFailed, ErrServerHTTPError), "RetryFailed_HTTPServer"},
		{"Client", fmt.Errorf("%w: %w", ErrRetryFailed, ErrClientHTTPError), "RetryFailed_HTTPClient"},
		{"Bare", ErrRetryFailed, "RetryFailed_Unknown"},
		{"ServerStatus", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503 Service Unavailable", ErrServerHTTPError)), "RetryFailed_HTTPServer"},
		{"TooManyRequests", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 429 Too Many Requests", ErrClientHTTPError)), "RetryFailed_HTTPClient"},
		{"ConnectionRefused", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")), "RetryFailed_ConnectionRefused"},
		{"Rewrapped", fmt.Errorf("fetch page: %w", fmt.Errorf("%w: %w", ErrRetryFailed, ErrServerHTTPError)), "RetryFailed_HTTPServer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"URLParsing", fmt.Errorf("URL parsing failed: %w", ErrParsing), "Content_ParsingURL"},
		{"HTMLParsing", fmt.Errorf("HTML parsing failed: %w", ErrParsing), "Content_ParsingHTML"},
		{"GenericParsing", fmt.Errorf("parsing failed: %w", ErrParsing), "Content_ParsingOther"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ContextErrors(t *testing.T) {
	if got := CategorizeError(context.Canceled); got != "System_ContextCanceled" {
		t.Errorf("CategorizeError(Canceled) = %q", got)
	}
	if got := CategorizeError(context.DeadlineExceeded); got != "System_ContextDeadlineExceeded" {
		t.Errorf("CategorizeError(DeadlineExceeded) = %q", got)
	}
}

func TestCategorizeError_NetworkStrings(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Timeout", errors.New("connection timeout occurred"), "Network_Timeout"},
		{"ConnectionRefused", errors.New("dial tcp: connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"TLS", errors.New("tls handshake failed"), "Network_TLS"},
		{"ConnectionReset", errors.New("read: connection reset by peer"), "Network_ConnectionReset"},
		{"Unknown", errors.New("some completely unknown error"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

// --- CompileRegexPatterns Tests ---

func TestCompileRegexPatterns_ValidPatterns(t *testing.T) {
	compiled, err := CompileRegexPatterns([]string{`^/docs/.*`, `\.pdf$`, "", `[a-z]+`})
	if err != nil {
		t.Fatalf("CompileRegexPatterns() unexpected error: %v", err)
	}
	if len(compiled) != 3 {
		t.Errorf("CompileRegexPatterns() returned %d patterns, want 3", len(compiled))
	}
}

func TestCompileRegexPatterns_InvalidPattern(t *testing.T) {
	_, err := CompileRegexPatterns([]string{`valid`, `[invalid`})
	if err == nil {
		t.Fatal("CompileRegexPatterns() expected error for invalid pattern, got nil")
	}
	if !errors.Is(err, ErrConfigValidation) {
		t.Errorf("CompileRegexPatterns() error = %v, want wrapped ErrConfigValidation", err)
	}
}

// --- PageHash Tests ---

func TestPageHash(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty", "", "D41D8CD98F00B204E9800998ECF8427E"},
		{"HelloWorld", "hello world", "5EB63BBBE01EEED093CB22BB8F5ACDC3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageHash([]byte(tt.input)); got != tt.expected {
				t.Errorf("PageHash(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf_NilError(t *testing.T) {
	if result := WrapErrorf(nil, "some context"); result != nil {
		t.Errorf("WrapErrorf(nil, ...) = %v, want nil", result)
	}
}

func TestWrapErrorf_WrapsError(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")

	if !errors.Is(wrapped, original) {
		t.Error("WrapErrorf() result should wrap original error")
	}
	if wrapped.Error() != "context value: original error" {
		t.Errorf("WrapErrorf() message = %q", wrapped.Error())
	}
}
