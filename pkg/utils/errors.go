package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrNotHTML          = errors.New("response is not HTML")
	ErrPageTooLarge     = errors.New("page exceeds maximum size")
	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrCrawlCancelled   = errors.New("crawl cancelled")
	ErrTaskPanic        = errors.New("task panicked")
)

// WrapErrorf prefixes err with a formatted context message. A nil err stays nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		underlying := retryCause(err)
		if underlying == nil {
			return "RetryFailed_Unknown"
		}
		if errors.Is(underlying, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(underlying, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		return "RetryFailed_" + strings.TrimPrefix(categorizeNetwork(underlying), "Network_")
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrNotHTML):
		return "Content_NotHTML"
	case errors.Is(err, ErrPageTooLarge):
		return "Content_TooLarge"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrCrawlCancelled):
		return "System_CrawlCancelled"
	case errors.Is(err, ErrTaskPanic):
		return "Internal_Panic"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}

	return categorizeNetwork(err)
}

// retryCause finds the last attempt's error inside an ErrRetryFailed wrapper built with one or two %w verbs.
func retryCause(err error) error {
	for err != nil {
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				if e != ErrRetryFailed {
					return e
				}
			}
			return nil
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == ErrRetryFailed {
				return nil
			}
			if !errors.Is(next, ErrRetryFailed) {
				return next
			}
			err = next
		default:
			return nil
		}
	}
	return nil
}

// categorizeNetwork classifies transport-level failures not wrapped by a sentinel.
func categorizeNetwork(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return "Unknown"
}
