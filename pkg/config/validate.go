package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sriram-PR/webtree/pkg/parse"
	"github.com/Sriram-PR/webtree/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = DefaultCrawlerUserAgent
	}
	if c.BrowserUserAgent == "" {
		c.BrowserUserAgent = DefaultBrowserUserAgent
	}

	if c.NumWorkers <= 0 {
		c.NumWorkers = DefaultNumWorkers
	} else if c.NumWorkers > MaxAllowedWorkers {
		warnings = append(warnings, fmt.Sprintf("num_workers %d exceeds %d, clamping", c.NumWorkers, MaxAllowedWorkers))
		c.NumWorkers = MaxAllowedWorkers
	}

	if c.MaxRequests <= 0 {
		c.MaxRequests = 64
	}
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 4
	}

	// Pages are not retried unless asked for
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}
	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = 10 * 1024 * 1024
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 30 * time.Second
	}

	switch c.VisitedStore {
	case "":
		c.VisitedStore = "memory"
	case "memory", "badger":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown visited_store %q, defaulting to 'memory'", c.VisitedStore))
		c.VisitedStore = "memory"
	}

	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 20 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 10 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// Validate checks CrawlConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Root URLs are rewritten to their canonical form.
func (c *CrawlConfig) Validate() (warnings []string, err error) {
	if len(c.RootURLs) == 0 {
		return nil, fmt.Errorf("%w: crawl has no root_urls", utils.ErrConfigValidation)
	}

	roots := make([]string, 0, len(c.RootURLs))
	for _, raw := range c.RootURLs {
		canonical, schemeAssumed, parseErr := parse.ParseRootURL(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: invalid root URL '%s': %v", utils.ErrConfigValidation, raw, parseErr)
		}
		if schemeAssumed {
			warnings = append(warnings, fmt.Sprintf("root URL '%s' has no scheme, assuming https", raw))
		}
		roots = append(roots, canonical)
	}
	c.RootURLs = roots

	switch {
	case c.MaxDepth == 0:
		c.MaxDepth = DefaultMaxDepth
	case c.MaxDepth < 1 || c.MaxDepth > MaxAllowedDepth:
		return nil, fmt.Errorf("%w: max_depth must be between 1 and %d, got %d", utils.ErrConfigValidation, MaxAllowedDepth, c.MaxDepth)
	}

	if c.NumWorkers < 0 || c.NumWorkers > MaxAllowedWorkers {
		return nil, fmt.Errorf("%w: num_workers must be between 1 and %d, got %d", utils.ErrConfigValidation, MaxAllowedWorkers, c.NumWorkers)
	}

	switch {
	case c.MaxLinksPerPage == 0:
		c.MaxLinksPerPage = DefaultMaxLinksPerPage
	case c.MaxLinksPerPage < 0:
		return nil, fmt.Errorf("%w: max_links_per_page must be >= 1, got %d", utils.ErrConfigValidation, c.MaxLinksPerPage)
	}

	if _, regexErr := utils.CompileRegexPatterns(c.ExcludePatterns); regexErr != nil {
		return nil, regexErr
	}

	switch c.OutputFormat {
	case "":
		c.OutputFormat = FormatJSON
	case FormatJSON, FormatTree:
	default:
		return nil, fmt.Errorf("%w: output_format must be '%s' or '%s', got '%s'", utils.ErrConfigValidation, FormatJSON, FormatTree, c.OutputFormat)
	}

	if c.OutputFile != "" && c.OutputFormat == FormatJSON && !strings.EqualFold(filepath.Ext(c.OutputFile), ".json") {
		warnings = append(warnings, fmt.Sprintf("output file '%s' does not end in .json", c.OutputFile))
	}

	return warnings, nil
}
