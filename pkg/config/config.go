package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/webtree/pkg/utils"
)

const (
	DefaultCrawlerUserAgent = "webtree/1.0 (+https://github.com/Sriram-PR/webtree)"
	DefaultBrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.114 Safari/537.36"

	DefaultMaxDepth        = 2
	MaxAllowedDepth        = 10
	DefaultNumWorkers      = 2
	MaxAllowedWorkers      = 1024
	DefaultMaxLinksPerPage = 100
)

// Output formats for the page tree
const (
	FormatJSON = "json"
	FormatTree = "tree"
)

// CrawlConfig holds configuration for one crawl invocation
type CrawlConfig struct {
	RootURLs        []string `yaml:"root_urls"`
	MaxDepth        int      `yaml:"max_depth"`
	NumWorkers      int      `yaml:"num_workers,omitempty"` // 0 = inherit AppConfig.NumWorkers
	MaxLinksPerPage int      `yaml:"max_links_per_page,omitempty"`
	OmitDuplicates  bool     `yaml:"omit_duplicates,omitempty"`
	IgnoreRobots    bool     `yaml:"ignore_robots,omitempty"`
	SpoofUserAgent  bool     `yaml:"spoof_user_agent,omitempty"`
	UserAgent       string   `yaml:"user_agent,omitempty"`       // Overrides both agents when set
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"` // Regex patterns for URLs never to fetch
	OutputFile      string   `yaml:"output_file,omitempty"`      // Empty = stdout
	OutputFormat    string   `yaml:"output_format,omitempty"`    // json | tree
	SummaryFile     string   `yaml:"summary_file,omitempty"`     // YAML crawl summary, empty = none
	VisitedLogFile  string   `yaml:"visited_log_file,omitempty"` // Duplicate keys seen, empty = none
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent        string                 `yaml:"default_user_agent"`
	BrowserUserAgent        string                 `yaml:"browser_user_agent"`
	NumWorkers              int                    `yaml:"num_workers"`
	MaxRequests             int                    `yaml:"max_requests"`
	MaxRequestsPerHost      int                    `yaml:"max_requests_per_host"`
	MaxRetries              int                    `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration          `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration          `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration          `yaml:"semaphore_acquire_timeout,omitempty"`
	GlobalCrawlTimeout      time.Duration          `yaml:"global_crawl_timeout,omitempty"`
	MaxPageSizeBytes        int64                  `yaml:"max_page_size_bytes,omitempty"`
	ProgressInterval        time.Duration          `yaml:"progress_interval,omitempty"`
	VisitedStore            string                 `yaml:"visited_store,omitempty"` // memory | badger
	MetricsAddr             string                 `yaml:"metrics_addr,omitempty"`  // Empty = no /metrics endpoint
	HTTPClientSettings      HTTPClientConfig       `yaml:"http_client_settings,omitempty"`
	Crawls                  map[string]CrawlConfig `yaml:"crawls,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// LoadFile reads and decodes a YAML config file. Unknown keys are rejected.
func LoadFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config '%s': %w", utils.ErrFilesystem, path, err)
	}
	var cfg AppConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}

// GetEffectiveUserAgent picks the agent sent with page and robots requests.
func GetEffectiveUserAgent(crawlCfg CrawlConfig, appCfg AppConfig) string {
	if crawlCfg.UserAgent != "" {
		return crawlCfg.UserAgent
	}
	if crawlCfg.SpoofUserAgent {
		return appCfg.BrowserUserAgent
	}
	return appCfg.DefaultUserAgent
}

// GetEffectiveNumWorkers determines the worker pool size for a crawl
func GetEffectiveNumWorkers(crawlCfg CrawlConfig, appCfg AppConfig) int {
	if crawlCfg.NumWorkers > 0 {
		return crawlCfg.NumWorkers
	}
	return appCfg.NumWorkers
}
