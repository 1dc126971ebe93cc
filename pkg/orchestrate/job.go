package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webtree/pkg/config"
	"github.com/Sriram-PR/webtree/pkg/crawler"
	"github.com/Sriram-PR/webtree/pkg/fetch"
	"github.com/Sriram-PR/webtree/pkg/filter"
	"github.com/Sriram-PR/webtree/pkg/metrics"
	"github.com/Sriram-PR/webtree/pkg/models"
	"github.com/Sriram-PR/webtree/pkg/storage"
	"github.com/Sriram-PR/webtree/pkg/utils"
)

const gateEvictionInterval = time.Minute

// CrawlResult contains the outcome of one named crawl
type CrawlResult struct {
	Name     string
	CrawlID  string
	Success  bool
	Error    error
	Roots    []*models.PageNode
	Summary  models.CrawlSummary
	Duration time.Duration
}

// Job is a fully assembled crawl: its own visited store, robots cache, request gate and filter chain.
// Nothing is shared between jobs except the HTTP client's connection pool.
type Job struct {
	Name    string
	ID      string
	cfg     config.CrawlConfig
	workers int
	log     *logrus.Entry

	store    storage.VisitedStore
	gate     *fetch.RequestGate
	robots   *fetch.RobotsHandler
	crawler  *crawler.Crawler
	recorder *metrics.CrawlRecorder
}

// Assemble validates crawlCfg and wires every component of one crawl.
// appCfg must already be validated. The caller must Close the returned job.
func Assemble(name string, crawlCfg config.CrawlConfig, appCfg *config.AppConfig, client *http.Client, recorder *metrics.CrawlRecorder, baseLog *logrus.Entry) (*Job, error) {
	crawlID := uuid.NewString()
	log := baseLog.WithFields(logrus.Fields{"crawl": name, "crawl_id": crawlID})

	warnings, err := crawlCfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("crawl '%s': %w", name, err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	store, err := storage.New(appCfg.VisitedStore, log.WithField("component", "visited_store"))
	if err != nil {
		return nil, fmt.Errorf("%w: crawl '%s': %w", utils.ErrDatabase, name, err)
	}

	userAgent := config.GetEffectiveUserAgent(crawlCfg, *appCfg)
	gate := fetch.NewRequestGate(appCfg.MaxRequests, appCfg.MaxRequestsPerHost, appCfg.SemaphoreAcquireTimeout, log)
	fetcher := fetch.NewFetcher(client, gate, fetch.RetryPolicy{
		MaxRetries:   appCfg.MaxRetries,
		InitialDelay: appCfg.InitialRetryDelay,
		MaxDelay:     appCfg.MaxRetryDelay,
	}, log)
	robots := fetch.NewRobotsHandler(fetcher, userAgent, log.WithField("component", "robots"))

	// Cheap local checks run before the robots filter, which may hit the network.
	var filters []filter.AdmissionFilter
	if crawlCfg.OmitDuplicates {
		filters = append(filters, filter.NewDuplicateFilter(store, log))
	}
	patterns, err := filter.NewPatternFilter(crawlCfg.ExcludePatterns)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("crawl '%s': %w", name, err)
	}
	if patterns != nil {
		filters = append(filters, patterns)
	}
	if !crawlCfg.IgnoreRobots {
		filters = append(filters, filter.NewRobotsFilter(robots))
	}
	chain := filter.NewChain(filters...)

	workers := config.GetEffectiveNumWorkers(crawlCfg, *appCfg)
	c := crawler.New(fetch.NewPageFetcher(fetcher, appCfg.MaxPageSizeBytes), chain, crawler.Options{
		UserAgent:        userAgent,
		MaxChildren:      crawlCfg.MaxLinksPerPage,
		ProgressInterval: appCfg.ProgressInterval,
		Metrics:          recorder,
	}, log)

	log.WithFields(logrus.Fields{
		"roots":      len(crawlCfg.RootURLs),
		"max_depth":  crawlCfg.MaxDepth,
		"workers":    workers,
		"filters":    chain.Names(),
		"user_agent": userAgent,
	}).Info("Crawl assembled")

	return &Job{
		Name:     name,
		ID:       crawlID,
		cfg:      crawlCfg,
		workers:  workers,
		log:      log,
		store:    store,
		gate:     gate,
		robots:   robots,
		crawler:  c,
		recorder: recorder,
	}, nil
}

// Config returns the validated crawl configuration.
func (j *Job) Config() config.CrawlConfig {
	return j.cfg
}

// Run crawls the job's roots and blocks until the crawl is done or drained after cancellation.
// Output files are not written here.
func (j *Job) Run(ctx context.Context) CrawlResult {
	start := time.Now()
	result := CrawlResult{Name: j.Name, CrawlID: j.ID}

	evictCtx, stopEviction := context.WithCancel(ctx)
	go j.gate.RunEviction(evictCtx, gateEvictionInterval)
	defer stopEviction()

	roots := crawler.NewRoots(j.cfg.RootURLs)
	err := j.crawler.Run(ctx, roots, j.cfg.MaxDepth, j.workers)
	end := time.Now()
	j.recorder.SetRobotsHosts(j.robots.CachedHosts())

	result.Roots = roots
	result.Duration = end.Sub(start)
	result.Error = err
	result.Success = err == nil
	result.Summary = crawler.BuildSummary(crawler.SummaryInput{
		CrawlID:   j.ID,
		Name:      j.Name,
		MaxDepth:  j.cfg.MaxDepth,
		Workers:   j.workers,
		Start:     start,
		End:       end,
		Stats:     j.crawler.Stats(),
		Cancelled: errors.Is(err, utils.ErrCrawlCancelled),
	}, roots)
	return result
}

// WriteOutputs writes the tree, summary and visited log files named in the job's config.
func (j *Job) WriteOutputs(result CrawlResult) error {
	var errs []error
	if err := crawler.WriteOutput(j.cfg.OutputFile, j.cfg.OutputFormat, result.Roots, j.log); err != nil {
		errs = append(errs, err)
	}
	if j.cfg.SummaryFile != "" {
		if err := crawler.WriteSummaryYAML(j.cfg.SummaryFile, result.Summary, j.log); err != nil {
			errs = append(errs, err)
		}
	}
	if j.cfg.VisitedLogFile != "" {
		if err := storage.WriteVisitedLog(j.store, j.cfg.VisitedLogFile, j.log); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the job's visited store.
func (j *Job) Close() error {
	return j.store.Close()
}
