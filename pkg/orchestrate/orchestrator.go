package orchestrate

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webtree/pkg/config"
	"github.com/Sriram-PR/webtree/pkg/fetch"
	"github.com/Sriram-PR/webtree/pkg/metrics"
	"github.com/Sriram-PR/webtree/pkg/models"
)

// Orchestrator runs several named crawls in parallel. Each crawl is isolated; only the HTTP client is shared.
type Orchestrator struct {
	appCfg  *config.AppConfig
	log     *logrus.Entry
	names   []string
	client  *http.Client
	metrics *metrics.Collector

	// Serialises output writing so crawls sharing stdout do not interleave
	outputMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for the named crawls of appCfg. collector may be nil.
func NewOrchestrator(appCfg *config.AppConfig, names []string, collector *metrics.Collector, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		appCfg:  appCfg,
		log:     log,
		names:   names,
		client:  fetch.NewClient(appCfg.HTTPClientSettings, log),
		metrics: collector,
	}
}

// Run starts every crawl and waits for all of them. Results are in the order the names were given.
func (o *Orchestrator) Run(ctx context.Context) []CrawlResult {
	startTime := time.Now()
	o.log.Infof("Starting %d crawl(s): %v", len(o.names), o.names)

	results := make([]CrawlResult, len(o.names))
	var wg sync.WaitGroup
	for i, name := range o.names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.runCrawl(ctx, name)
		}()
	}
	wg.Wait()

	o.logSummary(results, time.Since(startTime))
	return results
}

// runCrawl assembles, runs and writes the outputs of one crawl.
func (o *Orchestrator) runCrawl(ctx context.Context, name string) CrawlResult {
	result := CrawlResult{Name: name}

	crawlCfg, exists := o.appCfg.Crawls[name]
	if !exists {
		result.Error = fmt.Errorf("crawl '%s' not found in configuration", name)
		o.log.Error(result.Error)
		return result
	}

	job, err := Assemble(name, crawlCfg, o.appCfg, o.client, o.metrics.ForCrawl(name), o.log)
	if err != nil {
		result.Error = err
		o.log.Errorf("Failed to assemble crawl '%s': %v", name, err)
		return result
	}
	defer func() {
		if err := job.Close(); err != nil {
			o.log.Warnf("Closing visited store for crawl '%s': %v", name, err)
		}
	}()

	crawlCtx := ctx
	if o.appCfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, o.appCfg.GlobalCrawlTimeout)
		defer cancel()
	}

	result = job.Run(crawlCtx)
	if result.Error != nil {
		o.log.Errorf("Crawl '%s' ended early: %v", name, result.Error)
	} else {
		o.log.Infof("Crawl '%s' completed", name)
	}

	o.outputMu.Lock()
	outErr := job.WriteOutputs(result)
	o.outputMu.Unlock()
	if outErr != nil {
		o.log.Errorf("Writing outputs for crawl '%s': %v", name, outErr)
		if result.Error == nil {
			result.Error = outErr
			result.Success = false
		}
	}
	return result
}

// logSummary logs a summary of all crawl results
func (o *Orchestrator) logSummary(results []CrawlResult, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("All crawls finished in %v", totalDuration)
	o.log.Info("Crawl Results:")

	var totalLoaded int
	successCount := 0
	failCount := 0

	for _, r := range results {
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		loaded := r.Summary.PagesByState[models.PageStateLoaded]
		totalLoaded += loaded

		o.log.Infof("  %s: %s - %d pages loaded (%s) in %v", r.Name, status, loaded, r.Summary.TotalBytesHuman, r.Duration)
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d crawls (%d success, %d failed), %d pages loaded",
		len(results), successCount, failCount, totalLoaded)
	o.log.Info("============================================")
}

// ValidateCrawlNames checks that all provided crawl names exist in the config
func ValidateCrawlNames(appCfg *config.AppConfig, names []string) error {
	for _, name := range names {
		if _, exists := appCfg.Crawls[name]; !exists {
			return fmt.Errorf("crawl '%s' not found. Available crawls: %v", name, GetAllCrawlNames(appCfg))
		}
	}
	return nil
}

// GetAllCrawlNames returns every crawl name in the config, sorted
func GetAllCrawlNames(appCfg *config.AppConfig) []string {
	names := make([]string, 0, len(appCfg.Crawls))
	for name := range appCfg.Crawls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
