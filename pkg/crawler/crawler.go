package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/webtree/pkg/filter"
	"github.com/Sriram-PR/webtree/pkg/metrics"
	"github.com/Sriram-PR/webtree/pkg/models"
	"github.com/Sriram-PR/webtree/pkg/parse"
	"github.com/Sriram-PR/webtree/pkg/queue"
	"github.com/Sriram-PR/webtree/pkg/utils"
)

// ErrAlreadyStarted is returned when Run is called more than once on the same Crawler.
var ErrAlreadyStarted = errors.New("crawler already started")

// Fetcher retrieves one page and returns its measurements and raw links.
// Implementations enforce their own per-request timeout.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, userAgent string) (*models.PageContent, error)
}

// State is the lifecycle of a single crawl invocation.
type State int32

const (
	StateIdle     State = iota // Run not called yet
	StateRunning               // Submitting root tasks
	StateDraining              // Roots submitted, waiting for the pending count to reach zero
	StateDone                  // Every task has returned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options tune a Crawler. Zero values mean: no child limit, no progress reports, no metrics.
type Options struct {
	UserAgent        string
	MaxChildren      int // Children kept per page, Filtered leaves included; <= 0 means unlimited
	ProgressInterval time.Duration
	Metrics          *metrics.CrawlRecorder
}

// Stats is a snapshot of the task counters.
type Stats struct {
	Submitted int64
	Completed int64
	Pending   int64
	Queued    int
}

// Crawler drives the fetch-and-expand process for a forest of root pages over a fixed worker pool.
// A Crawler runs once; build a new one for each crawl.
type Crawler struct {
	log     *logrus.Entry
	fetcher Fetcher
	chain   *filter.Chain
	opts    Options

	state atomic.Int32
	pq    *queue.TaskQueue

	// pending counts tasks from submission until their body, including child submissions, has returned
	pending   sync.WaitGroup
	submitted atomic.Int64
	completed atomic.Int64
}

// New creates a crawler. chain may be nil, in which case every discovered link is admitted.
func New(fetcher Fetcher, chain *filter.Chain, opts Options, log *logrus.Entry) *Crawler {
	return &Crawler{
		log:     log,
		fetcher: fetcher,
		chain:   chain,
		opts:    opts,
		pq:      queue.NewTaskQueue(),
	}
}

// NewRoots builds one NotAttempted node per root URL, in order.
func NewRoots(urls []string) []*models.PageNode {
	roots := make([]*models.PageNode, len(urls))
	for i, u := range urls {
		roots[i] = models.NewPageNode(u, 0)
	}
	return roots
}

// State reports where the crawl is in its lifecycle.
func (c *Crawler) State() State {
	return State(c.state.Load())
}

// Stats returns the current task counters.
func (c *Crawler) Stats() Stats {
	submitted := c.submitted.Load()
	completed := c.completed.Load()
	return Stats{
		Submitted: submitted,
		Completed: completed,
		Pending:   submitted - completed,
		Queued:    c.pq.Len(),
	}
}

// Run crawls roots down to maxDepth levels with workers goroutines and blocks until every task has returned.
// Page failures are recorded on their nodes, never returned. Run returns an error only for invalid
// arguments, a second call, or a cancelled ctx; in the last case unstarted tasks are drained and marked Error.
func (c *Crawler) Run(ctx context.Context, roots []*models.PageNode, maxDepth, workers int) error {
	if workers < 1 {
		return fmt.Errorf("%w: worker count must be at least 1, got %d", utils.ErrConfigValidation, workers)
	}
	if maxDepth < 1 {
		return fmt.Errorf("%w: max depth must be at least 1, got %d", utils.ErrConfigValidation, maxDepth)
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: no root pages to crawl", utils.ErrConfigValidation)
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	runLog := c.log.WithFields(logrus.Fields{"roots": len(roots), "max_depth": maxDepth, "workers": workers})
	runLog.Infof("Crawl starting with %d worker(s)...", workers)
	startTime := time.Now()

	var g errgroup.Group
	for i := 1; i <= workers; i++ {
		workerLog := c.log.WithField("worker_id", i)
		g.Go(func() error {
			c.worker(ctx, workerLog)
			return nil
		})
	}

	progressDone := make(chan struct{})
	if c.opts.ProgressInterval > 0 {
		go c.reportProgress(progressDone)
	}

	for _, root := range roots {
		c.chain.Reserve(root.URL())
	}
	for _, root := range roots {
		runLog.Debugf("Submitting root '%s' (remaining depth %d)", root.URL(), maxDepth-1)
		c.submit(&models.Task{Node: root, RemainingDepth: maxDepth - 1})
	}
	c.state.Store(int32(StateDraining))

	// Every task still pending holds the count above zero, so Wait returns only once no new work can appear.
	c.pending.Wait()
	c.pq.Close()
	_ = g.Wait()
	close(progressDone)
	c.state.Store(int32(StateDone))

	stats := c.Stats()
	runLog.Info("========================================================================")
	runLog.Info("CRAWL FINISHED")
	runLog.Infof("Duration:         %v", time.Since(startTime))
	runLog.Infof("Tasks:            %d submitted, %d completed", stats.Submitted, stats.Completed)
	runLog.Info("========================================================================")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrCrawlCancelled, err)
	}
	return nil
}

// submit counts a task as pending and hands it to the queue.
func (c *Crawler) submit(task *models.Task) {
	c.pending.Add(1)
	c.submitted.Add(1)
	c.opts.Metrics.TaskSubmitted()
	if !c.pq.Add(task) {
		// Unreachable while the submitter's own task is pending; undo rather than leak the count.
		c.log.WithField("url", task.Node.URL()).Error("Task queue closed while tasks are pending")
		c.finishTask(task.Node)
	}
}

func (c *Crawler) finishTask(node *models.PageNode) {
	c.completed.Add(1)
	c.opts.Metrics.PageFinished(string(node.State()))
	c.opts.Metrics.TaskCompleted()
	c.pending.Done()
}

// worker pops tasks until the queue is closed and drained.
func (c *Crawler) worker(ctx context.Context, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		task, ok := c.pq.Pop()
		if !ok {
			return
		}
		c.processTask(ctx, task, workerLog)
	}
}

// processTask runs one fetch-and-expand task. The deferred block always completes the task exactly once.
func (c *Crawler) processTask(ctx context.Context, task *models.Task, workerLog *logrus.Entry) {
	node := task.Node
	taskLog := workerLog.WithFields(logrus.Fields{"url": node.URL(), "depth": node.Depth()})
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in processTask")
			if !node.State().IsFinal() {
				_ = node.MarkError(fmt.Errorf("%w: %v", utils.ErrTaskPanic, r))
			}
		}
		c.finishTask(node)
	}()

	if ctx.Err() != nil {
		_ = node.MarkError(utils.ErrCrawlCancelled)
		taskLog.Debug("Task drained after cancellation")
		return
	}

	content, err := c.fetcher.Fetch(ctx, node.URL(), c.opts.UserAgent)
	if err != nil {
		category := utils.CategorizeError(err)
		c.opts.Metrics.FetchFailed(category)
		taskLog.WithFields(logrus.Fields{"category": category, "duration": time.Since(startTime).String()}).
			Warnf("Page fetch failed: %v", err)
		_ = node.MarkError(err)
		return
	}
	c.opts.Metrics.ObserveFetch(content.LoadTime)

	children, admitted := c.enumerateChildren(ctx, node, content.Links, taskLog)
	if err := node.Load(pageMetrics(content), children); err != nil {
		taskLog.Errorf("Could not record page: %v", err)
		return
	}

	submittedChildren := 0
	if task.RemainingDepth > 0 {
		for _, child := range admitted {
			c.submit(&models.Task{Node: child, RemainingDepth: task.RemainingDepth - 1})
			submittedChildren++
		}
	}

	taskLog.WithFields(logrus.Fields{
		"title":    content.Title,
		"children": len(children),
		"queued":   submittedChildren,
		"duration": time.Since(startTime).String(),
	}).Info("Page loaded")
}

// enumerateChildren turns the page's links into child nodes in document order.
// Links rejected by a suppressing filter are dropped. Other rejections become Filtered leaves that take
// a child slot like any other node. Enumeration stops once the page holds MaxChildren children.
func (c *Crawler) enumerateChildren(ctx context.Context, parent *models.PageNode, hrefs []string, taskLog *logrus.Entry) (children, admitted []*models.PageNode) {
	links := parse.ExtractLinks(parent.URL(), hrefs)
	childDepth := parent.Depth() + 1

	for _, link := range links {
		if c.opts.MaxChildren > 0 && len(children) >= c.opts.MaxChildren {
			taskLog.Debugf("Child limit %d reached, dropping remaining links", c.opts.MaxChildren)
			break
		}
		u, err := url.Parse(link)
		if err != nil {
			continue
		}

		verdict := c.chain.Evaluate(ctx, u)
		if verdict.Suppressed {
			taskLog.WithField("link", link).Tracef("Link suppressed by %s filter", verdict.RejectedBy)
			continue
		}

		child := models.NewPageNode(link, childDepth)
		if !verdict.Admitted {
			_ = child.MarkFiltered(verdict.RejectedBy)
			c.opts.Metrics.PageFinished(string(models.PageStateFiltered))
			taskLog.WithField("link", link).Debugf("Link rejected by %s filter", verdict.RejectedBy)
		} else {
			admitted = append(admitted, child)
		}
		children = append(children, child)
	}
	return children, admitted
}

func pageMetrics(content *models.PageContent) models.PageMetrics {
	return models.PageMetrics{
		Title:      content.Title,
		LinkCount:  len(content.Links),
		ImageCount: content.ImageCount,
		VideoCount: content.VideoCount,
		WordCount:  content.WordCount,
		PageSize:   content.ByteSize,
		LoadTime:   content.LoadTime,
		PageHash:   utils.PageHash(content.Body),
	}
}

func (c *Crawler) reportProgress(done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := c.Stats()
			c.log.WithFields(logrus.Fields{
				"state":     c.State().String(),
				"submitted": stats.Submitted,
				"completed": stats.Completed,
				"pending":   stats.Pending,
				"queued":    stats.Queued,
			}).Info("Crawl Progress")
		}
	}
}
