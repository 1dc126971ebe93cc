// Package metrics exposes crawl progress as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "webtree"

// Collector owns a private registry so several crawlers (and tests) never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	PagesTotal     *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	TasksSubmitted *prometheus.CounterVec
	PendingTasks   *prometheus.GaugeVec
	RobotsHosts    *prometheus.GaugeVec
}

// New registers every crawl collector on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		PagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Pages that reached a final state, by state",
			},
			[]string{"crawl", "state"},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Failed page fetches by error category",
			},
			[]string{"crawl", "category"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of successful page fetches in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"crawl"},
		),
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_submitted_total",
				Help:      "Fetch-and-expand tasks handed to the worker pool",
			},
			[]string{"crawl"},
		),
		PendingTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_tasks",
				Help:      "Tasks submitted but not yet completed",
			},
			[]string{"crawl"},
		),
		RobotsHosts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "robots_cache_hosts",
				Help:      "Hosts with a cached robots.txt record",
			},
			[]string{"crawl"},
		),
	}
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ForCrawl binds the collectors to one crawl name. A nil Collector yields a nil recorder, which is a no-op.
func (c *Collector) ForCrawl(name string) *CrawlRecorder {
	if c == nil {
		return nil
	}
	return &CrawlRecorder{c: c, crawl: name}
}

// CrawlRecorder records events for a single crawl. All methods are safe on a nil receiver.
type CrawlRecorder struct {
	c     *Collector
	crawl string
}

func (r *CrawlRecorder) PageFinished(state string) {
	if r == nil {
		return
	}
	r.c.PagesTotal.WithLabelValues(r.crawl, state).Inc()
}

func (r *CrawlRecorder) FetchFailed(category string) {
	if r == nil {
		return
	}
	r.c.FetchErrors.WithLabelValues(r.crawl, category).Inc()
}

func (r *CrawlRecorder) ObserveFetch(d time.Duration) {
	if r == nil {
		return
	}
	r.c.FetchDuration.WithLabelValues(r.crawl).Observe(d.Seconds())
}

// TaskSubmitted counts a submission and raises the pending gauge.
func (r *CrawlRecorder) TaskSubmitted() {
	if r == nil {
		return
	}
	r.c.TasksSubmitted.WithLabelValues(r.crawl).Inc()
	r.c.PendingTasks.WithLabelValues(r.crawl).Inc()
}

func (r *CrawlRecorder) TaskCompleted() {
	if r == nil {
		return
	}
	r.c.PendingTasks.WithLabelValues(r.crawl).Dec()
}

func (r *CrawlRecorder) SetRobotsHosts(n int) {
	if r == nil {
		return
	}
	r.c.RobotsHosts.WithLabelValues(r.crawl).Set(float64(n))
}

// Serve exposes the registry on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Metrics endpoint listening on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Metrics server shutdown: %v", err)
		}
		return nil
	}
}
