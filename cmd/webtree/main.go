package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/webtree/pkg/config"
	"github.com/Sriram-PR/webtree/pkg/metrics"
	"github.com/Sriram-PR/webtree/pkg/orchestrate"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cliCrawlName names the single crawl assembled from command-line flags.
const cliCrawlName = "cli"

// errCrawlFailed signals a non-zero exit after the failure has already been logged.
var errCrawlFailed = errors.New("one or more crawls failed")

type globalOptions struct {
	configFile  string
	logLevel    string
	metricsAddr string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "webtree",
		Short: "webtree - bounded, polite, concurrent web crawler",
		Long: `webtree fetches pages starting from one or more root URLs, follows their links
down to a bounded depth and reports a tree of per-page metrics (title, link, image and
video counts, word count, size and content hash).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. localhost:9090")

	rootCmd.AddCommand(
		newCrawlCmd(opts, stderr),
		newRunCmd(opts, stderr),
		newValidateCmd(opts, stdout, stderr),
		newVersionCmd(stdout),
	)
	return rootCmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "webtree %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// loadAppConfig loads configPath, or starts from an empty config when configPath is empty, and applies defaults.
func loadAppConfig(configPath string, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg := &config.AppConfig{}
	if configPath != "" {
		log.Infof("Loading configuration from %s", configPath)
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		appCfg = loaded
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	return appCfg, nil
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Debugf("Global Config: Workers:%d, MaxReqs:%d, MaxReqPerHost:%d, VisitedStore:%s",
		appCfg.NumWorkers, appCfg.MaxRequests, appCfg.MaxRequestsPerHost, appCfg.VisitedStore)
	log.Debugf("Global Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Debugf("Global Config Timeouts: SemaphoreAcquire:%v, GlobalCrawl:%v, HTTP:%v",
		appCfg.SemaphoreAcquireTimeout, appCfg.GlobalCrawlTimeout, appCfg.HTTPClientSettings.Timeout)
}

// signalContext cancels the returned context on the first SIGINT/SIGTERM and exits on the second.
func signalContext(parent context.Context, log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Draining pending pages, send again to force exit...", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// executeCrawls runs the named crawls of appCfg and reports whether all of them succeeded.
// A crawl stopped by the user is not a failure; one stopped by the global timeout is.
func executeCrawls(appCfg *config.AppConfig, names []string, metricsAddr string, log *logrus.Logger) error {
	if metricsAddr == "" {
		metricsAddr = appCfg.MetricsAddr
	}
	logAppConfig(appCfg, log)

	ctx, stop := signalContext(context.Background(), log)
	defer stop()

	var collector *metrics.Collector
	if metricsAddr != "" {
		collector = metrics.New()
		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, metricsAddr, collector.Registry(), log.WithField("component", "metrics")); err != nil {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	orch := orchestrate.NewOrchestrator(appCfg, names, collector, log.WithField("component", "orchestrator"))
	results := orch.Run(ctx)

	failed := false
	for _, r := range results {
		switch {
		case r.Success:
		case errors.Is(r.Error, context.Canceled):
			log.Warnf("Crawl '%s' cancelled gracefully.", r.Name)
		case errors.Is(r.Error, context.DeadlineExceeded):
			log.Errorf("Crawl '%s' timed out (global timeout).", r.Name)
			failed = true
		default:
			failed = true
		}
	}
	if failed {
		return errCrawlFailed
	}
	return nil
}
