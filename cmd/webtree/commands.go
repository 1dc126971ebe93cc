package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/webtree/pkg/config"
	"github.com/Sriram-PR/webtree/pkg/orchestrate"
)

type crawlFlags struct {
	urls           []string
	maxDepth       int
	threads        int
	maxLinks       int
	omitDuplicates bool
	ignoreRobots   bool
	spoofBrowser   bool
	userAgent      string
	exclude        []string
	output         string
	format         string
	summary        string
	visitedLog     string
	visitedStore   string
}

// toCrawlConfig maps the flags onto an unvalidated CrawlConfig.
func (f *crawlFlags) toCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		RootURLs:        f.urls,
		MaxDepth:        f.maxDepth,
		NumWorkers:      f.threads,
		MaxLinksPerPage: f.maxLinks,
		OmitDuplicates:  f.omitDuplicates,
		IgnoreRobots:    f.ignoreRobots,
		SpoofUserAgent:  f.spoofBrowser,
		UserAgent:       f.userAgent,
		ExcludePatterns: f.exclude,
		OutputFile:      f.output,
		OutputFormat:    f.format,
		SummaryFile:     f.summary,
		VisitedLogFile:  f.visitedLog,
	}
}

func newCrawlCmd(opts *globalOptions, stderr io.Writer) *cobra.Command {
	flags := &crawlFlags{}

	cmd := &cobra.Command{
		Use:   "crawl -u URL[,URL...]",
		Short: "Crawl one or more root URLs given on the command line",
		Example: `  webtree crawl -u example.com
  webtree crawl -u https://a.example,https://b.example -d 3 -t 8 -s -o tree.json
  webtree crawl -u example.com --format tree`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger(opts.logLevel, stderr)
			appCfg, err := loadAppConfig(opts.configFile, log)
			if err != nil {
				return err
			}
			if flags.visitedStore != "" {
				appCfg.VisitedStore = flags.visitedStore
				if _, err := appCfg.Validate(); err != nil {
					return err
				}
			}

			crawlCfg := flags.toCrawlConfig()
			if !cmd.Flags().Changed("thread-count") {
				crawlCfg.NumWorkers = 0 // Inherit num_workers from the config file
			}
			warnings, err := crawlCfg.Validate()
			if err != nil {
				return err
			}
			for _, w := range warnings {
				log.Warn(w)
			}
			appCfg.Crawls = map[string]config.CrawlConfig{cliCrawlName: crawlCfg}

			return executeCrawls(appCfg, []string{cliCrawlName}, opts.metricsAddr, log)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.urls, "urls", "u", nil, "Root URLs, comma separated (https:// is assumed when no scheme is given)")
	f.IntVarP(&flags.maxDepth, "max-depth", "d", config.DefaultMaxDepth, fmt.Sprintf("Maximum crawl depth (1-%d)", config.MaxAllowedDepth))
	f.IntVarP(&flags.threads, "thread-count", "t", config.DefaultNumWorkers, fmt.Sprintf("Number of worker goroutines (1-%d)", config.MaxAllowedWorkers))
	f.IntVarP(&flags.maxLinks, "max-links", "l", config.DefaultMaxLinksPerPage, "Maximum children kept per page")
	f.BoolVarP(&flags.omitDuplicates, "omit-duplicates", "s", false, "Fetch each URL at most once per crawl")
	f.BoolVarP(&flags.ignoreRobots, "ignore-robots-txt", "r", false, "Do not consult robots.txt")
	f.BoolVarP(&flags.spoofBrowser, "spoof-browser", "b", false, "Send a browser User-Agent instead of the crawler's")
	f.StringVar(&flags.userAgent, "user-agent", "", "Explicit User-Agent, overrides --spoof-browser")
	f.StringSliceVar(&flags.exclude, "exclude", nil, "Regex patterns for URLs never to fetch")
	f.StringVarP(&flags.output, "output", "o", "", "Output file (default stdout)")
	f.StringVar(&flags.format, "format", config.FormatJSON, "Output format: json or tree")
	f.StringVar(&flags.summary, "summary", "", "Write a YAML crawl summary to this file")
	f.StringVar(&flags.visitedLog, "visited-log", "", "Write the duplicate keys seen to this file")
	f.StringVar(&flags.visitedStore, "visited-store", "", "Visited URL store backend: memory or badger")
	_ = cmd.MarkFlagRequired("urls")

	return cmd
}

func newRunCmd(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var crawls []string
	var all bool

	cmd := &cobra.Command{
		Use:   "run --crawls NAME[,NAME...] | --all",
		Short: "Run named crawls from the config file in parallel",
		Example: `  webtree run --config webtree.yaml --crawls docs
  webtree run --config webtree.yaml --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile == "" {
				return fmt.Errorf("--config is required for run")
			}
			if !all && len(crawls) == 0 {
				return fmt.Errorf("one of --crawls or --all is required")
			}

			log := setupLogger(opts.logLevel, stderr)
			appCfg, err := loadAppConfig(opts.configFile, log)
			if err != nil {
				return err
			}

			names := crawls
			if all {
				names = orchestrate.GetAllCrawlNames(appCfg)
				log.Infof("All crawls mode: found %d crawls", len(names))
			}
			if len(names) == 0 {
				return fmt.Errorf("no crawls defined in %s", opts.configFile)
			}
			if err := orchestrate.ValidateCrawlNames(appCfg, names); err != nil {
				return err
			}

			return executeCrawls(appCfg, names, opts.metricsAddr, log)
		},
	}

	cmd.Flags().StringSliceVar(&crawls, "crawls", nil, "Comma-separated crawl names from the config")
	cmd.Flags().BoolVar(&all, "all", false, "Run every crawl in the config")
	return cmd
}

func newValidateCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile == "" {
				return fmt.Errorf("--config is required for validate")
			}
			if code := doValidate(opts.configFile, name, stdout, stderr); code != 0 {
				return fmt.Errorf("configuration is invalid")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "crawl", "", "Crawl name to validate (validates all if empty)")
	return cmd
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, name string, stdout, stderr io.Writer) int {
	appCfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, _ := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}

	names := orchestrate.GetAllCrawlNames(appCfg)
	if name != "" {
		if _, ok := appCfg.Crawls[name]; !ok {
			fmt.Fprintf(stderr, "Error: crawl '%s' not found in config\n", name)
			return 1
		}
		names = []string{name}
	}

	hasError := false
	for _, n := range names {
		crawlCfg := appCfg.Crawls[n]
		crawlWarnings, err := crawlCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", n, err)
			hasError = true
			continue
		}
		for _, w := range crawlWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", n, w)
		}
		fmt.Fprintf(stdout, "OK: [%s] %d root(s), depth %d, %s\n", n, len(crawlCfg.RootURLs), crawlCfg.MaxDepth, strings.Join(crawlCfg.RootURLs, " "))
	}
	if hasError {
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
