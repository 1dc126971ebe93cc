package crawler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/webtree/pkg/config"
	"github.com/Sriram-PR/webtree/pkg/models"
	"github.com/Sriram-PR/webtree/pkg/utils"
)

// loadedPageJSON keeps the field order of the JSON report stable.
type loadedPageJSON struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	LinkCount     int    `json:"linkCount"`
	ImageCount    int    `json:"imageCount"`
	VideoCount    int    `json:"videoCount"`
	WordCount     int    `json:"wordCount"`
	PageSize      int64  `json:"pageSize"`
	LoadTimeNanos int64  `json:"loadTimeNanos"`
	PageHash      string `json:"pageHash"`
	Children      []any  `json:"children,omitempty"`
}

type failedPageJSON struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type reportJSON struct {
	Webpages []any `json:"webpages"`
}

// pageJSON converts a node for the JSON report. Only Loaded children are included.
func pageJSON(n *models.PageNode) any {
	switch n.State() {
	case models.PageStateLoaded:
		m := n.Metrics()
		page := loadedPageJSON{
			URL:           n.URL(),
			Title:         m.Title,
			LinkCount:     m.LinkCount,
			ImageCount:    m.ImageCount,
			VideoCount:    m.VideoCount,
			WordCount:     m.WordCount,
			PageSize:      m.PageSize,
			LoadTimeNanos: m.LoadTime.Nanoseconds(),
			PageHash:      m.PageHash,
		}
		for _, child := range n.Children() {
			if child.State() == models.PageStateLoaded {
				page.Children = append(page.Children, pageJSON(child))
			}
		}
		return page
	case models.PageStateError:
		return failedPageJSON{URL: n.URL(), Error: n.ErrorMessage()}
	case models.PageStateFiltered:
		return failedPageJSON{URL: n.URL(), Error: fmt.Sprintf("blocked by %s filter", n.FilteredBy())}
	default:
		return failedPageJSON{URL: n.URL(), Error: "not attempted"}
	}
}

// WriteJSON renders the forest as {"webpages": [...]} with two-space indentation.
func WriteJSON(w io.Writer, roots []*models.PageNode) error {
	report := reportJSON{Webpages: make([]any, 0, len(roots))}
	for _, root := range roots {
		report.Webpages = append(report.Webpages, pageJSON(root))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// treeLabel describes one node on a single line of the text tree.
func treeLabel(n *models.PageNode) string {
	switch n.State() {
	case models.PageStateLoaded:
		m := n.Metrics()
		return fmt.Sprintf("%s [%q, %d links, %d words, %s]", n.URL(), m.Title, m.LinkCount, m.WordCount, humanize.Bytes(uint64(m.PageSize)))
	case models.PageStateError:
		return fmt.Sprintf("%s [error: %s]", n.URL(), n.ErrorMessage())
	case models.PageStateFiltered:
		return fmt.Sprintf("%s [filtered: %s]", n.URL(), n.FilteredBy())
	default:
		return fmt.Sprintf("%s [not attempted]", n.URL())
	}
}

// WriteTree renders every node of the forest, including unloaded leaves, as an indented text tree.
func WriteTree(w io.Writer, roots []*models.PageNode) error {
	return utils.WriteTree(w, roots, treeLabel, (*models.PageNode).Children)
}

// WriteOutput writes the crawl result in format to path, or to stdout when path is empty or "-".
func WriteOutput(path, format string, roots []*models.PageNode, log *logrus.Entry) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("%w: creating output file '%s': %w", utils.ErrFilesystem, path, err)
		}
		defer f.Close()
		w = f
	}

	var err error
	switch format {
	case config.FormatTree:
		err = WriteTree(w, roots)
	case config.FormatJSON, "":
		err = WriteJSON(w, roots)
	default:
		return fmt.Errorf("%w: unknown output format '%s'", utils.ErrConfigValidation, format)
	}
	if err != nil {
		return fmt.Errorf("%w: writing %s output: %w", utils.ErrFilesystem, format, err)
	}

	if w != os.Stdout {
		log.Infof("Wrote %s output for %d root(s) to %s", format, len(roots), path)
	}
	return nil
}

// SummaryInput carries what BuildSummary cannot derive from the tree.
type SummaryInput struct {
	CrawlID   string
	Name      string
	MaxDepth  int
	Workers   int
	Start     time.Time
	End       time.Time
	Stats     Stats
	Cancelled bool
}

// BuildSummary counts every node of the forest by state and totals the bytes of loaded pages.
func BuildSummary(in SummaryInput, roots []*models.PageNode) models.CrawlSummary {
	summary := models.CrawlSummary{
		CrawlID:        in.CrawlID,
		Name:           in.Name,
		MaxDepth:       in.MaxDepth,
		Workers:        in.Workers,
		CrawlStartTime: in.Start,
		CrawlEndTime:   in.End,
		Duration:       in.End.Sub(in.Start).Round(time.Millisecond).String(),
		TasksSubmitted: in.Stats.Submitted,
		TasksCompleted: in.Stats.Completed,
		PagesByState:   make(map[models.PageState]int, len(models.AllPageStates())),
		Cancelled:      in.Cancelled,
	}
	for _, root := range roots {
		summary.RootURLs = append(summary.RootURLs, root.URL())
		root.Walk(func(n *models.PageNode) bool {
			summary.PagesByState[n.State()]++
			if n.State() == models.PageStateLoaded {
				summary.TotalBytes += n.Metrics().PageSize
			}
			return true
		})
	}
	summary.TotalBytesHuman = humanize.Bytes(uint64(summary.TotalBytes))
	return summary
}

// WriteSummaryYAML writes summary to path.
func WriteSummaryYAML(path string, summary models.CrawlSummary, log *logrus.Entry) error {
	data, err := yaml.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("failed to marshal crawl summary to YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing summary file '%s': %w", utils.ErrFilesystem, path, err)
	}
	log.Infof("Wrote crawl summary (%d pages loaded, %s) to %s",
		summary.PagesByState[models.PageStateLoaded], summary.TotalBytesHuman, path)
	return nil
}
