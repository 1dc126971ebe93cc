package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrStateTransition is returned when a PageNode is asked to leave a final state.
var ErrStateTransition = errors.New("invalid page state transition")

// PageContent is what a Fetcher returns for one successfully retrieved document.
type PageContent struct {
	Title      string
	Links      []string // Raw href values in document order
	ImageCount int
	VideoCount int
	WordCount  int
	ByteSize   int64
	LoadTime   time.Duration
	Body       []byte // Raw document bytes, used for the content hash
}

// PageMetrics holds the per-page measurements recorded on a loaded node.
type PageMetrics struct {
	Title      string
	LinkCount  int
	ImageCount int
	VideoCount int
	WordCount  int
	PageSize   int64
	LoadTime   time.Duration
	PageHash   string
}

// PageNode is one page in the crawl tree.
// A node is mutated exactly once, by the task that owns it, and is read-only afterwards.
type PageNode struct {
	url        string
	depth      int
	state      PageState
	metrics    PageMetrics
	err        string
	filteredBy string
	children   []*PageNode
}

// NewPageNode creates a node in the NotAttempted state at the given path depth (roots are 0).
func NewPageNode(url string, depth int) *PageNode {
	return &PageNode{url: url, depth: depth, state: PageStateNotAttempted}
}

func (n *PageNode) URL() string           { return n.url }
func (n *PageNode) Depth() int            { return n.depth }
func (n *PageNode) State() PageState      { return n.state }
func (n *PageNode) Metrics() PageMetrics  { return n.metrics }
func (n *PageNode) ErrorMessage() string  { return n.err }
func (n *PageNode) FilteredBy() string    { return n.filteredBy }
func (n *PageNode) Children() []*PageNode { return n.children }
func (n *PageNode) HasChildren() bool     { return len(n.children) > 0 }

func (n *PageNode) transition(to PageState) error {
	if n.state.IsFinal() {
		return fmt.Errorf("%w: %s -> %s for %s", ErrStateTransition, n.state, to, n.url)
	}
	n.state = to
	return nil
}

// MarkFiltered records that the named admission filter rejected this node.
func (n *PageNode) MarkFiltered(filter string) error {
	if err := n.transition(PageStateFiltered); err != nil {
		return err
	}
	n.filteredBy = filter
	return nil
}

// MarkError records a terminal fetch failure.
func (n *PageNode) MarkError(cause error) error {
	if err := n.transition(PageStateError); err != nil {
		return err
	}
	if cause != nil {
		n.err = cause.Error()
	} else {
		n.err = "unknown error"
	}
	return nil
}

// Load freezes the node with its metrics and children in a single transition.
func (n *PageNode) Load(metrics PageMetrics, children []*PageNode) error {
	if err := n.transition(PageStateLoaded); err != nil {
		return err
	}
	n.metrics = metrics
	n.children = children
	return nil
}

// Walk visits n and its descendants depth-first in child order. Returning false stops descent below a node.
func (n *PageNode) Walk(visit func(*PageNode) bool) {
	if !visit(n) {
		return
	}
	for _, child := range n.children {
		child.Walk(visit)
	}
}

// Task is one unit of crawl work: a node to process and how many hops remain below it.
type Task struct {
	Node           *PageNode
	RemainingDepth int
}

// CrawlSummary holds metadata for one crawl invocation, written as YAML.
type CrawlSummary struct {
	CrawlID         string            `yaml:"crawl_id"`
	Name            string            `yaml:"name,omitempty"`
	RootURLs        []string          `yaml:"root_urls"`
	MaxDepth        int               `yaml:"max_depth"`
	Workers         int               `yaml:"workers"`
	CrawlStartTime  time.Time         `yaml:"crawl_start_time"`
	CrawlEndTime    time.Time         `yaml:"crawl_end_time"`
	Duration        string            `yaml:"duration"`
	TasksSubmitted  int64             `yaml:"tasks_submitted"`
	TasksCompleted  int64             `yaml:"tasks_completed"`
	PagesByState    map[PageState]int `yaml:"pages_by_state"`
	TotalBytes      int64             `yaml:"total_bytes"`
	TotalBytesHuman string            `yaml:"total_bytes_human"`
	Cancelled       bool              `yaml:"cancelled,omitempty"`
}
