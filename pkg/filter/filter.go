// Package filter decides whether a discovered URL may be fetched.
package filter

import (
	"context"
	"net/url"
)

// AdmissionFilter is one predicate in the admission chain.
// Implementations are shared by every worker of a crawl and must be safe for concurrent use.
type AdmissionFilter interface {
	// Name identifies the filter in logs, metrics and Filtered nodes
	Name() string
	// Allow reports whether u may be fetched. Side effects are limited to the filter's own state.
	Allow(ctx context.Context, u *url.URL) bool
}

// Suppressor marks filters whose rejections leave no node in the tree.
type Suppressor interface {
	SuppressesRejected() bool
}

// Reserver is implemented by filters that can record a URL as seen without evaluating it.
type Reserver interface {
	Reserve(rawURL string) bool
}

// Verdict is the chain's decision for one URL
type Verdict struct {
	Admitted bool
	// RejectedBy names the first filter that rejected the URL; empty when admitted
	RejectedBy string
	// Suppressed is true when the rejecting filter asks for the URL to be dropped silently
	Suppressed bool
}

// Chain evaluates filters left to right and stops at the first rejection.
type Chain struct {
	filters []AdmissionFilter
}

// NewChain assembles a chain. Callers should place cheap filters first.
func NewChain(filters ...AdmissionFilter) *Chain {
	kept := make([]AdmissionFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	return &Chain{filters: kept}
}

// Evaluate runs the chain against u
func (c *Chain) Evaluate(ctx context.Context, u *url.URL) Verdict {
	if c == nil {
		return Verdict{Admitted: true}
	}
	for _, f := range c.filters {
		if f.Allow(ctx, u) {
			continue
		}
		v := Verdict{RejectedBy: f.Name()}
		if s, ok := f.(Suppressor); ok {
			v.Suppressed = s.SuppressesRejected()
		}
		return v
	}
	return Verdict{Admitted: true}
}

// Allow reports whether every filter admits u
func (c *Chain) Allow(ctx context.Context, u *url.URL) bool {
	return c.Evaluate(ctx, u).Admitted
}

// Reserve registers rawURL with every Reserver in the chain.
// Roots bypass admission but must still occupy their slot so later links back to them are suppressed.
func (c *Chain) Reserve(rawURL string) {
	if c == nil {
		return
	}
	for _, f := range c.filters {
		if r, ok := f.(Reserver); ok {
			r.Reserve(rawURL)
		}
	}
}

// Names lists the filters in evaluation order
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}
