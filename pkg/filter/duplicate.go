package filter

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webtree/pkg/parse"
	"github.com/Sriram-PR/webtree/pkg/storage"
)

// DuplicateFilter admits a URL only the first time its duplicate key is seen in the crawl.
type DuplicateFilter struct {
	store storage.VisitedStore
	log   *logrus.Entry
}

// NewDuplicateFilter creates a filter over store. The store belongs to one crawl.
func NewDuplicateFilter(store storage.VisitedStore, log *logrus.Entry) *DuplicateFilter {
	return &DuplicateFilter{store: store, log: log}
}

func (f *DuplicateFilter) Name() string { return "duplicate" }

// SuppressesRejected implements Suppressor: repeated URLs never become nodes.
func (f *DuplicateFilter) SuppressesRejected() bool { return true }

// Allow atomically reserves u's duplicate key.
func (f *DuplicateFilter) Allow(_ context.Context, u *url.URL) bool {
	return f.Reserve(u.String())
}

// Reserve marks rawURL as seen and reports whether this call was the first.
// A store failure admits the URL.
func (f *DuplicateFilter) Reserve(rawURL string) bool {
	key := parse.DuplicateKey(rawURL)
	added, err := f.store.MarkVisited(key)
	if err != nil {
		f.log.WithField("key", key).Warnf("Visited store error, admitting URL: %v", err)
		return true
	}
	return added
}
