package filter

import (
	"context"
	"net/url"
	"regexp"

	"github.com/Sriram-PR/webtree/pkg/utils"
)

// PatternFilter rejects URLs matching any exclusion pattern.
type PatternFilter struct {
	patterns []*regexp.Regexp
}

// NewPatternFilter compiles patterns. Returns nil, nil when there is nothing to exclude.
func NewPatternFilter(patterns []string) (*PatternFilter, error) {
	compiled, err := utils.CompileRegexPatterns(patterns)
	if err != nil {
		return nil, err
	}
	if len(compiled) == 0 {
		return nil, nil
	}
	return &PatternFilter{patterns: compiled}, nil
}

func (f *PatternFilter) Name() string { return "pattern" }

func (f *PatternFilter) Allow(_ context.Context, u *url.URL) bool {
	s := u.String()
	for _, re := range f.patterns {
		if re.MatchString(s) {
			return false
		}
	}
	return true
}
