package fetch

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/webtree/pkg/models"
	"github.com/Sriram-PR/webtree/pkg/utils"
)

var imageSrcPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg)`)

// PageFetcher retrieves an HTML document and measures it
type PageFetcher struct {
	fetcher  *Fetcher
	maxBytes int64
}

// NewPageFetcher wraps fetcher; bodies larger than maxBytes fail the page (0 = unlimited)
func NewPageFetcher(fetcher *Fetcher, maxBytes int64) *PageFetcher {
	return &PageFetcher{fetcher: fetcher, maxBytes: maxBytes}
}

// Fetch retrieves rawURL with the given user agent and extracts its metrics and raw links.
func (pf *PageFetcher) Fetch(ctx context.Context, rawURL, userAgent string) (*models.PageContent, error) {
	resp, err := pf.fetcher.Get(ctx, rawURL, userAgent, pf.maxBytes)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, fmt.Errorf("%w: content type '%s'", utils.ErrNotHTML, contentType)
	}

	content, err := ParseHTML(resp.Body, contentType)
	if err != nil {
		return nil, err
	}
	content.LoadTime = resp.Elapsed
	return content, nil
}

// ParseHTML measures an HTML document. contentType drives charset detection and may be empty.
func ParseHTML(body []byte, contentType string) (*models.PageContent, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML charset decoding: %w", utils.ErrParsing, err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML document: %w", utils.ErrParsing, err)
	}

	content := &models.PageContent{
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		VideoCount: doc.Find("video").Length(),
		WordCount:  len(strings.Fields(doc.Find("body").Text())),
		ByteSize:   int64(len(body)),
		Body:       body,
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		content.Links = append(content.Links, href)
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); imageSrcPattern.MatchString(src) {
			content.ImageCount++
		}
	})

	return content, nil
}

func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return true // Let the parser decide
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
