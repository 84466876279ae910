// Package scraper extracts channel metadata from channel pages using
// tolerant, best-effort heuristics.
package scraper

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/catalog"
	"github.com/openvideo/channelsearch/internal/fetch"
)

// PageFetcher retrieves a single document over HTTP.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Response, error)
}

// Scraper fetches a channel page and runs field extractors over it.
type Scraper struct {
	fetcher PageFetcher
	logger  *zap.Logger
}

// New builds a Scraper.
func New(fetcher PageFetcher, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{fetcher: fetcher, logger: logger}
}

// Scrape fetches url and extracts metadata from the page. A fetch
// failure (network error, timeout, non-2xx) returns an error wrapping
// catalog.ErrScrape; a page that fetches but yields no extractable
// fields returns an empty Metadata and no error. Field extraction is
// independent per field: one missing pattern never invalidates the rest.
func (s *Scraper) Scrape(ctx context.Context, url string) (catalog.Metadata, error) {
	resp, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Warn("channel page fetch failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return catalog.Metadata{}, fmt.Errorf("%w: get %s: %v", catalog.ErrScrape, url, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		s.logger.Warn("channel page parse failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return catalog.Metadata{}, fmt.Errorf("%w: parse %s: %v", catalog.ErrScrape, url, err)
	}

	return catalog.Metadata{
		Name:        firstString(doc, nameFromHeading, nameFromTitle),
		VideoCount:  firstInt(doc, videoCountFromCounter, videoCountFromText),
		JoinDate:    firstString(doc, joinDateFromText),
		LogoURL:     firstString(doc, logoFromImageClass),
		Description: firstString(doc, descriptionFromMeta, descriptionFromOpenGraph),
	}, nil
}
