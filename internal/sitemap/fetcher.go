// Package sitemap discovers channel candidates from the remote
// channels sitemap document.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/catalog"
	"github.com/openvideo/channelsearch/internal/fetch"
)

// PageFetcher retrieves a single document over HTTP.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Response, error)
}

// Fetcher pulls the sitemap once per call and parses it into candidates.
type Fetcher struct {
	fetcher PageFetcher
	url     string
	logger  *zap.Logger
}

// New builds a sitemap Fetcher targeting the given sitemap URL.
func New(fetcher PageFetcher, url string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{fetcher: fetcher, url: url, logger: logger}
}

// urlset mirrors the sitemaps.org urlset document.
type urlset struct {
	XMLName xml.Name   `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Fetch retrieves the sitemap and returns its candidates in document
// order. Entries without a <loc> are dropped; no dedup happens here.
// Any failure is fatal to the caller's run.
func (f *Fetcher) Fetch(ctx context.Context) ([]catalog.Candidate, error) {
	resp, err := f.fetcher.Fetch(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", catalog.ErrFetch, f.url, err)
	}

	var doc urlset
	if err := xml.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse sitemap: %v", catalog.ErrFetch, err)
	}

	candidates := make([]catalog.Candidate, 0, len(doc.URLs))
	for _, entry := range doc.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		var lastMod *string
		if lm := strings.TrimSpace(entry.LastMod); lm != "" {
			lastMod = &lm
		}
		candidates = append(candidates, catalog.Candidate{
			URL:          loc,
			Handle:       deriveHandle(loc),
			LastModified: lastMod,
		})
	}

	f.logger.Info("sitemap fetched",
		zap.String("url", f.url),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// deriveHandle strips trailing slashes and takes the final path segment.
// A URL with no remaining segment yields the empty string, which the
// store treats as an ordinary (degenerate) key.
func deriveHandle(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
