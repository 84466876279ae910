// Package catalog defines the channel catalog domain types and the
// collaborator interfaces the ingestion pipeline and the API consume.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Candidate is a channel discovered in the sitemap but not yet known to
// be indexed. Handle is the last path segment of the URL.
type Candidate struct {
	URL          string
	Handle       string
	LastModified *string
}

// Metadata holds the fields scraped from a channel page. Every field is
// optional: extraction is best-effort and a page with no recognizable
// markup yields an all-nil Metadata.
type Metadata struct {
	Name        *string
	VideoCount  *int
	JoinDate    *string
	LogoURL     *string
	Description *string
}

// Channel is one catalog row, keyed by its unique handle.
type Channel struct {
	ID           int64     `json:"-"`
	Handle       string    `json:"handle"`
	URL          string    `json:"url"`
	Name         *string   `json:"name"`
	VideoCount   *int      `json:"video_count"`
	JoinDate     *string   `json:"join_date"`
	LastModified *string   `json:"last_modified"`
	LogoURL      *string   `json:"logo_url"`
	Description  *string   `json:"description"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// Suggestion is one autocomplete row. Text is the channel name when
// present, else the handle.
type Suggestion struct {
	Text       string `json:"text"`
	Handle     string `json:"handle"`
	VideoCount *int   `json:"video_count"`
}

// Stats aggregates the catalog. AvgVideosPerChannel is computed only
// over rows with a non-null video count, rounded to one decimal place.
type Stats struct {
	TotalChannels       int64   `json:"total_channels"`
	TotalVideos         int64   `json:"total_videos"`
	AvgVideosPerChannel float64 `json:"avg_videos_per_channel"`
}

// MarshalJSON renders the average with exactly one decimal place, so a
// whole-number average reads "100.0" rather than "100".
func (s Stats) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(
		`{"total_channels":%d,"total_videos":%d,"avg_videos_per_channel":%s}`,
		s.TotalChannels,
		s.TotalVideos,
		strconv.FormatFloat(s.AvgVideosPerChannel, 'f', 1, 64),
	)), nil
}

// RunReport accumulates the counters of one ingestion run.
type RunReport struct {
	Indexed        int `json:"indexed"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
	TotalProcessed int `json:"total_processed"`
}

// SitemapSource discovers channel candidates, in document order.
type SitemapSource interface {
	Fetch(ctx context.Context) ([]Candidate, error)
}

// Scraper extracts metadata from a single channel page. A failed page
// fetch (network error, timeout, non-2xx) returns an error; a page that
// fetches but yields nothing extractable returns an empty Metadata.
type Scraper interface {
	Scrape(ctx context.Context, url string) (Metadata, error)
}

// Store persists channels and answers retrieval queries.
type Store interface {
	Exists(ctx context.Context, handle string) (bool, error)
	Upsert(ctx context.Context, candidate Candidate, meta Metadata) (int64, error)
	Search(ctx context.Context, query string, limit int) ([]Channel, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error)
	Stats(ctx context.Context) (Stats, error)
	ListAll(ctx context.Context) ([]Channel, error)
}
