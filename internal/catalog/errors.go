package catalog

import "errors"

// Sentinel errors classifying ingestion and retrieval failures.
// ErrFetch covers the sitemap document itself and is fatal to a run;
// ErrScrape covers a single channel page and is recovered per item;
// ErrStore covers the relational backend.
var (
	ErrFetch  = errors.New("sitemap fetch failed")
	ErrScrape = errors.New("page scrape failed")
	ErrStore  = errors.New("store operation failed")
)
