// Package pipeline orchestrates bounded ingestion runs: sitemap
// discovery, dedup against the store, rate-limited scraping, and
// idempotent upserts.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openvideo/channelsearch/internal/catalog"
	"github.com/openvideo/channelsearch/internal/metrics"
)

// outcome is the terminal state of one candidate within a run. Making
// the per-item result a value, not an escaping error, is what keeps a
// single bad page from ever aborting the run.
type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeSkipped
	outcomeErrored
)

func (o outcome) String() string {
	switch o {
	case outcomeIndexed:
		return "indexed"
	case outcomeSkipped:
		return "skipped"
	default:
		return "errored"
	}
}

// Pipeline runs bounded, strictly sequential ingestion passes.
type Pipeline struct {
	source  catalog.SitemapSource
	scraper catalog.Scraper
	store   catalog.Store
	logger  *zap.Logger
}

// New constructs a Pipeline.
func New(source catalog.SitemapSource, scraper catalog.Scraper, store catalog.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:  source,
		scraper: scraper,
		store:   store,
		logger:  logger,
	}
}

// Run fetches the candidate set, takes the first maxItems in document
// order, and processes them one at a time. Scrape calls are spaced by
// delay; skips consume no delay. A sitemap failure is fatal and returns
// an error with no counters; every per-item failure is absorbed into
// the Errors counter. Re-running is safe: already-indexed handles are
// skipped, so repeated bounded runs converge on full coverage.
func (p *Pipeline) Run(ctx context.Context, maxItems int, delay time.Duration) (catalog.RunReport, error) {
	start := time.Now()

	candidates, err := p.source.Fetch(ctx)
	if err != nil {
		metrics.ObserveRun("fatal", time.Since(start))
		return catalog.RunReport{}, err
	}
	if maxItems > 0 && len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}

	limiter := newScrapeLimiter(delay)

	p.logger.Info("ingestion run started",
		zap.Int("candidates", len(candidates)),
		zap.Duration("delay", delay),
	)

	var report catalog.RunReport
	for _, candidate := range candidates {
		result := p.processOne(ctx, limiter, candidate)
		switch result {
		case outcomeIndexed:
			report.Indexed++
		case outcomeSkipped:
			report.Skipped++
		case outcomeErrored:
			report.Errors++
		}
		report.TotalProcessed++
		metrics.ObserveItem(result.String())
	}

	p.logger.Info("ingestion run finished",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
		zap.Int("total_processed", report.TotalProcessed),
	)
	metrics.ObserveRun("completed", time.Since(start))
	return report, nil
}

func (p *Pipeline) processOne(ctx context.Context, limiter *rate.Limiter, candidate catalog.Candidate) outcome {
	exists, err := p.store.Exists(ctx, candidate.Handle)
	if err != nil {
		p.logger.Error("existence check failed",
			zap.String("handle", candidate.Handle),
			zap.Error(err),
		)
		return outcomeErrored
	}
	if exists {
		p.logger.Debug("already indexed", zap.String("handle", candidate.Handle))
		return outcomeSkipped
	}

	if err := limiter.Wait(ctx); err != nil {
		p.logger.Error("rate limit wait failed",
			zap.String("handle", candidate.Handle),
			zap.Error(err),
		)
		return outcomeErrored
	}

	meta, err := p.scraper.Scrape(ctx, candidate.URL)
	if err != nil {
		p.logger.Warn("scrape failed",
			zap.String("handle", candidate.Handle),
			zap.String("url", candidate.URL),
			zap.Error(err),
		)
		return outcomeErrored
	}

	if _, err := p.store.Upsert(ctx, candidate, meta); err != nil {
		p.logger.Error("upsert failed",
			zap.String("handle", candidate.Handle),
			zap.Error(err),
		)
		return outcomeErrored
	}

	p.logger.Debug("channel indexed", zap.String("handle", candidate.Handle))
	return outcomeIndexed
}

// newScrapeLimiter spaces scrape calls by delay. The first call passes
// immediately; skips never touch the limiter.
func newScrapeLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
