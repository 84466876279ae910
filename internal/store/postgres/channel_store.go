// Package postgres provides the Postgres-backed channel catalog store.
package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvideo/channelsearch/internal/catalog"
)

// ChannelStoreConfig controls the Postgres connection pool.
type ChannelStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ChannelStore persists channels in Postgres, one row per handle, and
// answers the retrieval queries. The weighted tsvector that backs
// ranked search is recomputed inside every write statement, so it can
// never be observed stale relative to its row.
type ChannelStore struct {
	pool pgxPool
}

// NewChannelStore creates a Postgres-backed ChannelStore using the
// provided config.
func NewChannelStore(ctx context.Context, cfg ChannelStoreConfig) (*ChannelStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ChannelStore{pool: pool}, nil
}

// NewChannelStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewChannelStoreWithPool(pool pgxPool) (*ChannelStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ChannelStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ChannelStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InitSchema provisions the channels table, the unique handle
// constraint, the GIN index backing ranked search, and the video_count
// index. Safe to run repeatedly.
func (s *ChannelStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			id BIGSERIAL PRIMARY KEY,
			handle TEXT UNIQUE NOT NULL,
			url TEXT NOT NULL,
			name TEXT,
			video_count INTEGER,
			join_date TEXT,
			last_modified TEXT,
			logo_url TEXT,
			description TEXT,
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			fts_document TSVECTOR NOT NULL DEFAULT ''::tsvector
		)`,
		`CREATE INDEX IF NOT EXISTS channels_fts_idx ON channels USING GIN (fts_document)`,
		`CREATE INDEX IF NOT EXISTS channels_video_count_idx ON channels (video_count DESC NULLS LAST)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema: %v", catalog.ErrStore, err)
		}
	}
	return nil
}

// Exists reports whether a channel with the given handle is already
// indexed. No side effects.
func (s *ChannelStore) Exists(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM channels WHERE handle = $1)`,
		handle,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %v", catalog.ErrStore, handle, err)
	}
	return exists, nil
}

const upsertSQL = `
INSERT INTO channels (
	handle, url, name, video_count, join_date, last_modified, logo_url, description,
	scraped_at, fts_document
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, NOW(),
	setweight(to_tsvector('english', COALESCE($1, '')), 'A') ||
	setweight(to_tsvector('english', COALESCE($3, '')), 'A') ||
	setweight(to_tsvector('english', COALESCE($8, '')), 'B')
)
ON CONFLICT (handle) DO UPDATE SET
	url = EXCLUDED.url,
	name = EXCLUDED.name,
	video_count = EXCLUDED.video_count,
	join_date = EXCLUDED.join_date,
	last_modified = EXCLUDED.last_modified,
	logo_url = EXCLUDED.logo_url,
	description = EXCLUDED.description,
	scraped_at = EXCLUDED.scraped_at,
	fts_document = EXCLUDED.fts_document
RETURNING id`

// Upsert inserts the channel or replaces every mutable field of the
// existing row with the same handle. scraped_at is set here, never by
// the caller. Calling it again with identical input changes only
// scraped_at.
func (s *ChannelStore) Upsert(ctx context.Context, candidate catalog.Candidate, meta catalog.Metadata) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, upsertSQL,
		candidate.Handle,
		candidate.URL,
		meta.Name,
		meta.VideoCount,
		meta.JoinDate,
		candidate.LastModified,
		meta.LogoURL,
		meta.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert %q: %v", catalog.ErrStore, candidate.Handle, err)
	}
	return id, nil
}

const channelColumns = `id, handle, url, name, video_count, join_date, last_modified, logo_url, description, scraped_at`

const searchSQL = `
SELECT ` + channelColumns + `
FROM channels
WHERE fts_document @@ to_tsquery('english', $1)
ORDER BY ts_rank(fts_document, to_tsquery('english', $1)) DESC,
	video_count DESC NULLS LAST
LIMIT $2`

const searchFallbackSQL = `
SELECT ` + channelColumns + `
FROM channels
WHERE handle ILIKE $1 OR name ILIKE $1 OR description ILIKE $1
ORDER BY video_count DESC NULLS LAST
LIMIT $2`

// Search runs the ranked full-text query: every whitespace-separated
// token must match (AND semantics), handle and name outweighing the
// description. When the structured query cannot be evaluated (no usable
// tokens, or a tsquery syntax error) it falls back to a case-insensitive
// substring match ordered by video_count alone. An empty primary result
// set does NOT trigger the fallback.
func (s *ChannelStore) Search(ctx context.Context, query string, limit int) ([]catalog.Channel, error) {
	tsQuery := buildTSQuery(query)
	if tsQuery == "" {
		return s.searchFallback(ctx, query, limit)
	}

	channels, err := s.queryChannels(ctx, searchSQL, tsQuery, limit)
	if err != nil {
		return s.searchFallback(ctx, query, limit)
	}
	return channels, nil
}

func (s *ChannelStore) searchFallback(ctx context.Context, query string, limit int) ([]catalog.Channel, error) {
	pattern := "%" + query + "%"
	channels, err := s.queryChannels(ctx, searchFallbackSQL, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", catalog.ErrStore, query, err)
	}
	return channels, nil
}

func (s *ChannelStore) queryChannels(ctx context.Context, sql string, args ...any) ([]catalog.Channel, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []catalog.Channel
	for rows.Next() {
		var ch catalog.Channel
		if err := rows.Scan(
			&ch.ID,
			&ch.Handle,
			&ch.URL,
			&ch.Name,
			&ch.VideoCount,
			&ch.JoinDate,
			&ch.LastModified,
			&ch.LogoURL,
			&ch.Description,
			&ch.ScrapedAt,
		); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return channels, nil
}

// tsQuerySpecials are stripped from tokens before they are joined into
// a tsquery, mirroring what the operator characters would otherwise
// inject into the parse.
var tsQueryReplacer = strings.NewReplacer(
	"&", " ", "|", " ", "!", " ", "(", " ", ")", " ",
	":", " ", "'", " ", "*", " ", "<", " ", ">", " ",
)

func buildTSQuery(query string) string {
	sanitized := tsQueryReplacer.Replace(query)
	tokens := strings.Fields(sanitized)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " & ")
}

const suggestSQL = `
SELECT DISTINCT name, handle, video_count
FROM channels
WHERE name ILIKE $1 OR handle ILIKE $1
ORDER BY video_count DESC NULLS LAST
LIMIT $2`

// Suggest returns autocomplete rows for inputs of at least two
// characters (after trimming); shorter input yields no query at all.
// Matching is case-insensitive substring over name and handle.
func (s *ChannelStore) Suggest(ctx context.Context, prefix string, limit int) ([]catalog.Suggestion, error) {
	trimmed := strings.TrimSpace(prefix)
	if len([]rune(trimmed)) < 2 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, suggestSQL, "%"+trimmed+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest %q: %v", catalog.ErrStore, trimmed, err)
	}
	defer rows.Close()

	var suggestions []catalog.Suggestion
	for rows.Next() {
		var (
			name       *string
			handle     string
			videoCount *int
		)
		if err := rows.Scan(&name, &handle, &videoCount); err != nil {
			return nil, fmt.Errorf("%w: suggest scan: %v", catalog.ErrStore, err)
		}
		text := handle
		if name != nil && *name != "" {
			text = *name
		}
		suggestions = append(suggestions, catalog.Suggestion{
			Text:       text,
			Handle:     handle,
			VideoCount: videoCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: suggest rows: %v", catalog.ErrStore, err)
	}
	return suggestions, nil
}

const statsSQL = `
SELECT
	COUNT(*),
	COALESCE(SUM(video_count) FILTER (WHERE video_count IS NOT NULL), 0),
	COALESCE(AVG(video_count) FILTER (WHERE video_count IS NOT NULL), 0)
FROM channels`

// Stats aggregates the catalog. The average covers only rows with a
// non-null video count and is rounded to one decimal place; an empty
// catalog (or one with no counts) reports 0.0.
func (s *ChannelStore) Stats(ctx context.Context) (catalog.Stats, error) {
	var (
		stats catalog.Stats
		avg   float64
	)
	err := s.pool.QueryRow(ctx, statsSQL).Scan(&stats.TotalChannels, &stats.TotalVideos, &avg)
	if err != nil {
		return catalog.Stats{}, fmt.Errorf("%w: stats: %v", catalog.ErrStore, err)
	}
	stats.AvgVideosPerChannel = math.Round(avg*10) / 10
	return stats, nil
}

const listAllSQL = `
SELECT ` + channelColumns + `
FROM channels
ORDER BY video_count DESC NULLS LAST`

// ListAll returns the full catalog ordered by video count, for export.
func (s *ChannelStore) ListAll(ctx context.Context) ([]catalog.Channel, error) {
	channels, err := s.queryChannels(ctx, listAllSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: list all: %v", catalog.ErrStore, err)
	}
	return channels, nil
}
