package sitemap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/catalog"
	"github.com/openvideo/channelsearch/internal/fetch"
)

type stubFetcher struct {
	body []byte
	err  error
	url  string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (fetch.Response, error) {
	s.url = url
	if s.err != nil {
		return fetch.Response{}, s.err
	}
	return fetch.Response{URL: url, StatusCode: 200, Body: s.body}, nil
}

const sitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://open.video/channel-a</loc>
    <lastmod>2024-01-15</lastmod>
  </url>
  <url>
    <loc>https://open.video/channel-b/</loc>
  </url>
  <url>
    <loc>https://open.video/nested/channel-c</loc>
    <lastmod>2024-02-01</lastmod>
  </url>
</urlset>`

func TestFetchParsesCandidatesInDocumentOrder(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{body: []byte(sitemapXML)}
	f := New(stub, "https://open.video/channels-sitemap.xml", zap.NewNop())

	candidates, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://open.video/channels-sitemap.xml", stub.url)
	require.Len(t, candidates, 3)

	require.Equal(t, "channel-a", candidates[0].Handle)
	require.Equal(t, "https://open.video/channel-a", candidates[0].URL)
	require.NotNil(t, candidates[0].LastModified)
	require.Equal(t, "2024-01-15", *candidates[0].LastModified)

	// Trailing slash is stripped before taking the last segment.
	require.Equal(t, "channel-b", candidates[1].Handle)
	require.Nil(t, candidates[1].LastModified)

	require.Equal(t, "channel-c", candidates[2].Handle)
}

func TestFetchErrorIsFatal(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{err: errors.New("status 503")}
	f := New(stub, "https://open.video/channels-sitemap.xml", zap.NewNop())

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, catalog.ErrFetch)
}

func TestFetchMalformedDocument(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{body: []byte("<html>not a sitemap")}
	f := New(stub, "https://open.video/channels-sitemap.xml", zap.NewNop())

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, catalog.ErrFetch)
}

func TestFetchDropsEntriesWithoutLoc(t *testing.T) {
	t.Parallel()

	xml := `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><lastmod>2024-01-01</lastmod></url>
  <url><loc>https://open.video/only-one</loc></url>
</urlset>`
	f := New(&stubFetcher{body: []byte(xml)}, "https://open.video/channels-sitemap.xml", zap.NewNop())

	candidates, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "only-one", candidates[0].Handle)
}

func TestDeriveHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://open.video/channel-a", "channel-a"},
		{"https://open.video/channel-a/", "channel-a"},
		{"https://open.video/a/b/c///", "c"},
		// Degenerate: no path segment left after trimming.
		{"/", ""},
		{"", ""},
		{"https://open.video/", "open.video"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, deriveHandle(tt.url), "url %q", tt.url)
	}
}
