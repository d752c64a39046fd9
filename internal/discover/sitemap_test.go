package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/care-contact/directory-cli/internal/config"
	"github.com/care-contact/directory-cli/internal/fetch"
)

// sitemapServer serves fixture bodies by path, substituting BASE with the
// server's own origin so <loc> entries point back at it.
func sitemapServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(strings.ReplaceAll(body, "BASE", "http://"+r.Host)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sitemapFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	return fetch.New(config.FetchConfig{UserAgent: "test", TimeoutSecs: 5, MaxBodyKB: 1024})
}

func TestFromSitemap_FlatSitemap(t *testing.T) {
	srv := sitemapServer(t, map[string]string{
		"/sitemap.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>BASE/practices/sunrise-care/</loc></url>
  <url><loc>BASE/practices/oak-clinic/</loc></url>
  <url><loc>BASE/blog/post/</loc></url>
</urlset>`,
	})

	links := testDiscoverer().FromSitemap(context.Background(), sitemapFetcher(t), srv.URL+"/practices/")
	assert.Equal(t, []string{
		srv.URL + "/practices/sunrise-care/",
		srv.URL + "/practices/oak-clinic/",
	}, links)
}

func TestFromSitemap_IndexRecursesOneLevel(t *testing.T) {
	srv := sitemapServer(t, map[string]string{
		"/sitemap_index.xml": `<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>BASE/practice-sitemap.xml</loc></sitemap>
</sitemapindex>`,
		"/practice-sitemap.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>BASE/practices/hillside/</loc></url>
</urlset>`,
	})

	links := testDiscoverer().FromSitemap(context.Background(), sitemapFetcher(t), srv.URL+"/")
	assert.Equal(t, []string{srv.URL + "/practices/hillside/"}, links)
}

func TestFromSitemap_SegmentVariant(t *testing.T) {
	srv := sitemapServer(t, map[string]string{
		"/practices-sitemap.xml": `<?xml version="1.0"?>
<urlset><url><loc>BASE/practices/riverbend/</loc></url></urlset>`,
	})

	links := testDiscoverer().FromSitemap(context.Background(), sitemapFetcher(t), srv.URL+"/")
	assert.Equal(t, []string{srv.URL + "/practices/riverbend/"}, links)
}

func TestFromSitemap_UnreachableSite(t *testing.T) {
	srv := sitemapServer(t, nil)
	links := testDiscoverer().FromSitemap(context.Background(), sitemapFetcher(t), srv.URL+"/")
	assert.Empty(t, links)
}

func TestFromSitemap_MalformedSkipped(t *testing.T) {
	srv := sitemapServer(t, map[string]string{
		"/sitemap.xml": `this is not xml <<<<`,
		"/practices-sitemap.xml": `<?xml version="1.0"?>
<urlset><url><loc>BASE/practices/still-found/</loc></url></urlset>`,
	})

	links := testDiscoverer().FromSitemap(context.Background(), sitemapFetcher(t), srv.URL+"/")
	assert.Equal(t, []string{srv.URL + "/practices/still-found/"}, links)
}
