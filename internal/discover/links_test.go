package discover

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func testDiscoverer() *Discoverer {
	return New(NewPathMatcher("practices"))
}

func TestDetailLinks_StrictPass(t *testing.T) {
	html := `<html><body>
<a href="/practices/sunrise-care/">Sunrise Care</a>
<a href="/practices/oak-clinic">Oak Clinic</a>
<a href="/practices/sunrise-care/">Duplicate</a>
<a href="/practices/oak-clinic/staff/">Not strict</a>
<a href="/blog/post/">Blog</a>
</body></html>`

	links := testDiscoverer().DetailLinks(docFrom(t, html), "https://example.com/practices/", 0)
	assert.Equal(t, []string{
		"https://example.com/practices/sunrise-care/",
		"https://example.com/practices/oak-clinic",
	}, links)
}

func TestDetailLinks_LenientFallback(t *testing.T) {
	// No strict matches: any anchor whose path contains the segment counts.
	html := `<html><body>
<a href="/our/practices/sunrise-care/profile/">Sunrise</a>
<a href="/blog/post/">Blog</a>
</body></html>`

	links := testDiscoverer().DetailLinks(docFrom(t, html), "https://example.com/", 0)
	assert.Equal(t, []string{"https://example.com/our/practices/sunrise-care/profile/"}, links)
}

func TestDetailLinks_DataAttrFallback(t *testing.T) {
	html := `<html><body>
<div class="card" data-href="/practices/sunrise-care/">Sunrise</div>
<div class="card" data-url="/practices/oak-clinic/">Oak</div>
<div class="card" data-href="/blog/post/">Blog</div>
</body></html>`

	links := testDiscoverer().DetailLinks(docFrom(t, html), "https://example.com/", 0)
	assert.Equal(t, []string{
		"https://example.com/practices/sunrise-care/",
		"https://example.com/practices/oak-clinic/",
	}, links)
}

func TestDetailLinks_RawMarkupFallback(t *testing.T) {
	// Markup the DOM walk cannot see, e.g. commented-out or templated anchors.
	html := `<html><body>
<!-- <a href="/practices/hidden-clinic/">Hidden</a> -->
</body></html>`

	links := testDiscoverer().DetailLinks(docFrom(t, html), "https://example.com/", 0)
	assert.Contains(t, links, "https://example.com/practices/hidden-clinic/")
}

func TestDetailLinks_Limit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<a href="/practices/clinic-%d/">C</a>`, i)
	}
	b.WriteString("</body></html>")

	links := testDiscoverer().DetailLinks(docFrom(t, b.String()), "https://example.com/", 10)
	assert.Len(t, links, 10)
	assert.Equal(t, "https://example.com/practices/clinic-0/", links[0])
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a/b", ResolveURL("https://example.com/a/", "b"))
	assert.Equal(t, "https://example.com/b", ResolveURL("https://example.com/a/", "/b"))
	assert.Equal(t, "https://other.com/x", ResolveURL("https://example.com/", "https://other.com/x"))
	assert.Empty(t, ResolveURL("https://example.com/", "mailto:x@y.com"))
	assert.Empty(t, ResolveURL("https://example.com/", "javascript:void(0)"))
	assert.Empty(t, ResolveURL("https://example.com/", "  "))
}
