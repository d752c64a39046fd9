package discover

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var hrefAttrRe = regexp.MustCompile(`(?i)href\s*=\s*"([^"]*)"`)

// Discoverer finds candidate practice-detail links and pagination links in
// listing pages.
type Discoverer struct {
	Matcher *PathMatcher
}

// New creates a Discoverer for the given path matcher.
func New(matcher *PathMatcher) *Discoverer {
	return &Discoverer{Matcher: matcher}
}

// DetailLinks collects practice-detail links from a directory page. Four
// passes run in order until one yields results: strict path-shape anchors,
// anchors whose path merely contains the detail segment, data-href/data-url
// attributes, and finally a raw-markup href scan. Results are deduplicated in
// discovery order and capped at limit.
func (d *Discoverer) DetailLinks(doc *goquery.Document, baseURL string, limit int) []string {
	seen := make(map[string]struct{})
	var links []string
	add := func(raw string) {
		abs := ResolveURL(baseURL, raw)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	// Pass 1: strict, exactly /<segment>/<slug>/.
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := ResolveURL(baseURL, href)
		if abs == "" {
			return
		}
		if u := pathOf(abs); u != "" && d.Matcher.IsStrictDetailPath(u) {
			add(href)
		}
	})

	// Pass 2: lenient, any anchor whose path contains the segment.
	if len(links) == 0 {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			abs := ResolveURL(baseURL, href)
			if abs == "" {
				return
			}
			if d.Matcher.ContainsSegment(pathOf(abs)) {
				add(href)
			}
		})
	}

	// Pass 3: some sites stash URLs in data-* attributes.
	if len(links) == 0 {
		doc.Find("[data-href], [data-url]").Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("data-href")
			if !ok || href == "" {
				href, _ = s.Attr("data-url")
			}
			abs := ResolveURL(baseURL, href)
			if abs != "" && d.Matcher.ContainsSegment(pathOf(abs)) {
				add(href)
			}
		})
	}

	// Pass 4: raw-markup scan, last resort.
	if len(links) == 0 {
		html, err := doc.Html()
		if err == nil {
			for _, m := range hrefAttrRe.FindAllStringSubmatch(html, -1) {
				href := strings.TrimSpace(m[1])
				if !d.Matcher.ContainsSegment(href) {
					continue
				}
				add(href)
			}
		}
	}

	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links
}

func pathOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			p := rest[j:]
			if k := strings.IndexAny(p, "?#"); k >= 0 {
				p = p[:k]
			}
			return p
		}
		return "/"
	}
	return rawURL
}
