package discover

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nextTextRe matches link text that advances a paginated listing, including
// the common arrow glyphs.
var nextTextRe = regexp.MustCompile(`(?i)\b(next|older)\b|»|›`)

// NextPage finds the next page of a paginated listing: a rel=next link
// element first, then an anchor whose text looks like "next". Returns empty
// when the listing has no further pages.
func NextPage(doc *goquery.Document, baseURL string) string {
	if href, ok := doc.Find(`link[rel="next"]`).First().Attr("href"); ok {
		if abs := ResolveURL(baseURL, href); abs != "" {
			return abs
		}
	}

	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !nextTextRe.MatchString(strings.TrimSpace(s.Text())) {
			return true
		}
		href, _ := s.Attr("href")
		if abs := ResolveURL(baseURL, href); abs != "" {
			next = abs
			return false
		}
		return true
	})
	return next
}
