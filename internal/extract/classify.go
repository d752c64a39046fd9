package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/care-contact/directory-cli/internal/discover"
)

// PageKind is the classifier's verdict on a fetched page. A page can satisfy
// neither flag (a blog post, say); callers treat that as "skip".
type PageKind struct {
	IsPracticeDetail bool
	IsDirectory      bool
}

// cityStateZipRe matches an address-shaped text fragment: "Springfield, IL
// 62704" with optional commas and zip+4.
var cityStateZipRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]+,\s?[A-Z]{2},?\s?\d{5}(?:-\d{4})?\b`)

// minDirectoryLinks is the number of distinct detail-shaped links a listing
// page must carry to classify as a directory.
const minDirectoryLinks = 8

// Classifier decides whether a fetched page is a practice-detail page, a
// directory listing, or neither.
type Classifier struct {
	matcher *discover.PathMatcher
	vocab   *Vocab
}

// NewClassifier creates a Classifier.
func NewClassifier(matcher *discover.PathMatcher, vocab *Vocab) *Classifier {
	return &Classifier{matcher: matcher, vocab: vocab}
}

// Classify inspects a page's URL shape and content signals.
func (c *Classifier) Classify(pageURL string, doc *goquery.Document) PageKind {
	u, err := url.Parse(pageURL)
	if err != nil {
		return PageKind{}
	}
	return PageKind{
		IsPracticeDetail: c.isPracticeDetail(u.Path, doc),
		IsDirectory:      c.isDirectory(u.Path, doc),
	}
}

// isPracticeDetail requires both the detail path shape and at least one
// strong content signal: a tel: link, an address-shaped text block, a
// structured-data address, or a plausible page title.
func (c *Classifier) isPracticeDetail(urlPath string, doc *goquery.Document) bool {
	if !c.matcher.IsDetailPath(urlPath) {
		return false
	}

	body := wsRe.ReplaceAllString(doc.Find("body").Text(), " ")

	hasTel := doc.Find(`a[href^="tel:"]`).Length() > 0 || phoneRe.MatchString(body)
	hasAddr := doc.Find(`address, [itemtype*="PostalAddress"]`).Length() > 0 ||
		cityStateZipRe.MatchString(body) ||
		ParseStructuredData(doc).HasAddress()

	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	hasTitle := len(h1) >= 4 && !c.vocab.IsJunkTitle(h1)

	return hasTel || hasAddr || hasTitle
}

// isDirectory requires the listing path shape plus a critical mass of
// distinct detail-shaped links.
func (c *Classifier) isDirectory(urlPath string, doc *goquery.Document) bool {
	if !c.matcher.ContainsSegment(urlPath) {
		return false
	}
	distinct := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if c.matcher.IsDetailURL(href) || c.matcher.IsDetailPath(href) {
			distinct[href] = struct{}{}
		}
	})
	return len(distinct) >= minDirectoryLinks
}
