// Package discover finds candidate detail pages on third-party practice
// sites: from directory listings, pagination chains, and sitemaps.
package discover

import (
	"net/url"
	"regexp"
	"strings"
)

// nonDetailSuffixes are trailing path segments that share the detail-path
// prefix but never identify a practice.
var nonDetailSuffixes = map[string]struct{}{
	"about": {}, "insurance": {}, "billing": {}, "financial": {},
	"privacy": {}, "terms": {}, "news": {}, "blog": {}, "careers": {},
	"contact": {}, "doctor": {}, "doctors": {}, "provider": {}, "providers": {},
}

// PathMatcher recognizes the URL path shapes of a practice site: detail pages
// like /practices/<slug>/ and listing pages under the same prefix. The
// segment name is site configuration, not logic.
type PathMatcher struct {
	segment  string
	strictRe *regexp.Regexp
}

// NewPathMatcher creates a matcher for a detail path segment such as
// "practices".
func NewPathMatcher(segment string) *PathMatcher {
	segment = strings.Trim(strings.ToLower(segment), "/")
	if segment == "" {
		segment = "practices"
	}
	return &PathMatcher{
		segment:  segment,
		strictRe: regexp.MustCompile(`(?i)^/` + regexp.QuoteMeta(segment) + `/[a-z0-9-]+/?$`),
	}
}

// Segment returns the configured detail path segment.
func (m *PathMatcher) Segment() string { return m.segment }

// IsDetailPath reports whether a URL path has the practice-detail shape:
// at least two segments under the detail prefix, excluding known
// non-practice suffixes.
func (m *PathMatcher) IsDetailPath(urlPath string) bool {
	p := strings.ToLower(urlPath)
	if !strings.HasPrefix(p, "/"+m.segment+"/") {
		return false
	}
	segs := splitPath(p)
	if len(segs) < 2 {
		return false
	}
	_, excluded := nonDetailSuffixes[segs[len(segs)-1]]
	return !excluded
}

// IsStrictDetailPath reports whether a path is exactly /<segment>/<slug>/.
func (m *PathMatcher) IsStrictDetailPath(urlPath string) bool {
	return m.strictRe.MatchString(urlPath)
}

// ContainsSegment reports whether the path mentions the detail segment at
// all. Used by the lenient discovery pass and the listing-shape check.
func (m *PathMatcher) ContainsSegment(urlPath string) bool {
	return strings.Contains(strings.ToLower(urlPath), "/"+m.segment)
}

// IsDetailURL parses a full URL and applies IsDetailPath.
func (m *PathMatcher) IsDetailURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return m.IsDetailPath(u.Path)
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
