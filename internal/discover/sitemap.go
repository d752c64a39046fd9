package discover

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/care-contact/directory-cli/internal/fetch"
)

// PageFetcher is the fetch capability sitemap discovery needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// sitemapVariants are probed in order off the site origin. The third is the
// WordPress/Yoast per-type convention for the configured segment.
func (d *Discoverer) sitemapVariants(origin string) []string {
	return []string{
		origin + "/sitemap.xml",
		origin + "/sitemap_index.xml",
		origin + "/" + d.Matcher.Segment() + "-sitemap.xml",
	}
}

type sitemapXML struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// FromSitemap is the last-resort discovery path: it probes the site's
// sitemap variants and collects <loc> entries with the detail shape,
// recursing one level into child sitemaps referenced by <sitemap><loc>.
// Failures on individual variants are skipped; an unreachable site simply
// yields nothing.
func (d *Discoverer) FromSitemap(ctx context.Context, f PageFetcher, baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	origin := u.Scheme + "://" + u.Host

	seen := make(map[string]struct{})
	var links []string
	collect := func(loc string) {
		loc = strings.TrimSpace(loc)
		if loc == "" || !d.Matcher.IsDetailURL(loc) {
			return
		}
		if _, dup := seen[loc]; dup {
			return
		}
		seen[loc] = struct{}{}
		links = append(links, loc)
	}

	for _, smURL := range d.sitemapVariants(origin) {
		page, err := f.Fetch(ctx, smURL)
		if err != nil {
			continue
		}
		sm, err := parseSitemap(page.HTML)
		if err != nil {
			zap.L().Debug("discover: skipping malformed sitemap",
				zap.String("url", smURL),
				zap.Error(err),
			)
			continue
		}
		for _, entry := range sm.URLs {
			collect(entry.Loc)
		}

		// One level into child sitemaps (sitemap-index style).
		for _, child := range sm.Sitemaps {
			childURL := strings.TrimSpace(child.Loc)
			if childURL == "" {
				continue
			}
			childPage, err := f.Fetch(ctx, childURL)
			if err != nil {
				continue
			}
			childSm, err := parseSitemap(childPage.HTML)
			if err != nil {
				continue
			}
			for _, entry := range childSm.URLs {
				collect(entry.Loc)
			}
		}
	}

	return links
}

func parseSitemap(raw string) (*sitemapXML, error) {
	var sm sitemapXML
	if err := xml.Unmarshal([]byte(raw), &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}
