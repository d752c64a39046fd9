package fetch

import (
	"bufio"
	"context"
	"net/url"
	"strings"
)

// DisallowsAll reports whether the site's robots.txt contains a blanket
// "User-agent: *" / "Disallow: /" block. Any fetch or parse failure is
// treated as permission to crawl; this is a courtesy check, not an enforcer
// of arbitrary robots directives.
func (f *Fetcher) DisallowsAll(ctx context.Context, siteURL string) bool {
	u, err := url.Parse(siteURL)
	if err != nil {
		return false
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	page, err := f.Fetch(ctx, robotsURL)
	if err != nil {
		return false
	}

	inWildcard := false
	sc := bufio.NewScanner(strings.NewReader(page.HTML))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "user-agent:"):
			agent := strings.TrimSpace(line[len("user-agent:"):])
			inWildcard = agent == "*"
		case inWildcard && strings.HasPrefix(lower, "disallow:"):
			path := strings.TrimSpace(line[len("disallow:"):])
			if path == "/" {
				return true
			}
		}
	}
	return false
}
