package discover

import (
	"net/url"
	"strings"
)

// ResolveURL resolves a possibly-relative href against a base URL. Returns
// empty on any parse failure or non-http(s) scheme.
func ResolveURL(base, href string) string {
	if strings.TrimSpace(href) == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u, err := b.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
