package discover

import (
	"net/url"
	"strings"

	gosimple "github.com/gosimple/slug"
)

// Slugify normalizes a name to a lowercase, hyphen-separated identifier.
func Slugify(s string) string {
	return gosimple.Make(s)
}

// DeriveSlug derives a record's merge key from its URL: the last non-empty
// path segment, slug-normalized. Falls back to the slugified title, then to
// the slugified hostname, so the result is non-empty for any parseable URL.
func DeriveSlug(pageURL, title string) string {
	if u, err := url.Parse(pageURL); err == nil {
		segs := splitPath(u.Path)
		if len(segs) > 0 {
			if s := Slugify(segs[len(segs)-1]); s != "" {
				return s
			}
		}
		if s := Slugify(title); s != "" {
			return s
		}
		return Slugify(strings.TrimPrefix(u.Hostname(), "www."))
	}
	return Slugify(title)
}
