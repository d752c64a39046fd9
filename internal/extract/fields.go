package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/care-contact/directory-cli/internal/discover"
	"github.com/care-contact/directory-cli/internal/model"
)

var (
	phoneRe     = regexp.MustCompile(`(\+?1[-\s.]*)?\(?\d{3}\)?[-\s.]*\d{3}[-\s.]*\d{4}`)
	emailRe     = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	nonDigitRe  = regexp.MustCompile(`\D`)
	wsRe        = regexp.MustCompile(`\s+`)
	learnMoreRe = regexp.MustCompile(`(?i)Learn more.*$`)

	// "123 Main St Springfield, IL 62704" and the comma'd variants.
	addrBlockRe = regexp.MustCompile(`(.+?)\s+([A-Za-z .'-]+),\s*([A-Z]{2})\s*(\d{5}(?:-\d{4})?)`)
)

// Extractor pulls practice contact fields from a parsed document, preferring
// structured data over heuristic text scanning.
type Extractor struct {
	vocab *Vocab
}

// NewExtractor creates an Extractor with the given vocabulary.
func NewExtractor(vocab *Vocab) *Extractor {
	return &Extractor{vocab: vocab}
}

// Fields extracts a partial practice record from a page. Every field degrades
// to empty rather than failing; slug and source are assigned by the caller.
func (e *Extractor) Fields(doc *goquery.Document, pageURL string) model.Practice {
	sd := ParseStructuredData(doc)

	p := model.Practice{
		Website:     pageURL,
		Name:        e.name(doc, sd, pageURL),
		Phone:       phone(doc, sd),
		Email:       email(doc, sd),
		LogoURL:     logo(doc, pageURL),
		Description: CleanDescription(description(doc)),
		Services:    e.services(doc),
	}
	p.Address, p.City, p.State, p.Zip = address(doc, sd)
	return p
}

// name priority: structured data, Open Graph, first heading, document title,
// hostname.
func (e *Extractor) name(doc *goquery.Document, sd StructuredData, pageURL string) string {
	candidates := []string{
		sd.Name,
		attr(doc, `meta[property="og:site_name"]`, "content"),
		attr(doc, `meta[property="og:title"]`, "content"),
		strings.TrimSpace(doc.Find("h1").First().Text()),
		strings.TrimSpace(doc.Find("title").First().Text()),
	}
	for _, c := range candidates {
		c = wsRe.ReplaceAllString(strings.TrimSpace(c), " ")
		if c != "" {
			return c
		}
	}
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return ""
}

func phone(doc *goquery.Document, sd StructuredData) string {
	if p := NormalizePhone(sd.Telephone); p != "" {
		return p
	}
	if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
		if p := NormalizePhone(strings.TrimPrefix(href, "tel:")); p != "" {
			return p
		}
	}
	body := wsRe.ReplaceAllString(doc.Find("body").Text(), " ")
	if m := phoneRe.FindString(body); m != "" {
		return NormalizePhone(m)
	}
	return ""
}

// NormalizePhone strips everything but digits and a leading US country code.
// Anything that does not come out at exactly 10 digits is rejected.
func NormalizePhone(raw string) string {
	d := nonDigitRe.ReplaceAllString(raw, "")
	if len(d) == 11 && strings.HasPrefix(d, "1") {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}

func email(doc *goquery.Document, sd StructuredData) string {
	if validEmail(sd.Email) {
		return sd.Email
	}
	if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		addr = strings.ToLower(strings.TrimSpace(addr))
		if validEmail(addr) {
			return addr
		}
	}
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	if m := emailRe.FindString(html); validEmail(m) {
		return strings.ToLower(m)
	}
	return ""
}

func validEmail(s string) bool {
	return s != "" && emailRe.MatchString(s) && !strings.ContainsAny(s, " <>")
}

// address prefers the structured-data PostalAddress, then an <address> or
// address-class block parsed against "street, City, ST ZIP", then the raw
// block text as a last resort.
func address(doc *goquery.Document, sd StructuredData) (street, city, state, zip string) {
	if sd.HasAddress() {
		street = strings.TrimSpace(strings.Join(nonEmpty(sd.Street, sd.Street2), " "))
		return street, sd.City, sd.State, sd.Zip
	}

	txt := strings.TrimSpace(doc.Find("address").First().Text())
	if txt == "" {
		txt = strings.TrimSpace(doc.Find(`[class*="address"], [id*="address"]`).First().Text())
	}
	if txt == "" {
		return "", "", "", ""
	}
	txt = wsRe.ReplaceAllString(txt, " ")
	if m := addrBlockRe.FindStringSubmatch(txt); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), m[3], m[4]
	}
	return txt, "", "", ""
}

// logo: Open Graph image first, then touch icons by declared size, then
// favicon links, then /favicon.ico.
func logo(doc *goquery.Document, pageURL string) string {
	candidates := []string{
		attr(doc, `meta[property="og:image"]`, "content"),
		attr(doc, `link[rel="apple-touch-icon"][sizes="180x180"]`, "href"),
		attr(doc, `link[rel="apple-touch-icon"]`, "href"),
		attr(doc, `link[rel="icon"][sizes="32x32"]`, "href"),
		attr(doc, `link[rel="icon"]`, "href"),
		"/favicon.ico",
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if abs := discover.ResolveURL(pageURL, c); abs != "" {
			return abs
		}
	}
	return ""
}

func description(doc *goquery.Document) string {
	if d := attr(doc, `meta[name="description"]`, "content"); d != "" {
		return d
	}
	return attr(doc, `meta[property="og:description"]`, "content")
}

// CleanDescription collapses whitespace, strips "Learn more..." boilerplate,
// and truncates to 300 characters with an ellipsis. Truncation counts runes so
// a multibyte character is never split.
func CleanDescription(s string) string {
	t := strings.TrimSpace(learnMoreRe.ReplaceAllString(wsRe.ReplaceAllString(s, " "), ""))
	if r := []rune(t); len(r) > 300 {
		t = strings.TrimSpace(string(r[:300])) + "…"
	}
	return t
}

// services tests the lowercased document text against the service vocabulary
// and pipe-joins every match, in vocabulary order.
func (e *Extractor) services(doc *goquery.Document) string {
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	lc := strings.ToLower(html)
	var found []string
	for _, k := range e.vocab.Services {
		if strings.Contains(lc, k) {
			found = append(found, k)
		}
	}
	return strings.Join(found, "|")
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
