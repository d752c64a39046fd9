package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/care-contact/directory-cli/internal/discover"
	"github.com/care-contact/directory-cli/internal/model"
)

var (
	educationHeadingRe = regexp.MustCompile(`(?i)education|training|residenc|fellowship|board`)
	acceptingRe        = regexp.MustCompile(`(?i)accepting\s+new\s+patients`)
	langSplitRe        = regexp.MustCompile(`[•,/]`)

	langTitle = cases.Title(language.English)
)

const (
	maxEducationItems  = 20
	maxEducationLength = 500
)

// Enricher fetches clinician profile pages and fills in specialties,
// languages, booking links, and education history.
type Enricher struct {
	fetcher discover.PageFetcher
	vocab   *Vocab
}

// NewEnricher creates an Enricher.
func NewEnricher(f discover.PageFetcher, vocab *Vocab) *Enricher {
	return &Enricher{fetcher: f, vocab: vocab}
}

// Enrich fetches a clinician's profile page and extracts the enrichment
// fields. A fetch or parse failure never loses the clinician: the un-enriched
// record comes back with last_seen_at still stamped.
func (e *Enricher) Enrich(ctx context.Context, c model.Clinician) model.Clinician {
	c.PhotoURL = UpgradeWpThumb(c.PhotoURL)
	c.SourceURL = c.ProfileURL
	c.LastSeenAt = time.Now().UTC()

	page, err := e.fetcher.Fetch(ctx, c.ProfileURL)
	if err != nil {
		zap.L().Debug("extract: enrichment fetch failed, keeping roster record",
			zap.String("profile", c.ProfileURL),
			zap.Error(err),
		)
		return c
	}
	doc, err := page.Doc()
	if err != nil {
		return c
	}

	if role := profileRole(doc); role != "" {
		c.Role = role
	}
	c.Specialties = e.specialties(doc)
	c.Languages = e.languages(doc)

	body := doc.Find("body").Text()
	accepting := acceptingRe.MatchString(body)
	c.Accepting = &accepting

	c.BookingURL = e.bookingLink(doc, c.ProfileURL)
	c.Education = educationItems(doc)

	return c
}

// EnrichAll enriches clinicians concurrently up to fanOut at a time.
// Profile pages are independent, so order is preserved by index.
func (e *Enricher) EnrichAll(ctx context.Context, clinicians []model.Clinician, fanOut int) []model.Clinician {
	if fanOut < 1 {
		fanOut = 1
	}
	out := make([]model.Clinician, len(clinicians))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, c := range clinicians {
		g.Go(func() error {
			out[i] = e.Enrich(gctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func profileRole(doc *goquery.Document) string {
	role := strings.TrimSpace(doc.Find(".credentials,.provider-credentials,.title,.role").First().Text())
	if role == "" {
		role = strings.TrimSpace(doc.Find("h1 + .subtitle, h1 + .meta").First().Text())
	}
	return wsRe.ReplaceAllString(role, " ")
}

// specialties tests specialty-flavored elements against the clinical
// vocabulary, collecting the element text.
func (e *Enricher) specialties(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find(`[class*="specialt"], .specialties, .provider-specialties, li`).Each(func(_ int, s *goquery.Selection) {
		if s.Find("li").Length() > 0 {
			return
		}
		t := wsRe.ReplaceAllString(strings.TrimSpace(s.Text()), " ")
		if t == "" || len(t) > 120 {
			return
		}
		if !containsAny(strings.ToLower(t), e.vocab.Specialties) {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	})
	return out
}

// languages splits language-flavored elements on the common delimiters and
// keeps vocabulary matches, canonicalized to title case.
func (e *Enricher) languages(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find(`[class*="language"], .languages, .provider-languages`).Each(func(_ int, s *goquery.Selection) {
		for _, part := range langSplitRe.Split(s.Text(), -1) {
			t := strings.TrimSpace(part)
			if t == "" || !containsAny(strings.ToLower(t), e.vocab.Languages) {
				continue
			}
			canon := langTitle.String(strings.ToLower(t))
			if _, dup := seen[canon]; dup {
				continue
			}
			seen[canon] = struct{}{}
			out = append(out, canon)
		}
	})
	return out
}

// bookingLink returns the first anchor whose href or text matches the
// booking vocabulary, resolved against the profile URL.
func (e *Enricher) bookingLink(doc *goquery.Document, profileURL string) string {
	var booking string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !containsAny(strings.ToLower(href+" "+a.Text()), e.vocab.BookingKeywords) {
			return true
		}
		if abs := discover.ResolveURL(profileURL, href); abs != "" {
			booking = abs
			return false
		}
		return true
	})
	return booking
}

// educationItems collects list and paragraph items under education/training
// headings, in document order, capped.
func educationItems(doc *goquery.Document) []string {
	var items []string
	doc.Find("h2,h3").Each(func(_ int, h *goquery.Selection) {
		if !educationHeadingRe.MatchString(h.Text()) {
			return
		}
		h.NextUntil("h2,h3").Find("li,p").Each(func(_ int, el *goquery.Selection) {
			t := wsRe.ReplaceAllString(strings.TrimSpace(el.Text()), " ")
			if t == "" || len(t) > maxEducationLength {
				return
			}
			items = append(items, t)
		})
	})
	if len(items) > maxEducationItems {
		items = items[:maxEducationItems]
	}
	return items
}
