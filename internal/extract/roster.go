package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/care-contact/directory-cli/internal/discover"
	"github.com/care-contact/directory-cli/internal/model"
)

// cardSelector lists the container shapes that group a clinician's name,
// photo, and role around a profile link on observed practice sites.
const cardSelector = "article, .card, .provider, .team-member, li, .grid-item, .wp-block-column"

var (
	rosterHeadingRe = regexp.MustCompile(`(?i)doctor|provider|advanced practice|team`)
	wpThumbRe       = regexp.MustCompile(`(?i)-\d+x\d+(\.(?:jpg|jpeg|png|webp))$`)
)

// RosterExtractor finds links to individual clinician profile pages embedded
// in a practice detail page.
type RosterExtractor struct {
	vocab *Vocab
}

// NewRosterExtractor creates a RosterExtractor.
func NewRosterExtractor(vocab *Vocab) *RosterExtractor {
	return &RosterExtractor{vocab: vocab}
}

// Roster scans a practice page for clinician profile links using two
// strategies: role-keyword anchors inside card-like containers, and
// team/provider headings whose following block holds profile links. Both
// feed one dedup set keyed by (practice_slug, slug).
func (r *RosterExtractor) Roster(doc *goquery.Document, baseURL, practiceSlug string) []model.Clinician {
	seen := make(map[string]struct{})
	var people []model.Clinician
	now := time.Now().UTC()

	push := func(name, href, photo, role string) {
		name = wsRe.ReplaceAllString(strings.TrimSpace(name), " ")
		if name == "" || r.vocab.IsJunkTitle(name) {
			return
		}
		profile := discover.ResolveURL(baseURL, href)
		if profile == "" {
			return
		}
		c := model.Clinician{
			PracticeSlug: practiceSlug,
			Slug:         discover.DeriveSlug(profile, name),
			Name:         name,
			Role:         strings.TrimSpace(role),
			ProfileURL:   profile,
			PhotoURL:     UpgradeWpThumb(photo),
			SourceURL:    profile,
			LastSeenAt:   now,
		}
		if _, dup := seen[c.Key()]; dup {
			return
		}
		seen[c.Key()] = struct{}{}
		people = append(people, c)
	}

	// Strategy 1: anchors whose href or text carries a role keyword; the
	// enclosing card supplies name, photo, and role.
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if !containsAny(strings.ToLower(href+" "+text), r.vocab.RoleKeywords) {
			return
		}

		card := a.Closest(cardSelector)
		name := strings.TrimSpace(card.Find("h3,h4,.name").First().Text())
		if name == "" {
			name = text
		}
		role := strings.TrimSpace(card.Find(".role,.title,.specialty,.credentials").First().Text())
		push(name, href, cardPhoto(card, baseURL), role)
	})

	// Strategy 2: team/provider headings; the block until the next heading
	// holds the profile links.
	doc.Find("h2,h3").Each(func(_ int, h *goquery.Selection) {
		if !rosterHeadingRe.MatchString(strings.TrimSpace(h.Text())) {
			return
		}
		h.NextUntil("h2,h3").Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			text := strings.TrimSpace(a.Text())
			if text == "" {
				return
			}
			photo := cardPhoto(a, baseURL)
			if photo == "" {
				photo = cardPhoto(a.Closest(cardSelector), baseURL)
			}
			push(text, href, photo, "")
		})
	})

	return people
}

// cardPhoto pulls the first image under a selection, preferring lazy-load
// data-src over src.
func cardPhoto(sel *goquery.Selection, baseURL string) string {
	img := sel.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	src, ok := img.Attr("data-src")
	if !ok || src == "" {
		src, _ = img.Attr("src")
	}
	return discover.ResolveURL(baseURL, src)
}

// UpgradeWpThumb strips a WordPress "-300x300" thumbnail suffix so the photo
// URL points at the full-size original.
func UpgradeWpThumb(photoURL string) string {
	return wpThumbRe.ReplaceAllString(photoURL, "$1")
}
