// Package extract pulls structured practice and clinician records out of
// parsed HTML documents.
package extract

import (
	"strings"

	"github.com/care-contact/directory-cli/internal/config"
)

// Vocab holds the lowercase keyword vocabularies the extraction heuristics
// test membership against.
type Vocab struct {
	Services        []string
	Specialties     []string
	Languages       []string
	RoleKeywords    []string
	BookingKeywords []string
	JunkTitles      []string
}

// NewVocab lowercases a configured vocabulary for matching.
func NewVocab(cfg config.VocabConfig) *Vocab {
	return &Vocab{
		Services:        lowerAll(cfg.Services),
		Specialties:     lowerAll(cfg.Specialties),
		Languages:       lowerAll(cfg.Languages),
		RoleKeywords:    lowerAll(cfg.RoleKeywords),
		BookingKeywords: lowerAll(cfg.BookingKeywords),
		JunkTitles:      lowerAll(cfg.JunkTitles),
	}
}

// IsJunkTitle reports whether a derived name is directory boilerplate rather
// than a real practice or clinician name.
func (v *Vocab) IsJunkTitle(s string) bool {
	return containsAny(strings.ToLower(s), v.JunkTitles)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// containsAny reports whether the lowercase haystack contains any of the
// lowercase needles.
func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
