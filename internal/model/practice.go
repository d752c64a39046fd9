// Package model defines the records produced by the crawl pipeline.
package model

// Source describes how a practice record was produced.
type Source string

const (
	SourceCrawl  Source = "crawl"  // discovered from a directory or pagination crawl
	SourceSingle Source = "single" // scraped from a single explicitly given page
)

// Practice is a care-provider organization. Slug is the merge key: two
// practices never share a slug in the persisted store.
type Practice struct {
	Slug        string `json:"slug"`
	Name        string `json:"name,omitempty"`
	Website     string `json:"website"`
	Phone       string `json:"phone,omitempty"` // 10-digit normalized
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
	Description string `json:"description,omitempty"` // <=300 chars, ellipsis-truncated
	Services    string `json:"services,omitempty"`    // pipe-delimited keyword set
	Source      Source `json:"source,omitempty"`
}

// QualityScore is a completeness heuristic used to pick the best candidate
// when a crawl yields multiple records for the same slug. Range 0-85.
func (p Practice) QualityScore() int {
	score := 0
	if p.Phone != "" {
		score += 25
	}
	if p.Address != "" && p.City != "" && p.State != "" {
		score += 35
	}
	if p.LogoURL != "" {
		score += 10
	}
	if len(p.Description) > 60 {
		score += 15
	}
	return score
}
