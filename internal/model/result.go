package model

import "time"

// Mode selects the crawl strategy.
type Mode string

const (
	ModeSingle     Mode = "single"     // scrape exactly one page
	ModeDirectory  Mode = "directory"  // depth-bounded traversal of a listing site
	ModePagination Mode = "pagination" // walk rel=next pages from a listing
)

// Scope restricts which record kinds a crawl collects.
type Scope string

const (
	ScopeBoth       Scope = "both"
	ScopePractices  Scope = "practices"
	ScopeClinicians Scope = "clinicians"
)

// CrawlResult aggregates the records gathered by one orchestrator run. It is
// never persisted as its own entity; only its members are upserted.
type CrawlResult struct {
	Practices  []Practice  `json:"practices"`
	Clinicians []Clinician `json:"clinicians"`
}

// CrawlMeta reports run-level outcome counters alongside a result.
type CrawlMeta struct {
	RunID        string    `json:"run_id"`
	Mode         Mode      `json:"mode"`
	Scope        Scope     `json:"scope"`
	PagesVisited int       `json:"pages_visited"`
	PagesFailed  int       `json:"pages_failed"`
	PagesSkipped int       `json:"pages_skipped"` // failed classification
	UsedSitemap  bool      `json:"used_sitemap,omitempty"`
	Saved        bool      `json:"saved,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Counts summarizes a result for the response envelope.
func (r CrawlResult) Counts() map[string]int {
	return map[string]int{
		"practices":  len(r.Practices),
		"clinicians": len(r.Clinicians),
	}
}
