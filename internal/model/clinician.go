package model

import "time"

// Clinician is an individual practitioner belonging to a practice. The
// composite key is (PracticeSlug, Slug).
type Clinician struct {
	PracticeSlug string    `json:"practice_slug"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Role         string    `json:"role,omitempty"`
	ProfileURL   string    `json:"profile_url"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Specialties  []string  `json:"specialties,omitempty"`
	Languages    []string  `json:"languages,omitempty"`
	Accepting    *bool     `json:"accepting_new_patients,omitempty"` // nil = unknown
	BookingURL   string    `json:"booking_url,omitempty"`
	Education    []string  `json:"education_training,omitempty"` // ordered, capped at 20
	SourceURL    string    `json:"source_url,omitempty"`
	LastSeenAt   time.Time `json:"last_seen_at,omitempty"`
}

// Key returns the composite identity key used for deduplication and upserts.
func (c Clinician) Key() string {
	return c.PracticeSlug + "::" + c.Slug
}
