package store

import (
	"context"

	"github.com/care-contact/directory-cli/internal/model"
)

// SearchFilter specifies criteria for searching practices.
type SearchFilter struct {
	Query   string `json:"query,omitempty"`   // matches name or city
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Service string `json:"service,omitempty"` // matches the services keyword set
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the directory pipeline.
// Get methods return zero results, not errors, when nothing matches.
type Store interface {
	// Practices
	GetPractice(ctx context.Context, slug string) (*model.Practice, error)
	GetPractices(ctx context.Context, slugs []string) (map[string]model.Practice, error)
	UpsertPractices(ctx context.Context, practices []model.Practice) (int, error)
	SearchPractices(ctx context.Context, filter SearchFilter) ([]model.Practice, error)

	// Clinicians, keyed by (practice_slug, slug)
	GetCliniciansByPractices(ctx context.Context, practiceSlugs []string) (map[string]model.Clinician, error)
	UpsertClinicians(ctx context.Context, clinicians []model.Clinician) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
