// Package reconcile merges freshly scraped records into the persisted
// directory without losing fields an earlier crawl already filled in.
package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/care-contact/directory-cli/internal/model"
	"github.com/care-contact/directory-cli/internal/store"
)

// MergePractice lays incoming over existing field by field. An empty incoming
// field never erases a stored value; a non-empty one always wins, since the
// fresh scrape is the more current observation.
func MergePractice(existing, incoming model.Practice) model.Practice {
	out := existing
	out.Slug = incoming.Slug

	out.Name = pick(incoming.Name, existing.Name)
	out.Website = pick(incoming.Website, existing.Website)
	out.Phone = pick(incoming.Phone, existing.Phone)
	out.Email = pick(incoming.Email, existing.Email)
	out.Address = pick(incoming.Address, existing.Address)
	out.City = pick(incoming.City, existing.City)
	out.State = pick(incoming.State, existing.State)
	out.Zip = pick(incoming.Zip, existing.Zip)
	out.LogoURL = pick(incoming.LogoURL, existing.LogoURL)
	out.Description = pick(incoming.Description, existing.Description)
	out.Services = pick(incoming.Services, existing.Services)
	if incoming.Source != "" {
		out.Source = incoming.Source
	}
	return out
}

// MergeClinician applies the same non-destructive rule to clinician fields.
// List fields replace wholesale when the incoming scrape found any entries.
func MergeClinician(existing, incoming model.Clinician) model.Clinician {
	out := existing
	out.PracticeSlug = incoming.PracticeSlug
	out.Slug = incoming.Slug

	out.Name = pick(incoming.Name, existing.Name)
	out.Role = pick(incoming.Role, existing.Role)
	out.ProfileURL = pick(incoming.ProfileURL, existing.ProfileURL)
	out.PhotoURL = pick(incoming.PhotoURL, existing.PhotoURL)
	out.BookingURL = pick(incoming.BookingURL, existing.BookingURL)
	out.SourceURL = pick(incoming.SourceURL, existing.SourceURL)
	if len(incoming.Specialties) > 0 {
		out.Specialties = incoming.Specialties
	}
	if len(incoming.Languages) > 0 {
		out.Languages = incoming.Languages
	}
	if len(incoming.Education) > 0 {
		out.Education = incoming.Education
	}
	if incoming.Accepting != nil {
		out.Accepting = incoming.Accepting
	}
	if incoming.LastSeenAt.After(existing.LastSeenAt) {
		out.LastSeenAt = incoming.LastSeenAt
	}
	return out
}

func pick(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

// Reconciler saves crawl results through the read-merge-write cycle.
type Reconciler struct {
	store store.Store
	log   *zap.Logger
}

// New creates a Reconciler.
func New(s store.Store) *Reconciler {
	return &Reconciler{
		store: s,
		log:   zap.L().With(zap.String("component", "reconcile")),
	}
}

// SaveResult merges a crawl result into the store and returns the number of
// practices and clinicians written.
func (r *Reconciler) SaveResult(ctx context.Context, result model.CrawlResult) (int, int, error) {
	practices, err := r.savePractices(ctx, result.Practices)
	if err != nil {
		return 0, 0, err
	}
	clinicians, err := r.saveClinicians(ctx, result.Clinicians)
	if err != nil {
		return practices, 0, err
	}

	r.log.Info("saved crawl result",
		zap.Int("practices", practices),
		zap.Int("clinicians", clinicians),
	)
	return practices, clinicians, nil
}

func (r *Reconciler) savePractices(ctx context.Context, incoming []model.Practice) (int, error) {
	if len(incoming) == 0 {
		return 0, nil
	}

	slugs := make([]string, 0, len(incoming))
	for _, p := range incoming {
		slugs = append(slugs, p.Slug)
	}
	existing, err := r.store.GetPractices(ctx, slugs)
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: load existing practices")
	}

	merged := make([]model.Practice, 0, len(incoming))
	for _, p := range incoming {
		merged = append(merged, MergePractice(existing[p.Slug], p))
	}

	n, err := r.store.UpsertPractices(ctx, merged)
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: upsert practices")
	}
	return n, nil
}

func (r *Reconciler) saveClinicians(ctx context.Context, incoming []model.Clinician) (int, error) {
	if len(incoming) == 0 {
		return 0, nil
	}

	slugSet := make(map[string]struct{})
	var practiceSlugs []string
	for _, c := range incoming {
		if _, ok := slugSet[c.PracticeSlug]; ok {
			continue
		}
		slugSet[c.PracticeSlug] = struct{}{}
		practiceSlugs = append(practiceSlugs, c.PracticeSlug)
	}
	existing, err := r.store.GetCliniciansByPractices(ctx, practiceSlugs)
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: load existing clinicians")
	}

	merged := make([]model.Clinician, 0, len(incoming))
	for _, c := range incoming {
		merged = append(merged, MergeClinician(existing[c.Key()], c))
	}

	n, err := r.store.UpsertClinicians(ctx, merged)
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: upsert clinicians")
	}
	return n, nil
}
