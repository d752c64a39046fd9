package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/care-contact/directory-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_PracticeRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	p := model.Practice{
		Slug:    "sunrise-care",
		Name:    "Sunrise Care",
		Website: "https://sunrisecare.com",
		Phone:   "5551234567",
		Address: "1 Main St",
		City:    "Springfield",
		State:   "IL",
		Zip:     "62704",
		Source:  model.SourceCrawl,
	}

	n, err := s.UpsertPractices(ctx, []model.Practice{p})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetPractice(ctx, "sunrise-care")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)
}

func TestSQLiteStore_GetPractice_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	got, err := s.GetPractice(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_UpsertPractices_Overwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertPractices(ctx, []model.Practice{
		{Slug: "a", Name: "Old Name", Phone: "5551112222", Source: model.SourceCrawl},
	})
	require.NoError(t, err)

	_, err = s.UpsertPractices(ctx, []model.Practice{
		{Slug: "a", Name: "New Name", Phone: "5553334444", Source: model.SourceCrawl},
	})
	require.NoError(t, err)

	got, err := s.GetPractice(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "5553334444", got.Phone)
}

func TestSQLiteStore_GetPractices(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertPractices(ctx, []model.Practice{
		{Slug: "a", Name: "A", Source: model.SourceCrawl},
		{Slug: "b", Name: "B", Source: model.SourceCrawl},
		{Slug: "c", Name: "C", Source: model.SourceCrawl},
	})
	require.NoError(t, err)

	out, err := s.GetPractices(ctx, []string{"a", "c", "zzz"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "A", out["a"].Name)
	assert.Equal(t, "C", out["c"].Name)
}

func TestSQLiteStore_SearchPractices(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertPractices(ctx, []model.Practice{
		{Slug: "sunrise-care", Name: "Sunrise Care", City: "Springfield", State: "IL", Services: "home care|hospice", Source: model.SourceCrawl},
		{Slug: "oak-clinic", Name: "Oak Clinic", City: "Albany", State: "NY", Services: "memory care", Source: model.SourceCrawl},
	})
	require.NoError(t, err)

	out, err := s.SearchPractices(ctx, SearchFilter{Query: "sunrise"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "sunrise-care", out[0].Slug)

	out, err = s.SearchPractices(ctx, SearchFilter{State: "NY"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "oak-clinic", out[0].Slug)

	out, err = s.SearchPractices(ctx, SearchFilter{Service: "hospice"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "sunrise-care", out[0].Slug)

	out, err = s.SearchPractices(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestSQLiteStore_ClinicianRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	accepting := true
	c := model.Clinician{
		PracticeSlug: "oak-clinic",
		Slug:         "jane-smith",
		Name:         "Dr. Jane Smith",
		Role:         "MD",
		ProfileURL:   "https://oakclinic.com/doctors/jane-smith/",
		Specialties:  []string{"Family Medicine", "Geriatrics"},
		Languages:    []string{"English", "Spanish"},
		Accepting:    &accepting,
		Education:    []string{"MD, State University"},
		SourceURL:    "https://oakclinic.com/doctors/jane-smith/",
		LastSeenAt:   time.Now().UTC().Truncate(time.Second),
	}

	n, err := s.UpsertClinicians(ctx, []model.Clinician{c})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, err := s.GetCliniciansByPractices(ctx, []string{"oak-clinic"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[c.Key()]
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Specialties, got.Specialties)
	assert.Equal(t, c.Languages, got.Languages)
	require.NotNil(t, got.Accepting)
	assert.True(t, *got.Accepting)
	assert.Equal(t, c.Education, got.Education)
	assert.True(t, c.LastSeenAt.Equal(got.LastSeenAt))
}

func TestSQLiteStore_ClinicianNullFields(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertClinicians(ctx, []model.Clinician{
		{PracticeSlug: "p", Slug: "minimal", Name: "Minimal"},
	})
	require.NoError(t, err)

	out, err := s.GetCliniciansByPractices(ctx, []string{"p"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out["p::minimal"]
	assert.Nil(t, got.Accepting)
	assert.Nil(t, got.Specialties)
	assert.True(t, got.LastSeenAt.IsZero())
}
