package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/care-contact/directory-cli/internal/config"
	"github.com/care-contact/directory-cli/internal/crawl"
	"github.com/care-contact/directory-cli/internal/extract"
	"github.com/care-contact/directory-cli/internal/fetch"
	"github.com/care-contact/directory-cli/internal/model"
	"github.com/care-contact/directory-cli/internal/store"
)

// memStore is a minimal in-memory Store for handler tests.
type memStore struct {
	practices  map[string]model.Practice
	clinicians map[string]model.Clinician
	failWrites bool
}

func newMemStore() *memStore {
	return &memStore{
		practices:  make(map[string]model.Practice),
		clinicians: make(map[string]model.Clinician),
	}
}

func (m *memStore) GetPractice(_ context.Context, slug string) (*model.Practice, error) {
	if p, ok := m.practices[slug]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *memStore) GetPractices(_ context.Context, slugs []string) (map[string]model.Practice, error) {
	out := make(map[string]model.Practice)
	for _, s := range slugs {
		if p, ok := m.practices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (m *memStore) UpsertPractices(_ context.Context, practices []model.Practice) (int, error) {
	if m.failWrites {
		return 0, assert.AnError
	}
	for _, p := range practices {
		m.practices[p.Slug] = p
	}
	return len(practices), nil
}

func (m *memStore) SearchPractices(_ context.Context, _ store.SearchFilter) ([]model.Practice, error) {
	return nil, nil
}

func (m *memStore) GetCliniciansByPractices(_ context.Context, _ []string) (map[string]model.Clinician, error) {
	return map[string]model.Clinician{}, nil
}

func (m *memStore) UpsertClinicians(_ context.Context, clinicians []model.Clinician) (int, error) {
	if m.failWrites {
		return 0, assert.AnError
	}
	for _, c := range clinicians {
		m.clinicians[c.Key()] = c
	}
	return len(clinicians), nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func newTestAPI(t *testing.T, s store.Store) *apiServer {
	t.Helper()
	fetcher := fetch.New(config.FetchConfig{UserAgent: "test", TimeoutSecs: 5, MaxBodyKB: 1024})
	vocab := extract.NewVocab(config.VocabConfig{
		JunkTitles: []string{"find a doctor", "insurance", "privacy", "terms"},
	})
	return &apiServer{
		cfg: config.ServerConfig{
			AdminToken:     "secret-token",
			AllowedOrigins: []string{"*"},
		},
		robots: fetcher.DisallowsAll,
		engine: crawl.New(config.CrawlConfig{
			MaxPages: 25, MaxDepth: 2, PageBudgetCap: 100, DepthBudgetCap: 5,
			FanOut: 4, EnrichFanOut: 2, DetailSegment: "practices",
		}, fetcher, vocab),
		store: s,
	}
}

func TestServe_Health(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	rec := httptest.NewRecorder()

	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServe_ScrapeMissingURL(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	rec := httptest.NewRecorder()

	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scrape", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":false`)
}

func TestServe_ScrapeUnknownMode(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	rec := httptest.NewRecorder()

	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/scrape?url=https://example.com&mode=spider", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_InsertRequiresToken(t *testing.T) {
	api := newTestAPI(t, newMemStore())

	// No token at all.
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/scrape?url=https://example.com&insert=true", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token, rejected before the url is even validated.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/scrape?insert=true", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	api.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServe_ScrapeSingleAndInsert(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`<html><head><title>Sunrise Care</title></head><body>
<h1>Sunrise Care</h1><a href="tel:5551234567">Call</a></body></html>`))
	}))
	defer site.Close()

	ms := newMemStore()
	api := newTestAPI(t, ms)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/scrape?url="+site.URL+"/practices/sunrise-care/&insert=true", nil)
	req.Header.Set("X-Admin-Token", "secret-token")
	api.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.Contains(t, rec.Body.String(), `"saved":true`)

	saved, ok := ms.practices["sunrise-care"]
	require.True(t, ok)
	assert.Equal(t, "5551234567", saved.Phone)
}

func TestServe_RobotsDisallowAll(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		_, _ = w.Write([]byte(`<html><body><h1>Hidden</h1></body></html>`))
	}))
	defer site.Close()

	api := newTestAPI(t, newMemStore())
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/scrape?url="+site.URL+"/practices/hidden/", nil))

	assert.Equal(t, http.StatusUnavailableForLegalReasons, rec.Code)
}

func TestServe_RobotsCheckNormalizesSchemelessURL(t *testing.T) {
	api := newTestAPI(t, newMemStore())

	var checked string
	api.robots = func(_ context.Context, siteURL string) bool {
		checked = siteURL
		return true
	}

	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/scrape?url=example.com/practices/hidden/", nil))

	assert.Equal(t, http.StatusUnavailableForLegalReasons, rec.Code)
	assert.Equal(t, "https://example.com/practices/hidden/", checked)
}

func TestServe_StoreFailureIs500(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`<html><head><title>X Care</title></head><body><h1>X Care</h1></body></html>`))
	}))
	defer site.Close()

	ms := newMemStore()
	ms.failWrites = true
	api := newTestAPI(t, ms)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/scrape?url="+site.URL+"/practices/x-care/&insert=true", nil)
	req.Header.Set("X-Admin-Token", "secret-token")
	api.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"scrape", "serve", "migrate", "search"})
}
