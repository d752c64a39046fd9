package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/care-contact/directory-cli/internal/config"
)

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		UserAgent:   "CareContactBot/test",
		TimeoutSecs: 2,
		MaxBodyKB:   64,
	}
}

func TestFetch_OK(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Sunrise Care</title></head><body><h1>Sunrise Care</h1></body></html>`))
	}))
	defer srv.Close()

	f := New(testConfig())
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "CareContactBot/test", gotUA)
	assert.Contains(t, page.HTML, "Sunrise Care")

	doc, err := page.Doc()
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Care", doc.Find("h1").Text())
}

func TestFetch_FollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		_, _ = w.Write([]byte(`<html><body>landed</body></html>`))
	}))
	defer srv.Close()

	f := New(testConfig())
	page, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", page.URL)
	assert.Contains(t, page.HTML, "landed")
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.Status)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig()
	f := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestFetch_BadURL(t *testing.T) {
	f := New(testConfig())
	_, err := f.Fetch(context.Background(), "://not-a-url")
	assert.Error(t, err)
}

func TestDisallowsAll(t *testing.T) {
	tests := []struct {
		name   string
		robots string
		status int
		want   bool
	}{
		{
			name:   "blanket disallow",
			robots: "User-agent: *\nDisallow: /\n",
			status: 200,
			want:   true,
		},
		{
			name:   "partial disallow",
			robots: "User-agent: *\nDisallow: /admin/\n",
			status: 200,
			want:   false,
		},
		{
			name:   "disallow for specific bot only",
			robots: "User-agent: BadBot\nDisallow: /\n\nUser-agent: *\nDisallow:\n",
			status: 200,
			want:   false,
		},
		{
			name:   "missing robots",
			robots: "",
			status: 404,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/robots.txt" {
					w.WriteHeader(404)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.robots))
			}))
			defer srv.Close()

			f := New(testConfig())
			assert.Equal(t, tt.want, f.DisallowsAll(context.Background(), srv.URL+"/practices/"))
		})
	}
}
