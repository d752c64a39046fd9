// Package fetch provides the time-bounded HTTP fetcher the crawl pipeline
// reads pages through.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/care-contact/directory-cli/internal/config"
)

// ErrTimeout reports that a fetch exceeded its deadline.
var ErrTimeout = errors.New("fetch: timeout")

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: HTTP %d for %s", e.Status, e.URL)
}

// Page is one successfully fetched document. URL is the final URL after
// redirects.
type Page struct {
	URL  string
	HTML string

	once sync.Once
	doc  *goquery.Document
	err  error
}

// Doc parses the page HTML into a goquery document, once.
func (p *Page) Doc() (*goquery.Document, error) {
	p.once.Do(func() {
		p.doc, p.err = goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
		if p.err != nil {
			p.err = eris.Wrap(p.err, "fetch: parse html")
		}
	})
	return p.doc, p.err
}

// Fetcher issues GET requests with a fixed user agent, a per-fetch timeout,
// and a per-host politeness limiter. It never retries: a failed fetch aborts
// only the page being processed.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New creates a Fetcher from config.
func New(cfg config.FetchConfig) *Fetcher {
	maxBody := int64(cfg.MaxBodyKB) * 1024
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	rps := rate.Limit(cfg.HostRPS)
	if rps <= 0 {
		rps = rate.Inf
	}
	burst := cfg.HostBurst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.Timeout(),
				}).DialContext,
				TLSHandshakeTimeout: cfg.Timeout(),
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
		limiters:  make(map[string]*rate.Limiter),
		rps:       rps,
		burst:     burst,
	}
}

// limiter returns the politeness limiter for a host, creating it on first use.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.rps, f.burst)
		f.limiters[host] = l
	}
	return l
}

// Fetch GETs a URL and returns the page, following redirects. Non-2xx
// responses return *HTTPError; deadline expiry returns an error wrapping
// ErrTimeout.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", targetURL)
	}

	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, eris.Wrapf(ErrTimeout, "fetch: %s", targetURL)
		}
		return nil, eris.Wrapf(err, "fetch: get %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, URL: targetURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		if isTimeout(err) {
			return nil, eris.Wrapf(ErrTimeout, "fetch: %s", targetURL)
		}
		return nil, eris.Wrapf(err, "fetch: read body %s", targetURL)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{URL: finalURL, HTML: string(body)}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
