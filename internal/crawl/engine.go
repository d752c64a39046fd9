// Package crawl orchestrates a scrape run: resolving the entry URL,
// discovering detail pages, scraping them concurrently, and aggregating the
// records into one result.
package crawl

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/care-contact/directory-cli/internal/config"
	"github.com/care-contact/directory-cli/internal/discover"
	"github.com/care-contact/directory-cli/internal/extract"
	"github.com/care-contact/directory-cli/internal/fetch"
	"github.com/care-contact/directory-cli/internal/model"
)

// Request describes one crawl run. Zero budgets take configured defaults.
type Request struct {
	URL      string
	Mode     model.Mode
	Scope    model.Scope
	MaxPages int
	MaxDepth int
}

// Engine runs crawls. It is safe for concurrent use.
type Engine struct {
	cfg        config.CrawlConfig
	fetcher    *fetch.Fetcher
	matcher    *discover.PathMatcher
	disc       *discover.Discoverer
	vocab      *extract.Vocab
	classifier *extract.Classifier
	extractor  *extract.Extractor
	roster     *extract.RosterExtractor
	enricher   *extract.Enricher
	log        *zap.Logger
}

// New creates an Engine wired from config.
func New(cfg config.CrawlConfig, fetcher *fetch.Fetcher, vocab *extract.Vocab) *Engine {
	matcher := discover.NewPathMatcher(cfg.DetailSegment)
	return &Engine{
		cfg:        cfg,
		fetcher:    fetcher,
		matcher:    matcher,
		disc:       discover.New(matcher),
		vocab:      vocab,
		classifier: extract.NewClassifier(matcher, vocab),
		extractor:  extract.NewExtractor(vocab),
		roster:     extract.NewRosterExtractor(vocab),
		enricher:   extract.NewEnricher(fetcher, vocab),
		log:        zap.L().With(zap.String("component", "crawl")),
	}
}

// Run executes a crawl. Only entry-level failures return an error; per-page
// failures reduce the counters and nothing else.
func (e *Engine) Run(ctx context.Context, req Request) (model.CrawlResult, model.CrawlMeta, error) {
	meta := model.CrawlMeta{
		RunID:     uuid.New().String(),
		Mode:      req.Mode,
		Scope:     req.Scope,
		Timestamp: time.Now().UTC(),
	}
	if meta.Mode == "" {
		meta.Mode = model.ModeSingle
	}
	if meta.Scope == "" {
		meta.Scope = model.ScopeBoth
	}

	entry, err := NormalizeEntryURL(req.URL)
	if err != nil {
		return model.CrawlResult{}, meta, err
	}

	pages := clampBudget(req.MaxPages, e.cfg.MaxPages, e.cfg.PageBudgetCap)
	depth := clampBudget(req.MaxDepth, e.cfg.MaxDepth, e.cfg.DepthBudgetCap)

	e.log.Info("starting crawl",
		zap.String("run_id", meta.RunID),
		zap.String("url", entry),
		zap.String("mode", string(meta.Mode)),
		zap.Int("max_pages", pages),
		zap.Int("max_depth", depth),
	)

	run := &runState{engine: e, scope: meta.Scope, maxPages: pages}

	switch meta.Mode {
	case model.ModeSingle:
		err = run.single(ctx, entry)
	case model.ModePagination:
		run.pagination(ctx, entry)
	case model.ModeDirectory:
		err = run.directory(ctx, entry, depth, &meta)
	default:
		return model.CrawlResult{}, meta, eris.Errorf("crawl: unknown mode %q", req.Mode)
	}
	if err != nil {
		return model.CrawlResult{}, meta, err
	}

	result := run.aggregate()
	meta.PagesVisited = run.visited
	meta.PagesFailed = run.failed
	meta.PagesSkipped = run.skipped

	e.log.Info("crawl finished",
		zap.String("run_id", meta.RunID),
		zap.Int("pages_visited", meta.PagesVisited),
		zap.Int("pages_failed", meta.PagesFailed),
		zap.Int("practices", len(result.Practices)),
		zap.Int("clinicians", len(result.Clinicians)),
	)
	return result, meta, nil
}

// runState accumulates one run's records and counters. Scraping fan-out
// goroutines share it behind the mutex.
type runState struct {
	engine   *Engine
	scope    model.Scope
	maxPages int

	mu         sync.Mutex
	visited    int
	failed     int
	skipped    int
	practices  []model.Practice
	clinicians []model.Clinician
}

// single scrapes exactly one page without classification: the caller pointed
// at this URL deliberately.
func (r *runState) single(ctx context.Context, entry string) error {
	page, err := r.engine.fetcher.Fetch(ctx, entry)
	if err != nil {
		return eris.Wrap(err, "crawl: fetch entry page")
	}
	doc, err := page.Doc()
	if err != nil {
		return eris.Wrap(err, "crawl: parse entry page")
	}
	r.visited++

	p := r.engine.extractor.Fields(doc, page.URL)
	p.Slug = discover.DeriveSlug(page.URL, p.Name)
	p.Source = model.SourceSingle
	r.practices = append(r.practices, p)

	if r.scope != model.ScopePractices {
		people := r.engine.roster.Roster(doc, page.URL, p.Slug)
		people = r.engine.enricher.EnrichAll(ctx, people, r.engine.cfg.EnrichFanOut)
		r.clinicians = append(r.clinicians, people...)
	}
	return nil
}

// pagination walks rel-next listing pages collecting detail links, then
// scrapes them with whatever page budget remains.
func (r *runState) pagination(ctx context.Context, entry string) {
	if r.engine.matcher.IsDetailURL(entry) {
		r.scrapeAll(ctx, []string{entry})
		return
	}

	seen := map[string]struct{}{entry: {}}
	var detailURLs []string
	detailSeen := make(map[string]struct{})
	cur := entry

	for cur != "" && r.visited < r.maxPages {
		page, err := r.engine.fetcher.Fetch(ctx, cur)
		r.visited++
		if err != nil {
			r.failed++
			break
		}
		doc, err := page.Doc()
		if err != nil {
			r.failed++
			break
		}

		for _, link := range r.engine.disc.DetailLinks(doc, page.URL, 0) {
			if _, dup := detailSeen[link]; dup {
				continue
			}
			detailSeen[link] = struct{}{}
			detailURLs = append(detailURLs, link)
		}

		next := discover.NextPage(doc, page.URL)
		if next == "" {
			break
		}
		if _, cycle := seen[next]; cycle {
			break
		}
		seen[next] = struct{}{}
		cur = next
	}

	r.scrapeAll(ctx, detailURLs)
}

// directory runs a depth-bounded traversal from the entry listing. When the
// site exposes no discoverable links it falls back to the sitemap. A failed
// entry page fails the whole run; failures deeper in the traversal only bump
// the counter.
func (r *runState) directory(ctx context.Context, entry string, maxDepth int, meta *model.CrawlMeta) error {
	if r.engine.matcher.IsDetailURL(entry) {
		r.scrapeAll(ctx, []string{entry})
		return nil
	}

	type item struct {
		url   string
		depth int
	}
	queue := []item{{entry, 0}}
	seen := map[string]struct{}{entry: {}}
	var detailURLs []string
	detailSeen := make(map[string]struct{})

	for len(queue) > 0 && r.visited < r.maxPages {
		cur := queue[0]
		queue = queue[1:]

		page, err := r.engine.fetcher.Fetch(ctx, cur.url)
		r.visited++
		if err != nil {
			if cur.url == entry {
				return eris.Wrap(err, "crawl: fetch entry page")
			}
			r.failed++
			continue
		}
		doc, err := page.Doc()
		if err != nil {
			if cur.url == entry {
				return eris.Wrap(err, "crawl: parse entry page")
			}
			r.failed++
			continue
		}

		for _, link := range r.engine.disc.DetailLinks(doc, page.URL, 0) {
			if _, dup := detailSeen[link]; dup {
				continue
			}
			detailSeen[link] = struct{}{}
			detailURLs = append(detailURLs, link)
		}

		// Listing pages reachable within the depth budget: further
		// segment-bearing non-detail links and the pagination chain.
		if cur.depth+1 > maxDepth {
			continue
		}
		for _, link := range r.listingLinks(doc, page.URL) {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			queue = append(queue, item{link, cur.depth + 1})
		}
	}

	if len(detailURLs) == 0 {
		detailURLs = r.engine.disc.FromSitemap(ctx, r.engine.fetcher, entry)
		meta.UsedSitemap = len(detailURLs) > 0
	}

	r.scrapeAll(ctx, detailURLs)
	return nil
}

// listingLinks finds anchors that look like further listing or pagination
// pages: same-host, segment-bearing, not detail-shaped.
func (r *runState) listingLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := discover.ResolveURL(baseURL, href)
		if abs == "" {
			return
		}
		u, err := url.Parse(abs)
		if err != nil || u.Host != base.Host {
			return
		}
		if !r.engine.matcher.ContainsSegment(u.Path) || r.engine.matcher.IsDetailPath(u.Path) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	if next := discover.NextPage(doc, baseURL); next != "" {
		if _, dup := seen[next]; !dup {
			links = append(links, next)
		}
	}
	return links
}

// scrapeAll fetches and extracts detail pages concurrently, bounded by the
// remaining page budget and the configured fan-out.
func (r *runState) scrapeAll(ctx context.Context, urls []string) {
	r.mu.Lock()
	remaining := r.maxPages - r.visited
	r.mu.Unlock()
	if remaining <= 0 {
		return
	}
	if len(urls) > remaining {
		urls = urls[:remaining]
	}

	fanOut := r.engine.cfg.FanOut
	if fanOut < 1 {
		fanOut = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, u := range urls {
		g.Go(func() error {
			r.scrapeDetail(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
}

// scrapeDetail processes one candidate detail page: fetch, classify, extract,
// roster, enrich. Every failure path just bumps a counter.
func (r *runState) scrapeDetail(ctx context.Context, pageURL string) {
	page, err := r.engine.fetcher.Fetch(ctx, pageURL)
	r.mu.Lock()
	r.visited++
	r.mu.Unlock()
	if err != nil {
		r.engine.log.Debug("detail fetch failed", zap.String("url", pageURL), zap.Error(err))
		r.count(&r.failed)
		return
	}
	doc, err := page.Doc()
	if err != nil {
		r.count(&r.failed)
		return
	}

	kind := r.engine.classifier.Classify(page.URL, doc)
	if !kind.IsPracticeDetail {
		r.engine.log.Debug("rejected by classifier", zap.String("url", page.URL))
		r.count(&r.skipped)
		return
	}

	p := r.engine.extractor.Fields(doc, page.URL)
	p.Slug = discover.DeriveSlug(page.URL, p.Name)
	p.Source = model.SourceCrawl

	var people []model.Clinician
	if r.scope != model.ScopePractices {
		people = r.engine.roster.Roster(doc, page.URL, p.Slug)
		people = r.engine.enricher.EnrichAll(ctx, people, r.engine.cfg.EnrichFanOut)
	}

	r.mu.Lock()
	r.practices = append(r.practices, p)
	r.clinicians = append(r.clinicians, people...)
	r.mu.Unlock()
}

func (r *runState) count(c *int) {
	r.mu.Lock()
	*c++
	r.mu.Unlock()
}

// aggregate dedupes the collected records: best quality score per practice
// slug, first seen per clinician key, junk names dropped, scope applied.
func (r *runState) aggregate() model.CrawlResult {
	var result model.CrawlResult

	if r.scope != model.ScopeClinicians {
		best := make(map[string]int) // slug -> index into result.Practices
		for _, p := range r.practices {
			if p.Slug == "" || r.engine.vocab.IsJunkTitle(p.Name) {
				continue
			}
			if i, ok := best[p.Slug]; ok {
				if p.QualityScore() > result.Practices[i].QualityScore() {
					result.Practices[i] = p
				}
				continue
			}
			best[p.Slug] = len(result.Practices)
			result.Practices = append(result.Practices, p)
		}
	}

	if r.scope != model.ScopePractices {
		seen := make(map[string]struct{})
		for _, c := range r.clinicians {
			if c.Slug == "" || r.engine.vocab.IsJunkTitle(c.Name) {
				continue
			}
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
			result.Clinicians = append(result.Clinicians, c)
		}
	}
	return result
}

// NormalizeEntryURL validates an entry URL, defaulting a missing scheme to
// https.
func NormalizeEntryURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("crawl: url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "crawl: parse url %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("crawl: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", eris.Errorf("crawl: url missing host: %s", raw)
	}
	return u.String(), nil
}

// clampBudget applies the default for zero and clamps to [1, cap].
func clampBudget(requested, def, max int) int {
	v := requested
	if v == 0 {
		v = def
	}
	if v < 1 {
		v = 1
	}
	if max > 0 && v > max {
		v = max
	}
	return v
}
