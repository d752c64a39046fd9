package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/care-contact/directory-cli/internal/config"
	"github.com/care-contact/directory-cli/internal/crawl"
	"github.com/care-contact/directory-cli/internal/extract"
	"github.com/care-contact/directory-cli/internal/fetch"
	"github.com/care-contact/directory-cli/internal/model"
	"github.com/care-contact/directory-cli/internal/reconcile"
	"github.com/care-contact/directory-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scrape API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		fetcher := fetch.New(cfg.Fetch)
		api := &apiServer{
			cfg:    cfg.Server,
			robots: fetcher.DisallowsAll,
			engine: crawl.New(cfg.Crawl, fetcher, extract.NewVocab(cfg.Vocab)),
			store:  s,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds the handler dependencies. robots reports whether a site's
// robots.txt disallows all crawling.
type apiServer struct {
	cfg    config.ServerConfig
	robots func(ctx context.Context, siteURL string) bool
	engine *crawl.Engine
	store  store.Store
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Token"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/scrape", s.handleScrape)
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScrape runs a crawl synchronously within the request. Auth is checked
// before any other work when persistence is requested.
func (s *apiServer) handleScrape(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	insert := q.Get("insert") == "true"
	if insert && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	rawURL := q.Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	req := crawl.Request{
		URL:   rawURL,
		Mode:  model.ModeSingle,
		Scope: model.ScopeBoth,
	}
	if m := q.Get("mode"); m != "" {
		switch model.Mode(m) {
		case model.ModeSingle, model.ModeDirectory, model.ModePagination:
			req.Mode = model.Mode(m)
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", m))
			return
		}
	}
	if sc := q.Get("scope"); sc != "" {
		switch model.Scope(sc) {
		case model.ScopeBoth, model.ScopePractices, model.ScopeClinicians:
			req.Scope = model.Scope(sc)
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown scope %q", sc))
			return
		}
	}
	var err error
	if req.MaxPages, err = intParam(q.Get("maxPages")); err != nil {
		writeError(w, http.StatusBadRequest, "maxPages must be an integer")
		return
	}
	if req.MaxDepth, err = intParam(q.Get("maxDepth")); err != nil {
		writeError(w, http.StatusBadRequest, "maxDepth must be an integer")
		return
	}

	// The robots check needs the same scheme-normalized URL the crawl will
	// use; a scheme-less input would otherwise slip past the gate.
	if req.Mode == model.ModeSingle {
		if norm, err := crawl.NormalizeEntryURL(rawURL); err == nil && s.robots(r.Context(), norm) {
			writeError(w, http.StatusUnavailableForLegalReasons, "robots.txt disallows scraping this site")
			return
		}
	}

	result, meta, err := s.engine.Run(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		var httpErr *fetch.HTTPError
		if errors.As(err, &httpErr) || errors.Is(err, fetch.ErrTimeout) {
			status = http.StatusBadGateway
		}
		writeError(w, status, eris.Cause(err).Error())
		return
	}

	if insert {
		if _, _, err := reconcile.New(s.store).SaveResult(r.Context(), result); err != nil {
			zap.L().Error("persist scrape result", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save results")
			return
		}
		meta.Saved = true
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"data": map[string]any{
			"practices":  result.Practices,
			"clinicians": result.Clinicians,
		},
		"meta": map[string]any{
			"run_id":    meta.RunID,
			"mode":      meta.Mode,
			"scope":     meta.Scope,
			"counts":    result.Counts(),
			"pages":     map[string]int{"visited": meta.PagesVisited, "failed": meta.PagesFailed, "skipped": meta.PagesSkipped},
			"saved":     meta.Saved,
			"timestamp": meta.Timestamp,
		},
	})
}

func (s *apiServer) authorized(r *http.Request) bool {
	token := s.cfg.AdminToken
	if token == "" {
		return false
	}
	given := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(given), []byte(token)) == 1
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
