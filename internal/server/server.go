// Package server exposes the read-only HTTP API: freshness, suspended
// entities, run history, and latest landed payloads.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/db"
	"github.com/halcyon-research/market-cli/internal/extract"
	"github.com/halcyon-research/market-cli/internal/landing"
	"github.com/halcyon-research/market-cli/internal/store"
	"github.com/halcyon-research/market-cli/internal/watermark"
)

// Options tunes the freshness computations behind the API.
type Options struct {
	Staleness      time.Duration
	FailureCeiling int
}

// Server serves the read-only API.
type Server struct {
	watermarks *watermark.Store
	landings   *landing.Store
	catalog    *catalog.Store
	journal    store.Journal
	reg        *extract.Registry
	opts       Options
}

// New creates a server over the given pool and run journal.
func New(pool db.Pool, journal store.Journal, reg *extract.Registry, opts Options) *Server {
	if opts.Staleness <= 0 {
		opts.Staleness = 24 * time.Hour
	}
	if opts.FailureCeiling <= 0 {
		opts.FailureCeiling = 3
	}
	return &Server{
		watermarks: watermark.NewStore(pool),
		landings:   landing.NewStore(pool),
		catalog:    catalog.NewStore(pool),
		journal:    journal,
		reg:        reg,
		opts:       opts,
	}
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/freshness/{spec}", s.handleFreshness)
		r.Get("/suspended/{spec}", s.handleSuspended)
		r.Get("/runs", s.handleRuns)
		r.Get("/latest/{spec}/{symbol}", s.handleLatest)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) specTable(w http.ResponseWriter, r *http.Request) (string, bool) {
	spec, err := s.reg.Get(chi.URLParam(r, "spec"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown table")
		return "", false
	}
	return spec.Table, true
}

func (s *Server) handleFreshness(w http.ResponseWriter, r *http.Request) {
	table, ok := s.specTable(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	summary, err := s.watermarks.Summarize(r.Context(), table, now, s.opts.Staleness, s.opts.FailureCeiling)
	if err != nil {
		serveError(w, "summarize", err)
		return
	}
	rows, err := s.watermarks.ListFreshness(r.Context(), table, queryInt(r, "limit", 100))
	if err != nil {
		serveError(w, "list freshness", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":  summary,
		"entities": rows,
	})
}

func (s *Server) handleSuspended(w http.ResponseWriter, r *http.Request) {
	table, ok := s.specTable(w, r)
	if !ok {
		return
	}
	entities, err := s.watermarks.ListSuspended(r.Context(), table, s.opts.FailureCeiling)
	if err != nil {
		serveError(w, "list suspended", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suspended": entities})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	passes, err := s.journal.ListPasses(r.Context(), store.PassFilter{
		Spec:  r.URL.Query().Get("spec"),
		Limit: queryInt(r, "limit", 50),
	})
	if err != nil {
		serveError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": passes})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	table, ok := s.specTable(w, r)
	if !ok {
		return
	}

	entity, err := s.catalog.FindBySymbol(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		serveError(w, "find symbol", err)
		return
	}
	if entity == nil {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	rec, err := s.landings.Latest(r.Context(), table, entity.EntityID)
	if err != nil {
		serveError(w, "latest landing", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no landed response")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"landing": rec,
		"payload": json.RawMessage(rec.Payload),
	})
}

func serveError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
