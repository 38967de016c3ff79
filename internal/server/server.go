// Package server exposes the perspective engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
	"perspective/internal/usecase"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
	version         = "1.0.0"
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	IndexPath      string
	MetadataPath   string
	DefaultTopK    int

	// Keyword, when set, is resynced with the store after every load.
	Keyword usecase.CountedIndex
}

// Server serves perspective, search and maintenance endpoints.
type Server struct {
	engine   *usecase.PerspectiveEngine
	retrieve *usecase.RetrieveUseCase
	journal  port.Journal
	opts     Options
	handler  http.Handler
}

// New creates a server. journal may be nil.
func New(engine *usecase.PerspectiveEngine, retrieve *usecase.RetrieveUseCase, journal port.Journal, opts Options) *Server {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	s := &Server{
		engine:   engine,
		retrieve: retrieve,
		journal:  journal,
		opts:     opts,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/generate-perspective", s.handlePerspective)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	s.handler = withRequestLog(withCORS(mux, opts.AllowedOrigins))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("listening on %s", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type perspectiveRequest struct {
	Query   string `json:"query"`
	TopK    *int   `json:"top_k"`
	Persona string `json:"persona"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
	Mode  string `json:"mode"`
}

type searchResponse struct {
	Query   string              `json:"query"`
	Mode    string              `json:"mode"`
	Results []usecase.SearchHit `json:"results"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Perspective API",
		"version": version,
		"endpoints": map[string]string{
			"perspective": "/api/generate-perspective",
			"search":      "/api/search",
			"reload":      "/api/reload",
			"history":     "/api/history",
			"health":      "/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePerspective(w http.ResponseWriter, r *http.Request) {
	var req perspectiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}
	topK, ok := resolveTopK(w, req.TopK, s.opts.DefaultTopK)
	if !ok {
		return
	}

	if err := s.ensureLoaded(); err != nil {
		writeStoreError(w, err)
		return
	}

	p, err := s.engine.Answer(r.Context(), usecase.AnswerRequest{
		Query:   query,
		TopK:    topK,
		Persona: req.Persona,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, "Query cannot be empty")
			return
		}
		writeStoreError(w, err)
		return
	}
	if p.Degraded() {
		logging.Warnf("degraded perspective for %q: %s", query, p.Error)
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}
	topK, ok := resolveTopK(w, req.TopK, s.opts.DefaultTopK)
	if !ok {
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = r.URL.Query().Get("mode")
	}
	if mode == "" {
		mode = usecase.ModeSemantic
	}
	if mode != usecase.ModeSemantic && mode != usecase.ModeKeyword {
		writeError(w, http.StatusBadRequest, "mode must be semantic or keyword")
		return
	}

	if err := s.ensureLoaded(); err != nil {
		writeStoreError(w, err)
		return
	}

	hits, err := s.retrieve.Retrieve(r.Context(), query, topK, mode)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Mode: mode, Results: hits})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.load(); err != nil {
		writeStoreError(w, err)
		return
	}
	st, _ := s.engine.Store()
	writeJSON(w, http.StatusOK, st.Info())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "Journal is disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ensureLoaded loads the store on first use so a store created after
// startup is picked up without a reload.
func (s *Server) ensureLoaded() error {
	if _, err := s.engine.Store(); err == nil {
		return nil
	}
	return s.load()
}

// load reads the store from disk and brings the keyword index in line with it.
// A failed keyword sync only disables fresh keyword results.
func (s *Server) load() error {
	if err := s.engine.LoadVectorStore(s.opts.IndexPath, s.opts.MetadataPath); err != nil {
		return err
	}
	if s.opts.Keyword == nil {
		return nil
	}
	st, err := s.engine.Store()
	if err != nil {
		return err
	}
	if err := usecase.SyncKeywordIndex(st, s.opts.Keyword); err != nil {
		logging.Warnf("keyword index sync failed: %v", err)
	}
	return nil
}

func resolveTopK(w http.ResponseWriter, topK *int, def int) (int, bool) {
	if topK == nil {
		return def, true
	}
	if *topK < 1 {
		writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
		return 0, false
	}
	return *topK, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeStoreError maps retrieval failures to status codes. Store problems are
// reported as not found so clients prompt for re-ingestion.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrShapeMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrStoreNotFound), errors.Is(err, domain.ErrStoreNotLoaded):
		writeError(w, http.StatusNotFound, "Vector store not found. Please scrape and categorize posts first.")
	case errors.Is(err, domain.ErrCorruptStore),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrModelMismatch):
		writeError(w, http.StatusNotFound, "Vector store is unusable ("+err.Error()+"). Please re-ingest to reinitialize it.")
	default:
		logging.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while generating perspective: "+err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logging.Warnf("failed to write response: %v", err)
	}
}
