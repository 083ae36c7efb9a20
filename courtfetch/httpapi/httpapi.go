// Package httpapi is the HTTP front end: catalog lookups, run submission,
// the live transcript of the current run, and the run history.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/hcbot/courtfetch"
)

// Runner executes batches. *courtfetch.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, run *courtfetch.Run, cases []courtfetch.CaseRequest) error
	Current() *courtfetch.Run
}

// Server holds the handler dependencies.
type Server struct {
	runner  Runner
	catalog *courtfetch.Catalog
	history *courtfetch.History
	logger  *slog.Logger
}

// New creates a Server. history may be nil, in which case the history
// endpoints report nothing.
func New(runner Runner, catalog *courtfetch.Catalog, history *courtfetch.History, logger *slog.Logger) *Server {
	if catalog == nil {
		catalog = courtfetch.NewCatalog(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, catalog: catalog, history: history, logger: logger}
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(apiHeaders)
	r.Use(limitJSONBody(maxBody))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/courts", s.handleCourts)
		r.Get("/case-types", s.handleCaseTypes)
	})

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/current/log", s.handleCurrentLog)
		r.Get("/current/documents/{index}", s.handleDocument)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/report", s.handleReport)
	})
	return r
}

type courtView struct {
	courtfetch.Court
	Benches []courtfetch.Bench `json:"benches,omitempty"`
}

func (s *Server) handleCourts(w http.ResponseWriter, _ *http.Request) {
	var out []courtView
	for _, c := range courtfetch.Courts() {
		out = append(out, courtView{Court: c, Benches: courtfetch.Benches(c.Code)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCaseTypes(w http.ResponseWriter, r *http.Request) {
	bench := r.URL.Query().Get("bench")
	if bench == "" {
		writeError(w, http.StatusBadRequest, errors.New("bench is required"))
		return
	}
	types := s.catalog.FilterCaseTypes(bench, r.URL.Query().Get("q"))
	if types == nil {
		types = []courtfetch.CaseType{}
	}
	writeJSON(w, http.StatusOK, types)
}

// SubmitRequest is the body of POST /api/runs.
type SubmitRequest struct {
	Court string               `json:"court"` // default court for rows naming none
	Rows  []courtfetch.CaseRow `json:"rows"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	court := req.Court
	if court == "" {
		court = courtfetch.DefaultCourt
	}
	cases, err := s.catalog.Resolve(court, req.Rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	run := courtfetch.NewRun(courtfetch.WithRunRows(req.Rows), courtfetch.WithRunLogger(s.logger))
	s.logger.Info("httpapi: run submitted", "run", run.ID, "cases", len(cases))
	err = s.runner.Run(r.Context(), run, cases)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, run.Summary())
	case errors.Is(err, courtfetch.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, courtfetch.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, courtfetch.ErrNoRecognizer):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Warn("httpapi: run ended with error", "run", run.ID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "run": run.Summary()})
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []*courtfetch.RunSummary{})
		return
	}
	runs, err := s.history.ListRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		s.logger.Error("httpapi: list runs", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*courtfetch.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*courtfetch.RunSummary, bool) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, courtfetch.ErrRunNotFound)
		return nil, false
	}
	sum, err := s.history.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, courtfetch.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		s.logger.Error("httpapi: get run", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return sum, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if sum, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, sum)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if err := courtfetch.WriteReport(w, sum); err != nil {
		s.logger.Warn("httpapi: write report", "error", err)
	}
}

// LogView is the live transcript of the current run.
type LogView struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Done  bool     `json:"done"`
	Lines []string `json:"lines"`
}

func (s *Server) handleCurrentLog(w http.ResponseWriter, _ *http.Request) {
	run := s.runner.Current()
	if run == nil {
		writeError(w, http.StatusNotFound, errors.New("no run yet"))
		return
	}
	lines := run.Lines()
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, LogView{ID: run.ID, Label: run.Label, Done: run.Done(), Lines: lines})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	run := s.runner.Current()
	if run == nil {
		writeError(w, http.StatusNotFound, errors.New("no run yet"))
		return
	}
	results := run.Results()
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 || i >= len(results) {
		writeError(w, http.StatusNotFound, errors.New("no such document"))
		return
	}
	doc := results[i]
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName()))
	w.Write(doc.Data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
