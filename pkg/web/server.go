package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ritzau/sbom-analyzer/pkg/analysis"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
	"github.com/ritzau/sbom-analyzer/pkg/model"
	"github.com/ritzau/sbom-analyzer/pkg/queryexpr"
)

// Server exposes the analysis service over HTTP. It only translates
// requests and JSON; all semantics live in the analysis package.
type Server struct {
	router  *mux.Router
	service *analysis.AnalysisService
}

// NewServer creates a web server around an analysis service
func NewServer(service *analysis.AnalysisService) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	s.router.HandleFunc("/api/v2/analysis/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v2/analysis/component", s.handleComponent).Methods("GET")
	s.router.HandleFunc("/api/v2/sbom/{id}/analysis/component", s.handleSbomComponent).Methods("GET")
	s.router.HandleFunc("/api/v2/analysis/cache", s.handleClearCache).Methods("DELETE")
}

// Handler returns the routing handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.service.ClearAllGraphs()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	query, options, paginated, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := s.service.Retrieve(r.Context(), query, options, paginated)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

func (s *Server) handleSbomComponent(w http.ResponseWriter, r *http.Request) {
	sbomID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sbom id: %v", err), http.StatusBadRequest)
		return
	}

	query, options, paginated, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := s.service.RetrieveSingle(r.Context(), sbomID, query, options, paginated)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

// parseQuery turns request parameters into a graph query, traversal
// options and a pagination window. Exactly one of q, id, name, purl or
// cpe selects the starting nodes.
func parseQuery(r *http.Request) (analysis.GraphQuery, model.QueryOptions, model.Paginated, error) {
	var (
		query   analysis.GraphQuery
		options model.QueryOptions
		page    model.Paginated
	)

	params := r.URL.Query()

	selectors := 0
	if v := params.Get("q"); v != "" {
		expr, err := queryexpr.Parse(v)
		if err != nil {
			return query, options, page, fmt.Errorf("invalid query expression: %w", err)
		}
		query = analysis.ByExpression(expr)
		selectors++
	}
	if v := params.Get("id"); v != "" {
		query = analysis.ByID(v)
		selectors++
	}
	if v := params.Get("name"); v != "" {
		query = analysis.ByName(v)
		selectors++
	}
	if v := params.Get("purl"); v != "" {
		query = analysis.ByPurl(v)
		selectors++
	}
	if v := params.Get("cpe"); v != "" {
		query = analysis.ByCpe(v)
		selectors++
	}
	if selectors != 1 {
		return query, options, page, fmt.Errorf("exactly one of q, id, name, purl or cpe is required")
	}

	var err error
	if options.Ancestors, err = intParam(params.Get("ancestors"), 0); err != nil {
		return query, options, page, fmt.Errorf("invalid ancestors: %w", err)
	}
	if options.Descendants, err = intParam(params.Get("descendants"), 0); err != nil {
		return query, options, page, fmt.Errorf("invalid descendants: %w", err)
	}
	if rels := params.Get("relationships"); rels != "" {
		for _, rel := range strings.Split(rels, ",") {
			options.Relationships = append(options.Relationships, model.Relationship(strings.TrimSpace(rel)))
		}
	}

	if page.Offset, err = intParam(params.Get("offset"), 0); err != nil {
		return query, options, page, fmt.Errorf("invalid offset: %w", err)
	}
	if page.Limit, err = intParam(params.Get("limit"), 0); err != nil {
		return query, options, page, fmt.Errorf("invalid limit: %w", err)
	}

	return query, options, page, nil
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err.Error())
	}
}
