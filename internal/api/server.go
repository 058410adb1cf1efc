// Package api exposes the prospecting pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/outreach"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/research"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/resilience"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/verify"
)

// ownerHeader scopes every request to a tenant.
const ownerHeader = "X-Owner-ID"

// Server wires the domain services behind the HTTP API.
type Server struct {
	store          store.Store
	research       *research.Orchestrator
	verify         *verify.Service
	outreach       *outreach.Dispatcher
	defaultOwnerID string
}

// Config assembles a Server.
type Config struct {
	Store          store.Store
	Research       *research.Orchestrator
	Verify         *verify.Service
	Outreach       *outreach.Dispatcher
	DefaultOwnerID string
}

// NewServer creates the API server.
func NewServer(cfg Config) *Server {
	return &Server{
		store:          cfg.Store,
		research:       cfg.Research,
		verify:         cfg.Verify,
		outreach:       cfg.Outreach,
		defaultOwnerID: cfg.DefaultOwnerID,
	}
}

// Handler builds the chi router with CORS for the given origins.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", ownerHeader},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/research", s.handleCreateResearch)
		r.Get("/research", s.handleListRuns)
		r.Get("/research/{id}", s.handleGetRun)

		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/{id}", s.handleGetLead)
		r.Patch("/leads/{id}", s.handlePatchLead)
		r.Delete("/leads/{id}", s.handleDeleteLead)
		r.Get("/leads/{id}/interactions", s.handleListInteractions)
		r.Post("/leads/{id}/interactions", s.handleLogInteraction)
		r.Post("/leads/{id}/verify", s.handleVerifyLead)

		r.Post("/verify/batch", s.handleVerifyBatch)
		r.Get("/verify/pending", s.handleVerifyPending)

		r.Post("/outreach/send", s.handleOutreachSend)
	})

	return r
}

// ownerID resolves the tenant for a request. The header wins over the
// configured default.
func (s *Server) ownerID(r *http.Request) string {
	if owner := r.Header.Get(ownerHeader); owner != "" {
		return owner
	}
	return s.defaultOwnerID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain errors onto the API status taxonomy:
// validation 400, missing entity 404, failing upstream provider 502,
// everything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, research.ErrInvalidParams),
		errors.Is(err, verify.ErrNoWebsite),
		errors.Is(err, outreach.ErrNoPhone),
		errors.Is(err, outreach.ErrNoMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case resilience.IsTransient(err):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// requireOwner writes a 400 and returns "" when no tenant can be resolved.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) string {
	owner := s.ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required")
	}
	return owner
}

func queryInt(r *http.Request, key string) (*int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
