package delegation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/pkg/cerr"
)

// Server exposes the delegation registry over JSON.
type Server struct {
	registry *Registry
}

func NewServer(registry *Registry) *Server {
	return &Server{registry: registry}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/delegations", s.issue)
	r.Get("/delegations/{user}/{executor}", s.get)
	r.Delete("/delegations/{user}/{executor}", s.revoke)
}

type issueRequest struct {
	User       string `json:"user"`
	Executor   string `json:"executor"`
	DailyLimit int64  `json:"dailyLimit"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	caller := r.Header.Get(permission.CallerHeader)
	if caller == "" {
		caller = req.User
	}
	d, err := s.registry.Issue(ctx, caller, req.User, req.Executor, req.DailyLimit)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, d)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.registry.Get(ctx, chi.URLParam(r, "user"), chi.URLParam(r, "executor"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if d == nil {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "delegation not found", nil)
		return
	}
	cerr.SetJSONResponse(ctx, d)
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.registry.Revoke(ctx, chi.URLParam(r, "user"), chi.URLParam(r, "executor")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"status": "revoked"})
}
