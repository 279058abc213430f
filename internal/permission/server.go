package permission

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chainagent/chainagent/internal/quota"
	"github.com/chainagent/chainagent/pkg/cerr"
)

// CallerHeader carries the caller's address on mutating requests. When
// absent the caller defaults to the targeted user, matching the local
// single-operator deployment.
const CallerHeader = "X-Caller-Address"

// Server exposes the permission registry and its quota reads over
// JSON.
type Server struct {
	registry *Registry
	ledger   *quota.Ledger
	now      func() time.Time
}

func NewServer(registry *Registry, ledger *quota.Ledger) *Server {
	return &Server{registry: registry, ledger: ledger, now: time.Now}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/permissions", s.grant)
	r.Get("/permissions/{user}", s.get)
	r.Delete("/permissions/{user}", s.revoke)
	r.Get("/permissions/{user}/quota", s.quota)
}

type grantRequest struct {
	User         string `json:"user"`
	Token        string `json:"token"`
	DailyLimit   int64  `json:"dailyLimit"`
	TotalLimit   int64  `json:"totalLimit"`
	DurationDays int64  `json:"durationDays"`
	TargetDipBps int64  `json:"targetDipBps"`
}

func (s *Server) grant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	p, err := s.registry.Grant(ctx, req.User, req.Token, req.DailyLimit, req.TotalLimit, req.DurationDays, req.TargetDipBps)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := chi.URLParam(r, "user")
	p, err := s.registry.Get(ctx, user)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if p == nil {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "permission not found", nil)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := chi.URLParam(r, "user")
	caller := r.Header.Get(CallerHeader)
	if caller == "" {
		caller = user
	}
	if err := s.registry.Revoke(ctx, caller, user); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"status": "revoked"})
}

type quotaResponse struct {
	User           string `json:"user"`
	DailySpent     int64  `json:"dailySpent"`
	AvailableToday int64  `json:"availableToday"`
	RemainingTotal int64  `json:"remainingTotal"`
	TotalSpent     int64  `json:"totalSpent"`
}

func (s *Server) quota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := chi.URLParam(r, "user")
	now := s.now()

	availToday, err := s.ledger.AvailableToday(ctx, user, now)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	availTotal, err := s.ledger.AvailableTotal(ctx, user)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, quotaResponse{
		User:           user,
		DailySpent:     s.ledger.DailySpent(user, now),
		AvailableToday: availToday,
		RemainingTotal: availTotal,
		TotalSpent:     s.registry.TotalSpent(ctx, user),
	})
}
