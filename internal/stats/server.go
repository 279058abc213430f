package stats

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chainagent/chainagent/pkg/cerr"
)

// Server exposes the derived counters over JSON.
type Server struct {
	agg *Aggregator
}

func NewServer(agg *Aggregator) *Server {
	return &Server{agg: agg}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/stats/global", s.global)
	r.Get("/stats/users/{user}", s.user)
}

func (s *Server) global(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cerr.SetJSONResponse(ctx, s.agg.Global(ctx))
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.agg.User(ctx, chi.URLParam(r, "user"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, u)
}
