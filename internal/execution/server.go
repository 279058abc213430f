package execution

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/pkg/cerr"
)

// Server exposes the trigger endpoint and the record log over JSON.
type Server struct {
	engine          *Engine
	executorAddress string
}

func NewServer(engine *Engine, executorAddress string) *Server {
	return &Server{engine: engine, executorAddress: executorAddress}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/swaps", s.execute)
	r.Get("/swaps", s.history)
}

type swapRequest struct {
	User   string `json:"user"`
	Amount int64  `json:"amount"`
}

// execute runs one trigger attempt. The executor identity comes from
// the caller header, defaulting to this service's configured executor
// address. Negative polling outcomes come back as 200 with a tagged
// result; only structural and authorization failures are errors.
func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	executor := r.Header.Get(permission.CallerHeader)
	if executor == "" {
		executor = s.executorAddress
	}
	res, err := s.engine.ExecuteSwap(ctx, executor, req.User, req.Amount)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, res)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := s.engine.History(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, recs)
}
