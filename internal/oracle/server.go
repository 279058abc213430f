package oracle

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chainagent/chainagent/pkg/cerr"
)

func parseBpsQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("targetDipBps")
	if raw == "" {
		return 0, cerr.NewError(cerr.InvalidArgument, "targetDipBps query parameter is required", nil)
	}
	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, cerr.NewError(cerr.InvalidArgument, "targetDipBps must be an integer", err)
	}
	return bps, nil
}

// Server exposes the mock oracle's read side and its operator
// controls.
type Server struct {
	oracle *MockOracle
}

func NewServer(oracle *MockOracle) *Server {
	return &Server{oracle: oracle}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/price/{token}", s.price)
	r.Post("/price/{token}", s.update)
	r.Post("/price/{token}/dip", s.dip)
	r.Post("/price/{token}/reset", s.reset)
	r.Get("/price/{token}/dip-check", s.dipCheck)
}

type priceResponse struct {
	Token string `json:"token"`
	Price int64  `json:"price"`
}

func (s *Server) price(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	price, err := s.oracle.GetPrice(ctx, token)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, priceResponse{Token: token, Price: price})
}

type updateRequest struct {
	Price int64 `json:"price"`
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := s.oracle.UpdatePrice(token, req.Price); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, priceResponse{Token: token, Price: req.Price})
}

type dipRequest struct {
	DipBps int64 `json:"dipBps"`
}

func (s *Server) dip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	var req dipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	newPrice, err := s.oracle.SimulateDip(token, req.DipBps)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, priceResponse{Token: token, Price: newPrice})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	if err := s.oracle.Reset(token); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	price, err := s.oracle.GetPrice(ctx, token)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, priceResponse{Token: token, Price: price})
}

func (s *Server) dipCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	targetDipBps, err := parseBpsQuery(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := s.oracle.CheckPriceDip(ctx, token, targetDipBps)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, res)
}
