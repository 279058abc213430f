package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chainagent/chainagent/internal/config"
	"github.com/chainagent/chainagent/internal/delegation"
	"github.com/chainagent/chainagent/internal/event"
	"github.com/chainagent/chainagent/internal/execution"
	"github.com/chainagent/chainagent/internal/oracle"
	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/internal/stats"
	"github.com/chainagent/chainagent/pkg/cerr"
	"github.com/chainagent/chainagent/pkg/clog"
)

type Server struct {
	server           *http.Server
	env              *config.Env
	permissionServer *permission.Server
	delegationServer *delegation.Server
	oracleServer     *oracle.Server
	executionServer  *execution.Server
	statsServer      *stats.Server
	eventServer      *event.Server
}

func NewServer(
	env *config.Env,
	permissionServer *permission.Server,
	delegationServer *delegation.Server,
	oracleServer *oracle.Server,
	executionServer *execution.Server,
	statsServer *stats.Server,
	eventServer *event.Server,
) *Server {
	return &Server{
		env:              env,
		permissionServer: permissionServer,
		delegationServer: delegationServer,
		oracleServer:     oracleServer,
		executionServer:  executionServer,
		statsServer:      statsServer,
		eventServer:      eventServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used
// as the base context for all incoming requests via
// http.Server.BaseContext, so cancelling it (e.g. on shutdown signal)
// also cancels the websocket event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(
				clog.SlogChiMiddleware(),
				cerr.NewJSONResponseChiMiddleware(),
			)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
			s.permissionServer.RegisterRoutes(r)
			s.delegationServer.RegisterRoutes(r)
			s.oracleServer.RegisterRoutes(r)
			s.executionServer.RegisterRoutes(r)
			s.statsServer.RegisterRoutes(r)
		})
		// The websocket stream manages its own response; it must not
		// go through the JSON response middleware.
		s.eventServer.RegisterRoutes(r)
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(mux), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
