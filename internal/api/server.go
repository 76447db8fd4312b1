package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/focuserd/internal/focuser"
	"github.com/nerrad567/focuserd/internal/history"
	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Focuser is the command surface served over HTTP. *focuser.Orchestrator
// implements it.
type Focuser interface {
	Initialize(ctx context.Context) focuser.Result
	Home(ctx context.Context) focuser.Result
	Shutdown(ctx context.Context) focuser.Result
	Stop(ctx context.Context, key string) focuser.Result
	SetChannel(ctx context.Context, key string, position float64, offset bool) focuser.Result
	SetLight(ctx context.Context, on bool) focuser.Result
	ReportStatus() focuser.Status
	TemperatureLabels() map[string]string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Focuser Focuser
	History history.Repository // optional; /history answers 503 without it
	Hub     *Hub               // optional; created when nil
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	focuser Focuser
	history history.Repository
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates a new API server. The server is not started until Start is
// called, but its Hub is usable immediately.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Focuser == nil {
		return nil, fmt.Errorf("focuser is required")
	}

	// The daemon builds the hub first so the telemetry publisher can use
	// it before the orchestrator, and so the server, exists.
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		focuser: deps.Focuser,
		history: deps.History,
		version: deps.Version,
		hub:     hub,
	}, nil
}

// Hub returns the WebSocket hub, for use as a telemetry sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine. The
// server can be stopped with Close.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests. A homing request still running after that is cut off
// but the homing itself continues in the orchestrator.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
