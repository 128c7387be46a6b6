package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/oauth2"

	"github.com/teemow/nextup/internal/calendar"
	"github.com/teemow/nextup/internal/credentials"
	"github.com/teemow/nextup/internal/instrumentation"
	"github.com/teemow/nextup/internal/logging"
)

const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = "127.0.0.1:5000"

	// EventsPath is the route serving the upcoming events.
	EventsPath = "/api/events"

	// DefaultReadHeaderTimeout bounds how long a client may take to send
	// request headers. Responses are not bounded: a request may wait for an
	// interactive authorization.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the keep-alive idle timeout.
	DefaultIdleTimeout = 120 * time.Second
)

// CredentialSource hands out a usable credential for the given scopes.
// *credentials.Manager implements it.
type CredentialSource interface {
	Obtain(ctx context.Context, scopes []string) (*credentials.Credential, error)
}

// EventSource lists upcoming events. *calendar.Fetcher implements it.
type EventSource interface {
	FetchUpcoming(ctx context.Context, tok *oauth2.Token) calendar.EventList
}

// APIConfig holds the dependencies of the API server.
type APIConfig struct {
	// Addr is the listen address; DefaultAddr when empty.
	Addr string

	// Scopes are requested from Credentials on every request.
	Scopes []string

	Credentials CredentialSource
	Events      EventSource

	// Health is optional; a ready checker is created when nil.
	Health *HealthChecker

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// APIServer serves the events API.
type APIServer struct {
	addr        string
	scopes      []string
	credentials CredentialSource
	events      EventSource
	health      *HealthChecker
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
	router      chi.Router

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewAPIServer builds the API server and its routes.
func NewAPIServer(config APIConfig) (*APIServer, error) {
	if config.Credentials == nil {
		return nil, errors.New("credential source is required")
	}
	if config.Events == nil {
		return nil, errors.New("event source is required")
	}
	if len(config.Scopes) == 0 {
		config.Scopes = credentials.DefaultScopes
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Health == nil {
		config.Health = NewHealthChecker("")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &APIServer{
		addr:        config.Addr,
		scopes:      config.Scopes,
		credentials: config.Credentials,
		events:      config.Events,
		health:      config.Health,
		metrics:     config.Metrics,
		logger:      config.Logger,
	}
	s.router = s.routes()

	return s, nil
}

func (s *APIServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrumentationMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get(EventsPath, s.handleEvents)
	s.health.RegisterHealthEndpoints(r)

	return r
}

// handleEvents resolves a credential, which may block on interactive
// authorization, then lists the upcoming events.
func (s *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cred, err := s.credentials.Obtain(ctx, s.scopes)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to obtain credential",
			"request_id", middleware.GetReqID(ctx),
			logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events := s.events.FetchUpcoming(ctx, cred.Token())
	writeJSON(w, http.StatusOK, events)
}

// instrumentationMiddleware records request metrics and a request log line.
// Paths are reported by route pattern to keep label cardinality bounded.
func (s *APIServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		duration := time.Since(start)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, status, duration)
		s.logger.DebugContext(r.Context(), "request served",
			"method", r.Method,
			"path", path,
			"status", status,
			"bytes", ww.BytesWritten(),
			logging.KeyDuration, duration,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Handler returns the API router.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves the API until Shutdown is called. It blocks.
func (s *APIServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start, closing ready once the listener is bound.
// ready stays open when binding fails.
func (s *APIServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting API server", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server as draining and waits for in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address once started, the configured one before.
func (s *APIServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
