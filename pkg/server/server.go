// Package server serves the mock engine as a GraphQL-over-HTTP endpoint.
//
// The server speaks the same wire contract the live transport expects, so
// the transport can be pointed at it for parity tests or for front ends
// that want a network backend without a real service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/posgraph/internal/id"
	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/metrics"
	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/mockstore"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/ratelimit"
)

// MaxRequestBodySize is the maximum allowed request body size (1MB).
const MaxRequestBodySize = 1 << 20

// DefaultAddr is the listen address used when Config.Addr is empty.
const DefaultAddr = "127.0.0.1:4000"

// Config configures a Server.
type Config struct {
	Engine  *mockengine.Engine
	Catalog *operation.Catalog
	Addr    string
	Logger  *slog.Logger

	// JWTSecret enables HS256 bearer authentication on /graphql.
	JWTSecret string
	// IssueTokens exposes POST /auth/token for development logins.
	IssueTokens bool
	// TokenTTL is the lifetime of issued tokens. Defaults to one hour.
	TokenTTL time.Duration
	// Now overrides the clock used for token issuing and validation.
	Now func() time.Time
	// Metrics, when set, is reported by GET /state. It should be the
	// observer the engine was built with.
	Metrics *mockstore.MetricsObserver

	// RateLimit caps /graphql requests per client IP per second. Zero
	// disables limiting.
	RateLimit float64
	// RateBurst is the per-client burst. Defaults to twice RateLimit.
	RateBurst int
}

// Server is the mock GraphQL HTTP server.
type Server struct {
	engine  *mockengine.Engine
	catalog *operation.Catalog
	addr    string
	logger  *slog.Logger
	secret  []byte
	issue   bool
	ttl     time.Duration
	now     func() time.Time
	metrics *mockstore.MetricsObserver
	ops     *metrics.Operations
	limiter *ratelimit.Limiter
	handler http.Handler
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	s := &Server{
		engine:  cfg.Engine,
		catalog: cfg.Catalog,
		addr:    cfg.Addr,
		logger:  logging.Component(cfg.Logger, "server"),
		secret:  []byte(cfg.JWTSecret),
		issue:   cfg.IssueTokens,
		ttl:     cfg.TokenTTL,
		now:     cfg.Now,
		metrics: cfg.Metrics,
		ops:     metrics.NewOperations(),
	}
	if s.catalog == nil {
		c, err := operation.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		s.catalog = c
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.issue && len(s.secret) == 0 {
		return nil, errors.New("issuing tokens requires a JWT secret")
	}
	if cfg.RateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{Rate: cfg.RateLimit, Burst: cfg.RateBurst})
	}
	s.handler = s.routes()
	return s, nil
}

// Close releases the rate limiter. The server must not be used afterwards.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Metrics returns the server's metric set.
func (s *Server) Metrics() *metrics.Operations { return s.ops }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

func (s *Server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		requestID,
		middleware.Recoverer,
		s.logRequests,
	)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Route("/graphql", func(r chi.Router) {
		r.Use(ratelimit.Middleware(s.limiter, func(r *http.Request) {
			_ = s.ops.RateLimited.Inc()
			s.logger.Debug("request rate limited", "remoteAddr", r.RemoteAddr)
		}))
		if len(s.secret) > 0 {
			r.Use(s.authenticate)
		}
		r.Post("/", s.handleGraphQL)
		r.Get("/", s.handleGraphQL)
	})
	r.Route("/state", func(r chi.Router) {
		r.Get("/", s.handleState)
		r.Post("/reset", s.handleReset)
	})
	if s.issue {
		r.Post("/auth/token", s.handleIssueToken)
	}
	return r
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("serving mock GraphQL endpoint", "addr", "http://"+ln.Addr().String()+"/graphql")

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		_ = s.ops.Requests.Inc(routeOf(r), strconv.Itoa(ww.Status()))
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"backend":    s.engine.Name(),
		"operations": len(s.engine.Names()),
	})
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// requestID tags each request with the caller's id or a fresh short id,
// stored where middleware.GetReqID finds it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if reqID == "" || len(reqID) > 64 {
			reqID = id.Short()
		}
		w.Header().Set(RequestIDHeader, reqID)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// routeOf returns the matched chi pattern, so path parameters don't
// create new series.
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()
	for _, name := range store.Names() {
		if col, err := store.Collection(name); err == nil {
			_ = s.ops.Records.Set(float64(col.Count()), name)
		}
	}
	s.ops.Registry.Handler().ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	store := s.engine.Store()
	collections := make([]any, 0)
	for _, name := range store.Names() {
		col, err := store.Collection(name)
		if err != nil {
			continue
		}
		collections = append(collections, col.Info())
	}
	body := map[string]any{
		"overview":    store.Overview(),
		"collections": collections,
	}
	if s.metrics != nil {
		body["metrics"] = s.metrics.Snapshot()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("collection")
	res, err := s.engine.ResetCollection(name)
	if err != nil {
		var notFound *mockstore.NotFoundError
		if errors.As(err, &notFound) {
			writeErrors(w, http.StatusNotFound, operation.NotFound("collection", name))
			return
		}
		writeErrors(w, http.StatusInternalServerError, operation.FromError(err))
		return
	}
	s.logger.Info("mock state reset", "collections", res.Collections)
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
