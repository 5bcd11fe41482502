// Package client wires the selector, router, backends, and watchers into
// the single object a front end talks to.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/mode"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/router"
	"github.com/getmockd/posgraph/pkg/session"
	"github.com/getmockd/posgraph/pkg/transport"
	"github.com/getmockd/posgraph/pkg/watch"
)

// BackendFactory builds the backend for a mode decision.
type BackendFactory func(ctx context.Context, useMock bool) (router.Backend, error)

// Client is the client graph. The backend is chosen once per graph; a mode
// change takes effect only after Reset.
type Client struct {
	logger         *slog.Logger
	tracer         trace.TracerProvider
	session        *session.Manager
	selector       *mode.Selector
	factory        BackendFactory
	endpoint       string
	engineOpts     []mockengine.Option
	transportOpts  []transport.Option
	onUnauthorized func()

	mu       sync.Mutex
	router   *router.Router
	engine   *mockengine.Engine
	watchers map[*watch.Watcher]struct{}
	closed   bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

// WithTracerProvider sets the tracer provider used by the router.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp }
}

// WithSession sets the session manager shared by the transport and the
// mode selector.
func WithSession(m *session.Manager) Option {
	return func(c *Client) { c.session = m }
}

// WithSelector replaces the mode selector.
func WithSelector(s *mode.Selector) Option {
	return func(c *Client) { c.selector = s }
}

// WithEndpoint sets the live GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithEngineOptions configures the mock engine.
func WithEngineOptions(opts ...mockengine.Option) Option {
	return func(c *Client) { c.engineOpts = append(c.engineOpts, opts...) }
}

// WithTransportOptions configures the live transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Client) { c.transportOpts = append(c.transportOpts, opts...) }
}

// WithOnUnauthorized registers the re-authentication callback.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithBackendFactory replaces backend construction.
func WithBackendFactory(f BackendFactory) Option {
	return func(c *Client) { c.factory = f }
}

// New builds the client graph using the selector's current decision.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		logger:   logging.Nop(),
		watchers: make(map[*watch.Watcher]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = session.NewManager(session.NewMemoryKV(), session.WithLogger(c.logger))
	}
	if c.selector == nil {
		c.selector = mode.NewSelector(c.session.KV(), false, mode.WithLogger(c.logger))
	}
	if c.factory == nil {
		c.factory = c.defaultBackend
	}

	r, err := c.build(ctx)
	if err != nil {
		return nil, err
	}
	c.router = r
	return c, nil
}

func (c *Client) build(ctx context.Context) (*router.Router, error) {
	useMock := c.selector.IsMockMode(ctx)
	backend, err := c.factory(ctx, useMock)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s backend: %w", mode.Name(useMock), err)
	}
	opts := []router.Option{router.WithLogger(c.logger)}
	if c.tracer != nil {
		opts = append(opts, router.WithTracerProvider(c.tracer))
	}
	c.logger.Info("client graph built", "backend", backend.Name())
	return router.New(backend, opts...), nil
}

// defaultBackend reuses one mock engine across resets so mock data
// survives a live/mock round trip.
func (c *Client) defaultBackend(_ context.Context, useMock bool) (router.Backend, error) {
	if useMock {
		if c.engine == nil {
			opts := append([]mockengine.Option{mockengine.WithLogger(c.logger)}, c.engineOpts...)
			e, err := mockengine.New(opts...)
			if err != nil {
				return nil, err
			}
			c.engine = e
		}
		return c.engine, nil
	}
	if c.endpoint == "" {
		return nil, errors.New("live mode requires an endpoint")
	}
	opts := []transport.Option{
		transport.WithLogger(c.logger),
		transport.WithSession(c.session),
		transport.WithOnUnauthorized(c.onUnauthorized),
	}
	return transport.New(c.endpoint, append(opts, c.transportOpts...)...)
}

func (c *Client) current() *router.Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router
}

// Backend returns the active backend name, "mock" or "live".
func (c *Client) Backend() string {
	return c.current().Backend()
}

// Session returns the session manager.
func (c *Client) Session() *session.Manager { return c.session }

// Selector returns the mode selector.
func (c *Client) Selector() *mode.Selector { return c.selector }

// Engine returns the mock engine if one has been built.
func (c *Client) Engine() *mockengine.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// Execute dispatches desc through the active router.
func (c *Client) Execute(ctx context.Context, desc operation.Descriptor) operation.Result {
	return c.current().Execute(ctx, desc)
}

// Query runs a one-shot query.
func (c *Client) Query(ctx context.Context, name string, vars map[string]any) operation.Result {
	return c.Execute(ctx, operation.Query(name, vars))
}

// Mutate runs a mutation.
func (c *Client) Mutate(ctx context.Context, name string, vars map[string]any) operation.Result {
	return c.Execute(ctx, operation.Mutation(name, vars))
}

// Watch returns a watcher for the named query bound to the active router.
// The watcher is disposed by the next Reset.
func (c *Client) Watch(name string, vars map[string]any) *watch.Watcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range c.watchers {
		if w.Orphaned() {
			delete(c.watchers, w)
		}
	}
	w := watch.New(c.router, operation.Query(name, vars), watch.WithLogger(c.logger))
	if c.closed {
		w.Dispose()
		return w
	}
	c.watchers[w] = struct{}{}
	return w
}

// Reset tears down the graph and rebuilds it from the selector's current
// decision. The old router is closed and every watcher it served is
// disposed, so nothing from the old graph receives data from the new one.
// If the new backend cannot be built the old graph stays in place.
func (c *Client) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("client closed")
	}
	r, err := c.build(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	old, watchers := c.router, c.watchers
	c.router = r
	c.watchers = make(map[*watch.Watcher]struct{})
	c.mu.Unlock()

	return teardown(old, watchers)
}

// Close disposes every watcher and closes the router.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	r, watchers := c.router, c.watchers
	c.watchers = make(map[*watch.Watcher]struct{})
	c.mu.Unlock()

	return teardown(r, watchers)
}

func teardown(r *router.Router, watchers map[*watch.Watcher]struct{}) error {
	err := r.Close()
	for w := range watchers {
		w.Dispose()
	}
	return err
}
