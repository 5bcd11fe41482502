// Package router dispatches operations to the single backend chosen when
// the client graph was built.
package router

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/operation"
)

const tracerName = "github.com/getmockd/posgraph/pkg/router"

// Backend executes operations. *mockengine.Engine and *transport.Transport
// both satisfy it.
type Backend interface {
	Execute(ctx context.Context, desc operation.Descriptor) operation.Result
	Name() string
	Supports(name string) bool
}

// Router is bound to exactly one Backend for its whole life. It never falls
// back to another backend.
type Router struct {
	backend Backend
	logger  *slog.Logger
	tracer  trace.Tracer
	closed  atomic.Bool
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logging.Component(logger, "router") }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Router) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// New binds a router to backend.
func New(backend Backend, opts ...Option) *Router {
	r := &Router{
		backend: backend,
		logger:  logging.Component(nil, "router"),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend reports the backend identity ("mock" or "live").
func (r *Router) Backend() string {
	return r.backend.Name()
}

// Supports reports whether the bound backend serves name.
func (r *Router) Supports(name string) bool {
	return r.backend.Supports(name)
}

// Execute dispatches desc to the bound backend.
func (r *Router) Execute(ctx context.Context, desc operation.Descriptor) operation.Result {
	if r.closed.Load() {
		return operation.Failure(operation.Unknown("router closed"))
	}
	if err := desc.Validate(); err != nil {
		return operation.FailureFrom(err)
	}
	if !r.backend.Supports(desc.Name()) {
		r.logger.Warn("unknown operation", "operation", desc.Name(), "backend", r.backend.Name())
		return operation.Failure(operation.UnknownOperation(desc.Name()))
	}

	ctx, span := r.tracer.Start(ctx, "posgraph.execute", trace.WithAttributes(
		attribute.String("graphql.operation.name", desc.Name()),
		attribute.String("graphql.operation.type", desc.Kind().String()),
		attribute.String("posgraph.backend", r.backend.Name()),
	))
	defer span.End()

	start := time.Now()
	res := r.backend.Execute(ctx, desc)

	span.SetAttributes(attribute.Int("graphql.error_count", len(res.Errors)))
	if first := res.FirstError(); first != nil {
		span.SetStatus(codes.Error, first.Message)
		span.SetAttributes(attribute.String("posgraph.error_kind", first.Kind.String()))
	}
	r.logger.Debug("operation executed",
		"operation", desc.Name(),
		"kind", desc.Kind().String(),
		"backend", r.backend.Name(),
		"errors", len(res.Errors),
		"duration", time.Since(start),
	)
	return res
}

// Close marks the router closed; later executions fail with "router closed".
// A backend implementing io.Closer is closed too. Close is idempotent.
func (r *Router) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if c, ok := r.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Closed reports whether Close was called.
func (r *Router) Closed() bool {
	return r.closed.Load()
}
