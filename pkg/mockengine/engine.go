package mockengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/posgraph/internal/id"
	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/mockstore"
	"github.com/getmockd/posgraph/pkg/operation"
)

// Handler executes one operation. vars are already validated and
// normalized to JSON value types. The returned map becomes Result.Data.
type Handler func(ctx context.Context, vars map[string]any) (map[string]any, error)

type registration struct {
	kind    operation.Kind
	handler Handler
	schema  *jsonschema.Schema
}

// FailureConfig injects simulated backend failures.
type FailureConfig struct {
	// Rate is the probability (0..1) that an execution fails.
	Rate float64
	// Kinds overrides the error kind per operation name. Unlisted
	// operations fail with KindNetwork.
	Kinds map[string]operation.ErrorKind
}

// Engine is the mock execution engine.
type Engine struct {
	mu       sync.RWMutex
	handlers map[string]registration

	store    *mockstore.Store
	seed     Seed
	latency  LatencyPolicy
	logger   *slog.Logger
	failure  FailureConfig
	random   func() float64
	now      func() time.Time
	invoices *id.Sequence

	lowStockRule string
	lowStock     *vm.Program

	observer mockstore.Observer
	seedSet  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLatency sets the latency policy. nil means NoLatency.
func WithLatency(p LatencyPolicy) Option {
	return func(e *Engine) {
		if p == nil {
			p = NoLatency
		}
		e.latency = p
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.Component(logger, "mockengine")
	}
}

// WithSeed replaces the default demo data.
func WithSeed(s Seed) Option {
	return func(e *Engine) {
		e.seed = s
		e.seedSet = true
	}
}

// WithFailureInjection enables simulated failures.
func WithFailureInjection(cfg FailureConfig) Option {
	return func(e *Engine) { e.failure = cfg }
}

// WithLowStockRule sets the expr-lang rule deciding whether a product is
// low on stock. The rule sees stock, minStock, price, category, and name.
func WithLowStockRule(rule string) Option {
	return func(e *Engine) {
		if rule != "" {
			e.lowStockRule = rule
		}
	}
}

// WithClock overrides the time source used for timestamps and aggregates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithObserver attaches a store observer (e.g. *mockstore.MetricsObserver).
func WithObserver(o mockstore.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func withRandom(r func() float64) Option {
	return func(e *Engine) { e.random = r }
}

// DefaultLowStockRule flags products at or below their reorder level.
const DefaultLowStockRule = "stock <= minStock"

// New creates an engine with the builtin POS handlers and seeded store.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		handlers:     make(map[string]registration),
		latency:      DefaultLatency,
		logger:       logging.Component(nil, "mockengine"),
		random:       rand.Float64,
		now:          func() time.Time { return time.Now().UTC() },
		invoices:     id.NewSequence(invoicePrefix, 6),
		lowStockRule: DefaultLowStockRule,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.seedSet {
		e.seed = DefaultSeed(e.now())
	}

	program, err := compileRule(e.lowStockRule)
	if err != nil {
		return nil, fmt.Errorf("invalid low stock rule: %w", err)
	}
	e.lowStock = program

	storeOpts := []mockstore.Option{mockstore.WithClock(e.now)}
	if e.observer != nil {
		storeOpts = append(storeOpts, mockstore.WithObserver(e.observer))
	}
	e.store = mockstore.New(storeOpts...)
	for _, cfg := range e.seed.collections() {
		if err := e.store.Register(cfg); err != nil {
			return nil, err
		}
	}
	e.syncInvoices()

	if err := e.registerBuiltins(); err != nil {
		return nil, err
	}
	return e, nil
}

// Register adds or replaces the handler for name. If a variable schema is
// known for name it is applied before the handler runs.
func (e *Engine) Register(name string, kind operation.Kind, h Handler) error {
	if name == "" {
		return errors.New("operation name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %s cannot be nil", name)
	}
	reg := registration{kind: kind, handler: h}
	if s, ok := variableSchemas[name]; ok {
		compiled, err := compileSchema(name, s)
		if err != nil {
			return err
		}
		reg.schema = compiled
	}

	e.mu.Lock()
	e.handlers[name] = reg
	e.mu.Unlock()
	return nil
}

// Names returns the registered operation names, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for n := range e.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether name has a handler.
func (e *Engine) Supports(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.handlers[name]
	return ok
}

// Name identifies the backend.
func (e *Engine) Name() string { return "mock" }

// Store exposes the underlying store.
func (e *Engine) Store() *mockstore.Store { return e.store }

// Reset restores every collection to the seed data.
func (e *Engine) Reset() error {
	_, err := e.ResetCollection("")
	return err
}

// ResetCollection restores one collection to its seed data, or every
// collection when name is empty.
func (e *Engine) ResetCollection(name string) (*mockstore.ResetResult, error) {
	res, err := e.store.Reset(name)
	if err != nil {
		return nil, err
	}
	if name == "" || name == Sales {
		e.invoices.Reset()
		e.syncInvoices()
	}
	return res, nil
}

// Query executes a query by name.
func (e *Engine) Query(ctx context.Context, name string, vars map[string]any) operation.Result {
	return e.Execute(ctx, operation.Query(name, vars))
}

// Mutate executes a mutation by name.
func (e *Engine) Mutate(ctx context.Context, name string, vars map[string]any) operation.Result {
	return e.Execute(ctx, operation.Mutation(name, vars))
}

// Execute runs desc after the simulated latency. It never panics on bad
// input: every failure is reported through Result.Errors.
func (e *Engine) Execute(ctx context.Context, desc operation.Descriptor) operation.Result {
	if err := desc.Validate(); err != nil {
		return operation.FailureFrom(err)
	}

	e.mu.RLock()
	reg, ok := e.handlers[desc.Name()]
	e.mu.RUnlock()
	if !ok || reg.kind != desc.Kind() {
		return operation.Failure(operation.UnknownOperation(desc.Name()))
	}

	if err := e.wait(ctx, desc.Name()); err != nil {
		return operation.FailureFrom(err)
	}

	if injected := e.injectFailure(desc.Name()); injected != nil {
		return operation.Failure(injected)
	}

	vars, err := values.Normalize(desc.Variables())
	if err != nil {
		return operation.Failure(operation.Validation("", err.Error()))
	}
	if reg.schema != nil {
		if verr := validateVariables(reg.schema, vars); verr != nil {
			return operation.Failure(verr)
		}
	}

	data, err := reg.handler(ctx, vars)
	if err != nil {
		return operation.FailureFrom(err, classifyStoreError)
	}
	return operation.Success(data)
}

func (e *Engine) wait(ctx context.Context, name string) error {
	d := e.latency(name)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) injectFailure(name string) *operation.Error {
	if e.failure.Rate <= 0 || e.random() >= e.failure.Rate {
		return nil
	}
	kind, ok := e.failure.Kinds[name]
	if !ok {
		kind = operation.KindNetwork
	}
	e.logger.Info("injected failure", "operation", name, "kind", kind.String())
	return &operation.Error{
		Message: fmt.Sprintf("simulated %s failure for %s", kind, name),
		Kind:    kind,
	}
}

// classifyStoreError maps mockstore errors onto operation error kinds.
func classifyStoreError(err error) *operation.Error {
	var notFound *mockstore.NotFoundError
	if errors.As(err, &notFound) {
		if notFound.ID == "" {
			return operation.Unknown(notFound.Error())
		}
		return operation.NotFound(notFound.Collection, notFound.ID)
	}

	var validation *mockstore.ValidationError
	if errors.As(err, &validation) {
		return operation.Validation(validation.Field, validation.Message)
	}

	var conflict *mockstore.ConflictError
	if errors.As(err, &conflict) {
		return operation.Validation("id", conflict.Error())
	}
	return nil
}
