package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/mode"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/router"
	"github.com/getmockd/posgraph/pkg/session"
	"github.com/getmockd/posgraph/pkg/watch"
)

// gatedBackend answers every operation with a fixed product name once its
// gate opens.
type gatedBackend struct {
	name    string
	product string
	gate    chan struct{}
	started chan struct{}
}

func newGated(name, product string, open bool) *gatedBackend {
	b := &gatedBackend{name: name, product: product, gate: make(chan struct{}), started: make(chan struct{}, 16)}
	if open {
		close(b.gate)
	}
	return b
}

func (b *gatedBackend) Name() string { return b.name }

func (b *gatedBackend) Supports(string) bool { return true }

func (b *gatedBackend) Execute(ctx context.Context, _ operation.Descriptor) operation.Result {
	b.started <- struct{}{}
	select {
	case <-b.gate:
	case <-ctx.Done():
		return operation.FailureFrom(ctx.Err())
	}
	return operation.Success(map[string]any{"products": []any{map[string]any{"name": b.product}}})
}

type recorder struct {
	mu     sync.Mutex
	data   []string
	errors []operation.Error
}

func (r *recorder) OnNext(e watch.Emission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if items, ok := e.Data["products"].([]any); ok {
		for _, it := range items {
			r.data = append(r.data, it.(map[string]any)["name"].(string))
		}
	}
}

func (r *recorder) OnError(err operation.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) snapshot() ([]string, []operation.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.data...), append([]operation.Error(nil), r.errors...)
}

func noEnv(string) string { return "" }

func newSelector(kv session.KV, useMock bool) *mode.Selector {
	return mode.NewSelector(kv, useMock, mode.WithGetenv(noEnv))
}

func TestClient_ResetAfterModeToggle(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	selector := newSelector(kv, true)

	mockBackend := newGated("mock", "Mock", false)
	liveBackend := newGated("live", "Live", true)
	factory := func(_ context.Context, useMock bool) (router.Backend, error) {
		if useMock {
			return mockBackend, nil
		}
		return liveBackend, nil
	}

	c, err := New(ctx,
		WithSession(session.NewManager(kv)),
		WithSelector(selector),
		WithBackendFactory(factory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, "mock", c.Backend())

	w := c.Watch(operation.GetProducts, nil)
	rec := &recorder{}
	w.Subscribe(rec)
	<-mockBackend.started

	require.NoError(t, selector.SetOverride(ctx, false))
	assert.Equal(t, "mock", c.Backend(), "a toggle alone never rebinds the router")

	require.NoError(t, c.Reset(ctx))
	assert.Equal(t, "live", c.Backend())
	assert.True(t, w.Orphaned())

	close(mockBackend.gate)

	res := c.Query(ctx, operation.GetProducts, nil)
	require.True(t, res.OK())

	// Give any stray delivery a chance to show up before asserting.
	time.Sleep(20 * time.Millisecond)
	data, errs := rec.snapshot()
	assert.Empty(t, data, "the disposed watcher never sees data from either backend")
	require.Len(t, errs, 1)
	assert.Equal(t, watch.ErrDisposed, errs[0].Message)

	late := &recorder{}
	w.Subscribe(late)
	_, lateErrs := late.snapshot()
	require.Len(t, lateErrs, 1)
	assert.Equal(t, operation.KindUnknown, lateErrs[0].Kind)

	fresh := c.Watch(operation.GetProducts, nil)
	freshRec := &recorder{}
	fresh.Subscribe(freshRec)
	require.Eventually(t, func() bool {
		d, _ := freshRec.snapshot()
		return len(d) == 1
	}, time.Second, 5*time.Millisecond)
	d, _ := freshRec.snapshot()
	assert.Equal(t, []string{"Live"}, d)
}

func TestClient_MockEngine(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	c, err := New(ctx,
		WithSession(session.NewManager(kv)),
		WithSelector(newSelector(kv, true)),
		WithEngineOptions(mockengine.WithLatency(mockengine.NoLatency)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.Engine())
	assert.Equal(t, "mock", c.Backend())

	created := c.Mutate(ctx, operation.CreateProduct, map[string]any{"name": "Widget", "price": 5, "stock": 3})
	require.True(t, created.OK(), "%v", created.Errors)

	ids, err := c.Query(ctx, operation.GetProducts, map[string]any{"limit": 50}).Lookup("$.products[*].name")
	require.NoError(t, err)
	assert.Contains(t, ids, "Widget")

	res := c.Mutate(ctx, operation.DeleteProduct, map[string]any{"id": "does-not-exist"})
	assert.True(t, res.HasKind(operation.KindNotFound))
}

func TestClient_EngineSurvivesReset(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	c, err := New(ctx,
		WithSession(session.NewManager(kv)),
		WithSelector(newSelector(kv, true)),
		WithEngineOptions(mockengine.WithLatency(mockengine.NoLatency)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	created := c.Mutate(ctx, operation.CreateCustomer, map[string]any{"name": "Ravi"})
	require.True(t, created.OK(), "%v", created.Errors)
	engine := c.Engine()

	require.NoError(t, c.Reset(ctx))
	assert.Same(t, engine, c.Engine())

	names, err := c.Query(ctx, operation.GetCustomers, map[string]any{"search": "ravi"}).Lookup("$.customers[*].name")
	require.NoError(t, err)
	assert.Equal(t, []any{"Ravi"}, names)
}

func TestClient_LiveRequiresEndpoint(t *testing.T) {
	kv := session.NewMemoryKV()
	_, err := New(context.Background(), WithSelector(newSelector(kv, false)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestClient_FailedResetKeepsGraph(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	selector := newSelector(kv, true)
	c, err := New(ctx,
		WithSession(session.NewManager(kv)),
		WithSelector(selector),
		WithEngineOptions(mockengine.WithLatency(mockengine.NoLatency)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	w := c.Watch(operation.GetStoreProfile, nil)
	require.NoError(t, selector.SetOverride(ctx, false))
	require.Error(t, c.Reset(ctx))

	assert.Equal(t, "mock", c.Backend())
	assert.False(t, w.Orphaned())
}

func TestClient_CloseDisposesWatchers(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	c, err := New(ctx,
		WithSession(session.NewManager(kv)),
		WithSelector(newSelector(kv, true)),
		WithEngineOptions(mockengine.WithLatency(mockengine.NoLatency)))
	require.NoError(t, err)

	w := c.Watch(operation.GetStoreProfile, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, w.Orphaned())
	assert.Error(t, c.Reset(ctx))

	res := c.Query(ctx, operation.GetStoreProfile, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "router closed", res.Errors[0].Message)
	assert.True(t, c.Watch(operation.GetStoreProfile, nil).Orphaned())
}
