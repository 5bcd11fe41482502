package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/posgraph/pkg/operation"
)

type call struct {
	ctx   context.Context
	desc  operation.Descriptor
	reply chan operation.Result
}

// scriptedExec blocks every Execute until the test replies to it.
type scriptedExec struct {
	calls chan *call
}

func newScriptedExec() *scriptedExec {
	return &scriptedExec{calls: make(chan *call, 16)}
}

func (s *scriptedExec) Execute(ctx context.Context, desc operation.Descriptor) operation.Result {
	c := &call{ctx: ctx, desc: desc, reply: make(chan operation.Result, 1)}
	s.calls <- c
	select {
	case r := <-c.reply:
		return r
	case <-ctx.Done():
		return operation.FailureFrom(ctx.Err())
	}
}

func (s *scriptedExec) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected an execution")
		return nil
	}
}

func (s *scriptedExec) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected execution of %s", c.desc)
	case <-time.After(50 * time.Millisecond):
	}
}

type event struct {
	emission Emission
	err      *operation.Error
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) OnNext(e Emission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{emission: e})
}

func (r *recorder) OnError(err operation.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{err: &err})
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) waitFor(t *testing.T, n int) []event {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return r.snapshot()
}

func products(name string) operation.Result {
	return operation.Success(map[string]any{"products": []any{map[string]any{"name": name}}})
}

func nameOf(t *testing.T, e Emission) string {
	t.Helper()
	items, ok := e.Data["products"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	return items[0].(map[string]any)["name"].(string)
}

func newWatcher(exec Executor) *Watcher {
	return New(exec, operation.Query(operation.GetProducts, map[string]any{"limit": 10}))
}

func TestWatcher_TwoObserversShareOneExecution(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)
	assert.Equal(t, StateIdle, w.State())

	a, b := &recorder{}, &recorder{}
	w.Subscribe(a)
	c := exec.next(t)
	assert.Equal(t, StateLoading, w.State())

	w.Subscribe(b)
	exec.none(t)

	c.reply <- products("Tea")

	for _, r := range []*recorder{a, b} {
		events := r.waitFor(t, 2)
		require.Len(t, events, 2)
		assert.Equal(t, Emission{Loading: true}, events[0].emission)
		assert.False(t, events[1].emission.Loading)
		assert.Equal(t, "Tea", nameOf(t, events[1].emission))
	}
	assert.Equal(t, StateReady, w.State())
}

func TestWatcher_LateSubscriberGetsCache(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	first := &recorder{}
	w.Subscribe(first)
	exec.next(t).reply <- products("Tea")
	first.waitFor(t, 2)

	late := &recorder{}
	w.Subscribe(late)
	events := late.snapshot()
	require.Len(t, events, 1, "cached emission is delivered synchronously")
	assert.Equal(t, "Tea", nameOf(t, events[0].emission))
	exec.none(t)
}

func TestWatcher_ErrorIsCached(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	w.Subscribe(r)
	exec.next(t).reply <- operation.Failure(operation.Network("offline"))

	events := r.waitFor(t, 2)
	require.NotNil(t, events[1].err)
	assert.Equal(t, operation.KindNetwork, events[1].err.Kind)
	assert.Equal(t, StateErrored, w.State())

	late := &recorder{}
	w.Subscribe(late)
	lateEvents := late.snapshot()
	require.Len(t, lateEvents, 1)
	require.NotNil(t, lateEvents[0].err)
	assert.Equal(t, "offline", lateEvents[0].err.Message)
	exec.none(t)
}

func TestWatcher_RefetchEmitsStaleThenFresh(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	w.Subscribe(r)
	exec.next(t).reply <- products("Tea")
	r.waitFor(t, 2)

	w.Refetch()
	c := exec.next(t)
	assert.Equal(t, StateRefetching, w.State())

	w.Refetch()
	exec.none(t)

	c.reply <- products("Coffee")
	events := r.waitFor(t, 4)
	require.Len(t, events, 4)

	stale := events[2].emission
	assert.True(t, stale.Loading)
	assert.True(t, stale.Stale)
	assert.Equal(t, "Tea", nameOf(t, stale))

	assert.False(t, events[3].emission.Loading)
	assert.Equal(t, "Coffee", nameOf(t, events[3].emission))
}

func TestWatcher_RefetchAfterErrorRecovers(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	w.Subscribe(r)
	exec.next(t).reply <- operation.Failure(operation.Network("offline"))
	r.waitFor(t, 2)

	w.Refetch()
	exec.next(t).reply <- products("Tea")

	events := r.waitFor(t, 4)
	assert.Equal(t, Emission{Loading: true}, events[2].emission, "no stale data to show")
	assert.Equal(t, "Tea", nameOf(t, events[3].emission))
	assert.Equal(t, StateReady, w.State())
}

func TestWatcher_RefetchWithDiscardsSuperseded(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	w.Subscribe(r)
	exec.next(t).reply <- products("Initial")
	r.waitFor(t, 2)

	w.RefetchWith(map[string]any{"search": "one"})
	first := exec.next(t)
	w.RefetchWith(map[string]any{"search": "two"})
	second := exec.next(t)

	assert.Equal(t, "one", first.desc.Variables()["search"])
	assert.Equal(t, "two", second.desc.Variables()["search"])

	second.reply <- products("Two")
	r.waitFor(t, 5)
	first.reply <- products("One")
	exec.none(t)

	for _, e := range r.snapshot() {
		if e.err == nil && e.emission.Data != nil {
			assert.NotEqual(t, "One", nameOf(t, e.emission))
		}
	}
	events := r.snapshot()
	require.Len(t, events, 5)
	assert.Equal(t, "Two", nameOf(t, events[4].emission))
	assert.Equal(t, "two", w.Descriptor().Variables()["search"])
}

func TestWatcher_LastUnsubscribeOrphans(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	sub := w.Subscribe(r)
	c := exec.next(t)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.True(t, w.Orphaned())

	select {
	case <-c.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("in-flight execution was not cancelled")
	}
	c.reply <- products("Late")
	exec.none(t)
	assert.Len(t, r.snapshot(), 1, "only the loading emission")

	w.Refetch()
	exec.none(t)

	again := &recorder{}
	w.Subscribe(again)
	events := again.snapshot()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].err)
	assert.Equal(t, operation.KindUnknown, events[0].err.Kind)
	assert.Equal(t, ErrDisposed, events[0].err.Message)
}

func TestWatcher_UnsubscribeOneKeepsOthers(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	a, b := &recorder{}, &recorder{}
	subA := w.Subscribe(a)
	w.Subscribe(b)
	c := exec.next(t)

	subA.Unsubscribe()
	assert.False(t, w.Orphaned())

	c.reply <- products("Tea")
	b.waitFor(t, 2)
	assert.Len(t, a.snapshot(), 1)
}

func TestWatcher_DisposeNotifiesObservers(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	sub := w.Subscribe(r)
	c := exec.next(t)

	w.Dispose()
	w.Dispose()
	c.reply <- products("Late")

	events := r.waitFor(t, 2)
	require.Len(t, events, 2)
	require.NotNil(t, events[1].err)
	assert.Equal(t, ErrDisposed, events[1].err.Message)

	sub.Unsubscribe()
	exec.none(t)
	assert.Len(t, r.snapshot(), 2)
}

func TestWatcher_ObserverMayRefetchReentrantly(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	var once sync.Once
	var mu sync.Mutex
	var seen []Emission
	w.Subscribe(ObserverFunc(func(e Emission) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
		if !e.Loading {
			once.Do(w.Refetch)
		}
	}, nil))

	exec.next(t).reply <- products("Tea")
	exec.next(t).reply <- products("Coffee")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen[2].Stale)
	assert.Equal(t, "Coffee", nameOf(t, seen[3]))
}

// countingExec answers immediately and counts executions.
type countingExec struct {
	n atomic.Int32
}

func (c *countingExec) Execute(context.Context, operation.Descriptor) operation.Result {
	c.n.Add(1)
	return products("Tea")
}

func TestWatcher_RefetchDuringFirstLoadDoesNotExecuteTwice(t *testing.T) {
	exec := &countingExec{}
	w := newWatcher(exec)

	var mu sync.Mutex
	var ready int
	refetched := false
	w.Subscribe(ObserverFunc(func(e Emission) {
		if e.Loading && !refetched {
			refetched = true
			w.Refetch()
			// Let the joined execution finish before Subscribe returns.
			time.Sleep(50 * time.Millisecond)
			return
		}
		if !e.Loading {
			mu.Lock()
			ready++
			mu.Unlock()
		}
	}, nil))

	require.Eventually(t, func() bool { return w.State() == StateReady }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), exec.n.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, ready)
}

func TestWatcher_PartialResultKeepsData(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	w.Subscribe(r)
	partial := products("Tea")
	partial.Errors = []operation.Error{*operation.Network("shard offline")}
	exec.next(t).reply <- partial

	events := r.waitFor(t, 2)
	require.NotNil(t, events[1].err)
	assert.Equal(t, StateErrored, w.State())

	w.Refetch()
	c := exec.next(t)
	events = r.waitFor(t, 3)
	assert.True(t, events[2].emission.Stale)
	assert.Equal(t, "Tea", nameOf(t, events[2].emission))

	c.reply <- products("Coffee")
	events = r.waitFor(t, 4)
	assert.Equal(t, "Coffee", nameOf(t, events[3].emission))
}

func TestWatcher_EmissionsAreCopies(t *testing.T) {
	exec := newScriptedExec()
	w := newWatcher(exec)

	r := &recorder{}
	w.Subscribe(r)
	exec.next(t).reply <- products("Tea")
	events := r.waitFor(t, 2)

	events[1].emission.Data["products"] = nil

	late := &recorder{}
	w.Subscribe(late)
	assert.Equal(t, "Tea", nameOf(t, late.snapshot()[0].emission))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "refetching", StateRefetching.String())
	assert.Equal(t, "State(9)", State(9).String())
}
