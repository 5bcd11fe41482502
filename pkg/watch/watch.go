// Package watch exposes a query as a renewable stream of emissions.
//
// A Watcher executes its query when the first observer subscribes, caches
// the outcome for late subscribers, and re-executes only on Refetch or
// RefetchWith. Every execution carries a monotonic token; results whose
// token has been superseded are discarded. Emissions are delivered in
// order and never concurrently.
package watch

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/operation"
)

// ErrDisposed is the message observers receive from a disposed watcher.
const ErrDisposed = "watcher disposed"

// Executor runs a single operation. *router.Router satisfies it.
type Executor interface {
	Execute(ctx context.Context, desc operation.Descriptor) operation.Result
}

// State is the lifecycle state of a Watcher.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateRefetching
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateRefetching:
		return "refetching"
	case StateErrored:
		return "errored"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Emission is one value pushed to observers. Stale is set while a refetch
// is running and Data holds the previous result.
type Emission struct {
	Data    map[string]any
	Loading bool
	Stale   bool
}

// Observer receives emissions and errors from a Watcher.
type Observer interface {
	OnNext(Emission)
	OnError(operation.Error)
}

type funcObserver struct {
	next    func(Emission)
	onError func(operation.Error)
}

func (f funcObserver) OnNext(e Emission) {
	if f.next != nil {
		f.next(e)
	}
}

func (f funcObserver) OnError(err operation.Error) {
	if f.onError != nil {
		f.onError(err)
	}
}

// ObserverFunc adapts two functions to an Observer. Either may be nil.
func ObserverFunc(next func(Emission), onError func(operation.Error)) Observer {
	return funcObserver{next: next, onError: onError}
}

// Subscription detaches an observer.
type Subscription struct {
	w      *Watcher
	id     uint64
	active atomic.Bool
}

// Unsubscribe detaches the observer. It is safe to call more than once.
// Removing the last observer disposes the watcher.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	if s.w != nil {
		s.w.unsubscribe(s.id)
	}
}

type subscriber struct {
	sub      *Subscription
	observer Observer
}

// delivery is one queued emission. final deliveries reach subscribers
// that were deactivated by Dispose.
type delivery struct {
	targets []subscriber
	emit    *Emission
	err     *operation.Error
	final   bool
}

// Watcher is a stateful, multi-observer view of one query.
type Watcher struct {
	exec   Executor
	logger *slog.Logger
	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	desc       operation.Descriptor
	state      State
	data       map[string]any
	lastErr    *operation.Error
	token      uint64
	launched   uint64 // highest token whose execution has started
	orphaned   bool
	nextID     uint64
	observers  []subscriber
	queue      []delivery
	delivering bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logging.Component(logger, "watch") }
}

// New creates an idle Watcher for desc. Nothing executes until the first
// Subscribe.
func New(exec Executor, desc operation.Descriptor, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		exec:   exec,
		desc:   desc,
		ctx:    ctx,
		cancel: cancel,
		logger: logging.Component(nil, "watch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Orphaned reports whether the watcher has been disposed.
func (w *Watcher) Orphaned() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.orphaned
}

// Descriptor returns the descriptor the next execution will use.
func (w *Watcher) Descriptor() operation.Descriptor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.desc
}

// Subscribe attaches observer. The observer immediately receives the
// current state: a loading emission, the cached data, or the cached error.
// On a disposed watcher the observer receives a single error and is never
// called again.
func (w *Watcher) Subscribe(observer Observer) *Subscription {
	w.mu.Lock()
	w.nextID++
	sub := &Subscription{w: w, id: w.nextID}
	entry := subscriber{sub: sub, observer: observer}

	if w.orphaned {
		w.mu.Unlock()
		observer.OnError(*operation.Unknown(ErrDisposed))
		return sub
	}

	sub.active.Store(true)
	w.observers = append(w.observers, entry)
	only := []subscriber{entry}

	launch := false
	switch w.state {
	case StateIdle:
		w.state = StateLoading
		w.token++
		launch = true
		w.enqueue(only, &Emission{Loading: true}, nil)
	case StateLoading:
		w.enqueue(only, &Emission{Loading: true}, nil)
	case StateRefetching:
		w.enqueue(only, &Emission{Data: w.data, Loading: true, Stale: w.data != nil}, nil)
	case StateReady:
		w.enqueue(only, &Emission{Data: w.data}, nil)
	case StateErrored:
		w.enqueue(only, nil, w.lastErr)
	}
	token, desc := w.token, w.desc
	w.mu.Unlock()

	w.flush()
	if launch {
		w.launch(token, desc)
	}
	return sub
}

// Refetch re-executes the query. While an execution is already in flight
// the call joins it instead of starting another.
func (w *Watcher) Refetch() {
	w.mu.Lock()
	if w.orphaned || w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	if w.state == StateLoading || w.state == StateRefetching {
		token, desc := w.token, w.desc
		w.mu.Unlock()
		w.launch(token, desc)
		return
	}
	w.state = StateRefetching
	w.token++
	w.enqueue(w.observers, &Emission{Data: w.data, Loading: true, Stale: w.data != nil}, nil)
	token, desc := w.token, w.desc
	w.mu.Unlock()

	w.flush()
	w.launch(token, desc)
}

// RefetchWith replaces the variables and always starts a new execution,
// superseding any execution in flight.
func (w *Watcher) RefetchWith(vars map[string]any) {
	w.mu.Lock()
	if w.orphaned {
		w.mu.Unlock()
		return
	}
	w.desc = w.desc.WithVariables(vars)
	if w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	w.token++
	if w.data != nil {
		w.state = StateRefetching
		w.enqueue(w.observers, &Emission{Data: w.data, Loading: true, Stale: true}, nil)
	} else {
		w.state = StateLoading
		w.enqueue(w.observers, &Emission{Loading: true}, nil)
	}
	token, desc := w.token, w.desc
	w.mu.Unlock()

	w.flush()
	w.launch(token, desc)
}

// Dispose orphans the watcher: in-flight results are dropped, it never
// executes again, and current observers receive a "watcher disposed" error.
func (w *Watcher) Dispose() {
	w.mu.Lock()
	if w.orphaned {
		w.mu.Unlock()
		return
	}
	targets := w.observers
	w.observers = nil
	for _, t := range targets {
		t.sub.active.Store(false)
	}
	w.orphan()
	if len(targets) > 0 {
		w.queue = append(w.queue, delivery{targets: targets, err: operation.Unknown(ErrDisposed), final: true})
	}
	w.mu.Unlock()

	w.flush()
}

func (w *Watcher) unsubscribe(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.observers {
		if s.sub.id == id {
			w.observers = append(w.observers[:i:i], w.observers[i+1:]...)
			break
		}
	}
	if len(w.observers) == 0 && !w.orphaned {
		w.orphan()
	}
}

// orphan must be called with mu held.
func (w *Watcher) orphan() {
	w.orphaned = true
	w.token++
	w.cancel()
	w.logger.Debug("watcher disposed", "operation", w.desc.Name())
}

// launch starts the execution for token unless it already started, in
// which case the caller joins it. A token is executed at most once even
// when its first execution has already finished.
func (w *Watcher) launch(token uint64, desc operation.Descriptor) {
	w.mu.Lock()
	if token <= w.launched || token != w.token || w.orphaned {
		w.mu.Unlock()
		return
	}
	w.launched = token
	w.mu.Unlock()

	w.group.DoChan(strconv.FormatUint(token, 10), func() (any, error) {
		res := w.exec.Execute(w.ctx, desc)
		w.complete(token, res)
		return nil, nil
	})
}

func (w *Watcher) complete(token uint64, res operation.Result) {
	w.mu.Lock()
	if w.orphaned || token != w.token {
		name := w.desc.Name()
		w.mu.Unlock()
		w.logger.Debug("discarding superseded result", "operation", name, "token", token)
		return
	}
	if len(res.Errors) > 0 {
		w.state = StateErrored
		w.lastErr = res.FirstError()
		if res.Data != nil {
			// Partial data is kept for the next stale emission.
			w.data = res.Data
		}
		w.enqueue(w.observers, nil, w.lastErr)
	} else {
		w.state = StateReady
		w.data = res.Data
		w.lastErr = nil
		w.enqueue(w.observers, &Emission{Data: w.data}, nil)
	}
	w.mu.Unlock()
	w.flush()
}

// enqueue must be called with mu held. targets is copied.
func (w *Watcher) enqueue(targets []subscriber, emit *Emission, err *operation.Error) {
	if len(targets) == 0 {
		return
	}
	w.queue = append(w.queue, delivery{
		targets: append([]subscriber(nil), targets...),
		emit:    emit,
		err:     err,
	})
}

// flush drains the delivery queue unless another goroutine is already
// draining it. Observers may call back into the watcher.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.delivering {
		w.mu.Unlock()
		return
	}
	w.delivering = true
	for len(w.queue) > 0 {
		d := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()
		d.deliver()
		w.mu.Lock()
	}
	w.delivering = false
	w.mu.Unlock()
}

func (d delivery) deliver() {
	for _, t := range d.targets {
		if !d.final && !t.sub.active.Load() {
			continue
		}
		if d.err != nil {
			t.observer.OnError(*d.err)
			continue
		}
		t.observer.OnNext(Emission{
			Data:    values.CloneMap(d.emit.Data),
			Loading: d.emit.Loading,
			Stale:   d.emit.Stale,
		})
	}
}
