package mockstore

import (
	"sync/atomic"
	"time"
)

// Observer receives hooks for every store operation.
type Observer interface {
	// OnCreate is called after a successful create.
	OnCreate(collection, id string, duration time.Duration)
	// OnRead is called after a successful single-record read.
	OnRead(collection, id string, duration time.Duration)
	// OnList is called after a successful list.
	OnList(collection string, count int, duration time.Duration)
	// OnUpdate is called after a successful update.
	OnUpdate(collection, id string, duration time.Duration)
	// OnDelete is called after a successful delete.
	OnDelete(collection, id string, duration time.Duration)
	// OnError is called when an operation fails.
	OnError(collection, op string, err error)
	// OnReset is called after collections are reset to seed data.
	OnReset(collections []string, duration time.Duration)
}

// NoopObserver ignores every hook.
type NoopObserver struct{}

func (NoopObserver) OnCreate(string, string, time.Duration) {}
func (NoopObserver) OnRead(string, string, time.Duration)   {}
func (NoopObserver) OnList(string, int, time.Duration)      {}
func (NoopObserver) OnUpdate(string, string, time.Duration) {}
func (NoopObserver) OnDelete(string, string, time.Duration) {}
func (NoopObserver) OnError(string, string, error)          {}
func (NoopObserver) OnReset([]string, time.Duration)        {}

// MetricsObserver counts store operations. Safe for concurrent use.
type MetricsObserver struct {
	createCount    atomic.Int64
	readCount      atomic.Int64
	listCount      atomic.Int64
	updateCount    atomic.Int64
	deleteCount    atomic.Int64
	errorCount     atomic.Int64
	resetCount     atomic.Int64
	totalLatencyNs atomic.Int64
}

// NewMetricsObserver creates a MetricsObserver.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (m *MetricsObserver) OnCreate(_, _ string, d time.Duration) {
	m.createCount.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnRead(_, _ string, d time.Duration) {
	m.readCount.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnList(_ string, _ int, d time.Duration) {
	m.listCount.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnUpdate(_, _ string, d time.Duration) {
	m.updateCount.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnDelete(_, _ string, d time.Duration) {
	m.deleteCount.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnError(_, _ string, _ error) {
	m.errorCount.Add(1)
}

func (m *MetricsObserver) OnReset(_ []string, d time.Duration) {
	m.resetCount.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

// Snapshot returns a point-in-time copy of the counters.
func (m *MetricsObserver) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		CreateCount:  m.createCount.Load(),
		ReadCount:    m.readCount.Load(),
		ListCount:    m.listCount.Load(),
		UpdateCount:  m.updateCount.Load(),
		DeleteCount:  m.deleteCount.Load(),
		ErrorCount:   m.errorCount.Load(),
		ResetCount:   m.resetCount.Load(),
		TotalLatency: time.Duration(m.totalLatencyNs.Load()),
	}
}

// Reset zeroes all counters.
func (m *MetricsObserver) Reset() {
	m.createCount.Store(0)
	m.readCount.Store(0)
	m.listCount.Store(0)
	m.updateCount.Store(0)
	m.deleteCount.Store(0)
	m.errorCount.Store(0)
	m.resetCount.Store(0)
	m.totalLatencyNs.Store(0)
}

// MetricsSnapshot is a point-in-time copy of MetricsObserver counters.
type MetricsSnapshot struct {
	CreateCount  int64         `json:"createCount"`
	ReadCount    int64         `json:"readCount"`
	ListCount    int64         `json:"listCount"`
	UpdateCount  int64         `json:"updateCount"`
	DeleteCount  int64         `json:"deleteCount"`
	ErrorCount   int64         `json:"errorCount"`
	ResetCount   int64         `json:"resetCount"`
	TotalLatency time.Duration `json:"totalLatencyNs"`
}

// TotalOperations returns the number of successful operations.
func (s MetricsSnapshot) TotalOperations() int64 {
	return s.CreateCount + s.ReadCount + s.ListCount + s.UpdateCount + s.DeleteCount
}
