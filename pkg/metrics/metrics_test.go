package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/posgraph/pkg/operation"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("requests_total", "Requests", "method", "status")

	require.NoError(t, c.Inc("GET", "200"))
	require.NoError(t, c.Inc("GET", "200"))
	require.NoError(t, c.Add(5, "POST", "201"))

	assert.Equal(t, 2.0, c.Value("GET", "200"))
	assert.Equal(t, 5.0, c.Value("POST", "201"))

	err := c.Inc("GET")
	require.ErrorIs(t, err, ErrLabelCountMismatch)
	require.Error(t, c.Add(-1, "GET", "200"))
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewRegistry().NewCounter("hits", "Hits")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Inc()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5000.0, c.Value())
}

func TestGauge(t *testing.T) {
	g := NewRegistry().NewGauge("records", "Records", "collection")
	require.NoError(t, g.Set(8, "products"))
	require.NoError(t, g.Set(7, "products"))
	assert.Equal(t, 7.0, g.Value("products"))
	assert.Zero(t, g.Value("orders"))
}

func TestHistogram(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("latency", "Latency", []float64{0.5, 0.1}, "op")
	require.NoError(t, h.Observe(0.0625, "a"))
	require.NoError(t, h.Observe(0.25, "a"))
	require.NoError(t, h.Observe(2, "a"))
	assert.Equal(t, uint64(3), h.Count("a"))

	var b strings.Builder
	require.NoError(t, r.Write(&b))
	out := b.String()
	assert.Contains(t, out, `latency_bucket{op="a",le="0.1"} 1`)
	assert.Contains(t, out, `latency_bucket{op="a",le="0.5"} 2`)
	assert.Contains(t, out, `latency_bucket{op="a",le="+Inf"} 3`)
	assert.Contains(t, out, `latency_sum{op="a"} 2.3125`)
	assert.Contains(t, out, `latency_count{op="a"} 3`)
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("x", "X")
	assert.Panics(t, func() { r.NewGauge("x", "X") })
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("ops_total", "Ops with \"quotes\"\nand newline", "name")
	r.NewGauge("unused", "Never set")
	require.NoError(t, c.Inc(`we"ird`))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, "text/plain; version=0.0.4; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "# HELP ops_total Ops with \"quotes\"\\nand newline\n"+
		"# TYPE ops_total counter\n"+
		"ops_total{name=\"we\\\"ird\"} 1\n", string(body))
}

func TestOperations(t *testing.T) {
	m := NewOperations()
	desc := operation.Query(operation.GetProduct, map[string]any{"id": "x"})

	m.ObserveOperation(desc, operation.Success(map[string]any{"product": nil}), 20*time.Millisecond)
	m.ObserveOperation(desc, operation.Failure(operation.NotFound("product", "x")), time.Millisecond)

	assert.Equal(t, 1.0, m.Total.Value(operation.GetProduct, "query", OutcomeOK))
	assert.Equal(t, 1.0, m.Total.Value(operation.GetProduct, "query", "not_found"))
	assert.Equal(t, uint64(2), m.Duration.Count(operation.GetProduct))

	var b strings.Builder
	require.NoError(t, m.Registry.Write(&b))
	assert.Contains(t, b.String(), `posgraph_operations_total{operation="GetProduct",kind="query",outcome="not_found"} 1`)
	assert.NotContains(t, b.String(), "posgraph_rate_limited_total")
}
