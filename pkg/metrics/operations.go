package metrics

import (
	"strings"
	"time"

	"github.com/getmockd/posgraph/pkg/operation"
)

// Label values.
const (
	OutcomeOK = "ok"
)

// Operations is the metric set of the mock GraphQL server.
type Operations struct {
	Registry *Registry

	// Total counts executed operations. Labels: operation, kind, outcome.
	// outcome is "ok" or the lowercased error code (e.g. "not_found").
	Total *Counter
	// Duration tracks execution time in seconds. Labels: operation.
	Duration *Histogram
	// Requests counts HTTP responses. Labels: route, status.
	Requests *Counter
	// RateLimited counts rejected requests.
	RateLimited *Counter
	// Records is the record count per collection, refreshed on scrape.
	// Labels: collection.
	Records *Gauge
}

// NewOperations registers the server metrics in a fresh registry.
func NewOperations() *Operations {
	r := NewRegistry()
	return &Operations{
		Registry: r,
		Total: r.NewCounter("posgraph_operations_total",
			"Executed GraphQL operations", "operation", "kind", "outcome"),
		Duration: r.NewHistogram("posgraph_operation_duration_seconds",
			"Operation execution time in seconds", DefaultBuckets, "operation"),
		Requests: r.NewCounter("posgraph_http_requests_total",
			"HTTP responses by route and status", "route", "status"),
		RateLimited: r.NewCounter("posgraph_rate_limited_total",
			"Requests rejected by the rate limiter"),
		Records: r.NewGauge("posgraph_store_records",
			"Records per mock collection", "collection"),
	}
}

// Outcome returns the outcome label for res.
func Outcome(res operation.Result) string {
	if first := res.FirstError(); first != nil {
		return strings.ToLower(first.Kind.Code())
	}
	return OutcomeOK
}

// ObserveOperation records one execution.
func (o *Operations) ObserveOperation(desc operation.Descriptor, res operation.Result, d time.Duration) {
	_ = o.Total.Inc(desc.Name(), desc.Kind().String(), Outcome(res))
	_ = o.Duration.Observe(d.Seconds(), desc.Name())
}
