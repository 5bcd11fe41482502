package mockengine

import (
	"time"

	"github.com/getmockd/posgraph/pkg/operation"
)

// LatencyPolicy returns the simulated delay for an operation.
type LatencyPolicy func(operationName string) time.Duration

// defaultLatencies mirrors what the live backend typically takes: point
// reads are quick, aggregates and checkout are slow.
var defaultLatencies = map[string]time.Duration{
	operation.GetStoreProfile:       100 * time.Millisecond,
	operation.GetProduct:            150 * time.Millisecond,
	operation.GetProductByBarcode:   150 * time.Millisecond,
	operation.GetSale:               150 * time.Millisecond,
	operation.GetCustomer:           150 * time.Millisecond,
	operation.GetProducts:           300 * time.Millisecond,
	operation.GetSales:              300 * time.Millisecond,
	operation.GetCustomers:          300 * time.Millisecond,
	operation.GetBarcodes:           300 * time.Millisecond,
	operation.GetLowStockItems:      300 * time.Millisecond,
	operation.GetRecentTransactions: 300 * time.Millisecond,
	operation.GetTopProducts:        600 * time.Millisecond,
	operation.GetDashboardStats:     800 * time.Millisecond,
	operation.GetGstSummary:         1000 * time.Millisecond,
	operation.GetSalesAnalytics:     1200 * time.Millisecond,
	operation.CreateProduct:         500 * time.Millisecond,
	operation.UpdateProduct:         500 * time.Millisecond,
	operation.DeleteProduct:         400 * time.Millisecond,
	operation.CreateSale:            2000 * time.Millisecond,
	operation.DeleteSale:            800 * time.Millisecond,
	operation.CreateCustomer:        500 * time.Millisecond,
	operation.UpdateCustomer:        500 * time.Millisecond,
	operation.DeleteCustomer:        400 * time.Millisecond,
	operation.CreateBarcode:         400 * time.Millisecond,
	operation.DeleteBarcode:         400 * time.Millisecond,
	operation.UpdateStoreProfile:    500 * time.Millisecond,
}

const fallbackLatency = 300 * time.Millisecond

// DefaultLatency simulates realistic network delays between 100ms and 2s.
func DefaultLatency(name string) time.Duration {
	if d, ok := defaultLatencies[name]; ok {
		return d
	}
	return fallbackLatency
}

// NoLatency disables simulated delays.
func NoLatency(string) time.Duration { return 0 }

// FixedLatency returns a policy that always waits d.
func FixedLatency(d time.Duration) LatencyPolicy {
	return func(string) time.Duration { return d }
}

// ParseLatency maps a config value ("default", "none", "fixed") to a policy.
func ParseLatency(mode string, fixed time.Duration) LatencyPolicy {
	switch mode {
	case "none", "off":
		return NoLatency
	case "fixed":
		return FixedLatency(fixed)
	default:
		return DefaultLatency
	}
}
