package server_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/router"
	"github.com/getmockd/posgraph/pkg/server"
	"github.com/getmockd/posgraph/pkg/transport"
)

var parityNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// backends returns a router on a mock engine and a router on the live
// transport talking to a second, identically seeded engine over HTTP.
func backends(t *testing.T) (mock, live *router.Router) {
	t.Helper()
	newEngine := func() *mockengine.Engine {
		e, err := mockengine.New(
			mockengine.WithLatency(mockengine.NoLatency),
			mockengine.WithClock(func() time.Time { return parityNow }),
		)
		require.NoError(t, err)
		return e
	}

	srv, err := server.New(server.Config{Engine: newEngine()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tr, err := transport.New(ts.URL + "/graphql")
	require.NoError(t, err)

	mock = router.New(newEngine())
	live = router.New(tr)
	t.Cleanup(func() {
		_ = mock.Close()
		_ = live.Close()
	})
	return mock, live
}

func normalized(t *testing.T, res operation.Result) map[string]any {
	t.Helper()
	data, err := values.Normalize(res.Data)
	require.NoError(t, err)
	return data
}

var queryVars = map[string]map[string]any{
	operation.GetProducts:           {"limit": 50},
	operation.GetProduct:            {"id": "prod-tea"},
	operation.GetProductByBarcode:   {"barcode": "8901030865278"},
	operation.GetSales:              {"limit": 10, "search": "asha"},
	operation.GetSale:               {"id": "sale-seed-2"},
	operation.GetCustomers:          {"search": "kirana"},
	operation.GetCustomer:           {"id": "cust-asha"},
	operation.GetLowStockItems:      {"limit": 10},
	operation.GetRecentTransactions: {"limit": 3},
	operation.GetSalesAnalytics:     {"period": "week"},
	operation.GetTopProducts:        {"limit": 3},
	operation.GetGstSummary:         {"from": "2026-02-01", "to": "2026-03-15"},
}

func TestParity_Queries(t *testing.T) {
	mock, live := backends(t)
	ctx := context.Background()

	for _, entry := range operation.MustDefaultCatalog().Entries() {
		if entry.Kind != operation.KindQuery {
			continue
		}
		t.Run(entry.Name, func(t *testing.T) {
			desc := operation.Query(entry.Name, queryVars[entry.Name])
			fromMock := mock.Execute(ctx, desc)
			fromLive := live.Execute(ctx, desc)
			require.True(t, fromMock.OK(), "mock: %v", fromMock.Errors)
			require.True(t, fromLive.OK(), "live: %v", fromLive.Errors)

			if diff := cmp.Diff(normalized(t, fromMock), fromLive.Data); diff != "" {
				t.Errorf("mock and live differ (-mock +live):\n%s", diff)
			}
		})
	}
}

func TestParity_Mutations(t *testing.T) {
	mock, live := backends(t)
	ctx := context.Background()
	ignoreIDs := cmpopts.IgnoreMapEntries(func(k string, _ any) bool { return k == "id" })

	steps := []operation.Descriptor{
		operation.Mutation(operation.CreateProduct, map[string]any{"name": "Widget", "price": 12.5, "stock": 4}),
		operation.Mutation(operation.UpdateProduct, map[string]any{"id": "prod-oil", "price": 190}),
		operation.Mutation(operation.CreateSale, map[string]any{
			"items":      []any{map[string]any{"productId": "prod-tea", "quantity": 2}},
			"customerId": "cust-kirana",
		}),
		operation.Mutation(operation.CreateCustomer, map[string]any{"name": "Ravi"}),
		operation.Mutation(operation.UpdateStoreProfile, map[string]any{"phone": "+91 20 4000 2000"}),
		operation.Mutation(operation.DeleteBarcode, map[string]any{"id": "bc-soap"}),
	}
	for _, desc := range steps {
		t.Run(desc.Name(), func(t *testing.T) {
			fromMock := mock.Execute(ctx, desc)
			fromLive := live.Execute(ctx, desc)
			require.True(t, fromMock.OK(), "mock: %v", fromMock.Errors)
			require.True(t, fromLive.OK(), "live: %v", fromLive.Errors)

			if diff := cmp.Diff(normalized(t, fromMock), fromLive.Data, ignoreIDs); diff != "" {
				t.Errorf("mock and live differ (-mock +live):\n%s", diff)
			}
		})
	}
}

func TestParity_Errors(t *testing.T) {
	mock, live := backends(t)
	ctx := context.Background()

	tests := []struct {
		desc operation.Descriptor
		kind operation.ErrorKind
	}{
		{desc: operation.Query("GetEverything", nil), kind: operation.KindUnknownOperation},
		{desc: operation.Mutation(operation.DeleteProduct, map[string]any{"id": "does-not-exist"}), kind: operation.KindNotFound},
		{desc: operation.Mutation(operation.CreateProduct, map[string]any{"price": 1, "stock": 1}), kind: operation.KindValidation},
		{desc: operation.Mutation(operation.CreateSale, map[string]any{
			"items": []any{map[string]any{"productId": "prod-chips", "quantity": 1}},
		}), kind: operation.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.desc.Name(), func(t *testing.T) {
			fromMock := mock.Execute(ctx, tt.desc)
			fromLive := live.Execute(ctx, tt.desc)
			require.Len(t, fromMock.Errors, 1)
			require.Len(t, fromLive.Errors, 1)
			assert.Equal(t, tt.kind, fromMock.Errors[0].Kind)
			assert.Equal(t, tt.kind, fromLive.Errors[0].Kind)
			assert.Equal(t, fromMock.Errors[0].Message, fromLive.Errors[0].Message)
			assert.Equal(t, fromMock.Errors[0].Field(), fromLive.Errors[0].Field())
		})
	}
}
