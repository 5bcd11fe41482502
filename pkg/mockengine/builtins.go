package mockengine

import (
	"context"

	op "github.com/getmockd/posgraph/pkg/operation"
)

func (e *Engine) registerBuiltins() error {
	builtins := []struct {
		name    string
		kind    op.Kind
		handler Handler
	}{
		{op.GetProducts, op.KindQuery, e.getProducts},
		{op.GetProduct, op.KindQuery, e.getProduct},
		{op.GetProductByBarcode, op.KindQuery, e.getProductByBarcode},
		{op.GetSales, op.KindQuery, e.listCollection(Sales, "sales")},
		{op.GetSale, op.KindQuery, func(_ context.Context, vars map[string]any) (map[string]any, error) {
			return e.getByID(Sales, "sale", str(vars, "id"))
		}},
		{op.GetCustomers, op.KindQuery, e.listCollection(Customers, "customers")},
		{op.GetCustomer, op.KindQuery, func(_ context.Context, vars map[string]any) (map[string]any, error) {
			return e.getByID(Customers, "customer", str(vars, "id"))
		}},
		{op.GetBarcodes, op.KindQuery, e.listCollection(Barcodes, "barcodes")},
		{op.GetStoreProfile, op.KindQuery, e.getStoreProfile},
		{op.GetDashboardStats, op.KindQuery, e.getDashboardStats},
		{op.GetLowStockItems, op.KindQuery, e.getLowStockItems},
		{op.GetRecentTransactions, op.KindQuery, e.getRecentTransactions},
		{op.GetSalesAnalytics, op.KindQuery, e.getSalesAnalytics},
		{op.GetTopProducts, op.KindQuery, e.getTopProducts},
		{op.GetGstSummary, op.KindQuery, e.getGstSummary},

		{op.CreateProduct, op.KindMutation, e.createProduct},
		{op.UpdateProduct, op.KindMutation, e.updateProduct},
		{op.DeleteProduct, op.KindMutation, e.deleteProduct},
		{op.CreateSale, op.KindMutation, e.createSale},
		{op.DeleteSale, op.KindMutation, e.deleteSale},
		{op.CreateCustomer, op.KindMutation, e.createCustomer},
		{op.UpdateCustomer, op.KindMutation, e.updateCustomer},
		{op.DeleteCustomer, op.KindMutation, func(_ context.Context, vars map[string]any) (map[string]any, error) {
			return e.deleteByID(Customers, "deleteCustomer", str(vars, "id"))
		}},
		{op.CreateBarcode, op.KindMutation, e.createBarcode},
		{op.DeleteBarcode, op.KindMutation, func(_ context.Context, vars map[string]any) (map[string]any, error) {
			return e.deleteByID(Barcodes, "deleteBarcode", str(vars, "id"))
		}},
		{op.UpdateStoreProfile, op.KindMutation, e.updateStoreProfile},
	}

	for _, b := range builtins {
		if err := e.Register(b.name, b.kind, b.handler); err != nil {
			return err
		}
	}
	return nil
}
