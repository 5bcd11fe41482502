package mockengine

import (
	"context"
	"fmt"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockstore"
)

type saleLine struct {
	productID string
	name      string
	quantity  int
	price     float64
	gstRate   float64
}

func (l saleLine) total() float64 {
	return values.Round2(l.price * float64(l.quantity))
}

// buildSale computes line totals, subtotal, tax, and total. The discount is
// spread over the lines pro rata before GST is applied.
func buildSale(lines []saleLine, discount float64) map[string]any {
	items := make([]any, 0, len(lines))
	subtotal := 0.0
	for _, l := range lines {
		subtotal += l.total()
	}
	subtotal = values.Round2(subtotal)

	share := 1.0
	if subtotal > 0 {
		share = 1 - discount/subtotal
	}
	tax := 0.0
	for _, l := range lines {
		lineTotal := l.total()
		tax += lineTotal * share * l.gstRate / 100
		items = append(items, map[string]any{
			"productId": l.productID,
			"name":      l.name,
			"quantity":  l.quantity,
			"price":     l.price,
			"gstRate":   l.gstRate,
			"lineTotal": lineTotal,
		})
	}
	tax = values.Round2(tax)

	return map[string]any{
		"items":    items,
		"subtotal": subtotal,
		"discount": values.Round2(discount),
		"tax":      tax,
		"total":    values.Round2(subtotal - discount + tax),
	}
}

func (e *Engine) createSale(_ context.Context, vars map[string]any) (map[string]any, error) {
	rawItems, _ := vars["items"].([]any)
	customerID := str(vars, "customerId")
	method := str(vars, "paymentMethod")
	if method == "" {
		method = "cash"
	}
	discount := values.FloatOr(vars["discount"], 0)

	var created map[string]any
	err := e.store.Update([]string{Products, Sales, Customers}, func(tx *mockstore.Tx) error {
		var customer map[string]any
		if customerID != "" {
			c, err := tx.Get(Customers, customerID)
			if err != nil {
				return err
			}
			customer = c
		}

		// Validate every line before touching stock.
		lines := make([]saleLine, 0, len(rawItems))
		requested := make(map[string]int)
		stock := make(map[string]int)
		for i, raw := range rawItems {
			item, _ := raw.(map[string]any)
			pid := str(item, "productId")
			p, err := tx.Get(Products, pid)
			if err != nil {
				return err
			}
			qty := values.IntOr(item["quantity"], 0)
			requested[pid] += qty
			stock[pid] = values.IntOr(p["stock"], 0)
			if requested[pid] > stock[pid] {
				return &mockstore.ValidationError{
					Field:   fmt.Sprintf("items.%d.quantity", i),
					Message: fmt.Sprintf("insufficient stock for %s: requested %d, available %d", p["name"], requested[pid], stock[pid]),
				}
			}
			lines = append(lines, saleLine{
				productID: pid,
				name:      values.String(p["name"]),
				quantity:  qty,
				price:     values.FloatOr(item["price"], values.FloatOr(p["price"], 0)),
				gstRate:   values.FloatOr(p["gstRate"], defaultGSTRate),
			})
		}

		sale := buildSale(lines, discount)
		if discount > sale["subtotal"].(float64) {
			return &mockstore.ValidationError{Field: "discount", Message: "cannot exceed the subtotal"}
		}

		for pid, qty := range requested {
			if _, err := tx.Patch(Products, pid, map[string]any{"stock": stock[pid] - qty}); err != nil {
				return err
			}
		}

		sale["invoiceNumber"] = e.invoices.Next()
		sale["paymentMethod"] = method
		sale["customerId"] = nil
		sale["customerName"] = nil
		if customer != nil {
			sale["customerId"] = customerID
			sale["customerName"] = customer["name"]
			total := values.Round2(values.FloatOr(customer["totalPurchases"], 0) + sale["total"].(float64))
			if _, err := tx.Patch(Customers, customerID, map[string]any{"totalPurchases": total}); err != nil {
				return err
			}
		}

		var err error
		created, err = tx.Create(Sales, sale)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("createSale", created), nil
}

// deleteSale voids a sale: stock goes back to products that still exist and
// the customer's purchase total is reduced.
func (e *Engine) deleteSale(_ context.Context, vars map[string]any) (map[string]any, error) {
	saleID := str(vars, "id")
	err := e.store.Update([]string{Products, Sales, Customers}, func(tx *mockstore.Tx) error {
		sale, err := tx.Get(Sales, saleID)
		if err != nil {
			return err
		}

		items, _ := sale["items"].([]any)
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			pid := values.String(item["productId"])
			p, err := tx.Get(Products, pid)
			if err != nil {
				continue
			}
			restored := values.IntOr(p["stock"], 0) + values.IntOr(item["quantity"], 0)
			if _, err := tx.Patch(Products, pid, map[string]any{"stock": restored}); err != nil {
				return err
			}
		}

		if cid, _ := sale["customerId"].(string); cid != "" {
			if c, err := tx.Get(Customers, cid); err == nil {
				total := values.FloatOr(c["totalPurchases"], 0) - values.FloatOr(sale["total"], 0)
				if total < 0 {
					total = 0
				}
				if _, err := tx.Patch(Customers, cid, map[string]any{"totalPurchases": values.Round2(total)}); err != nil {
					return err
				}
			}
		}

		_, err = tx.Delete(Sales, saleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("deleteSale", deleted(saleID)), nil
}
