package mockengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockstore"
)

// ruleEnv is the variable set visible to the low-stock rule.
func ruleEnv(p map[string]any) map[string]any {
	return map[string]any{
		"stock":    values.IntOr(p["stock"], 0),
		"minStock": values.IntOr(p["minStock"], 0),
		"price":    values.FloatOr(p["price"], 0),
		"category": values.String(p["category"]),
		"name":     values.String(p["name"]),
	}
}

func compileRule(rule string) (*vm.Program, error) {
	return expr.Compile(rule, expr.Env(ruleEnv(nil)), expr.AsBool())
}

func (e *Engine) isLowStock(p map[string]any) (bool, error) {
	out, err := expr.Run(e.lowStock, ruleEnv(p))
	if err != nil {
		return false, fmt.Errorf("eval low stock rule %q: %w", e.lowStockRule, err)
	}
	low, _ := out.(bool)
	return low, nil
}

func (e *Engine) lowStockProducts(products []map[string]any) ([]map[string]any, error) {
	var out []map[string]any
	for _, p := range products {
		low, err := e.isLowStock(p)
		if err != nil {
			return nil, err
		}
		if low {
			out = append(out, p)
		}
	}
	return out, nil
}

func saleTime(s map[string]any) time.Time {
	t, _ := time.Parse(time.RFC3339, values.String(s["createdAt"]))
	return t
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (e *Engine) getDashboardStats(_ context.Context, _ map[string]any) (map[string]any, error) {
	now := e.now()
	stats := map[string]any{}
	err := e.store.View([]string{Customers, Products, Sales}, func(tx *mockstore.Tx) error {
		products, err := tx.All(Products)
		if err != nil {
			return err
		}
		sales, err := tx.All(Sales)
		if err != nil {
			return err
		}
		customers, err := tx.All(Customers)
		if err != nil {
			return err
		}
		low, err := e.lowStockProducts(products)
		if err != nil {
			return err
		}

		revenue, todayRevenue, todaySales := 0.0, 0.0, 0
		for _, s := range sales {
			total := values.FloatOr(s["total"], 0)
			revenue += total
			if sameDay(saleTime(s), now) {
				todaySales++
				todayRevenue += total
			}
		}
		stats["totalSales"] = len(sales)
		stats["totalRevenue"] = values.Round2(revenue)
		stats["totalProducts"] = len(products)
		stats["totalCustomers"] = len(customers)
		stats["lowStockCount"] = len(low)
		stats["todaySales"] = todaySales
		stats["todayRevenue"] = values.Round2(todayRevenue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return field("dashboardStats", stats), nil
}

func (e *Engine) getLowStockItems(_ context.Context, vars map[string]any) (map[string]any, error) {
	c, err := e.store.Collection(Products)
	if err != nil {
		return nil, err
	}
	low, err := e.lowStockProducts(c.All())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(low, func(i, j int) bool {
		return values.IntOr(low[i]["stock"], 0) < values.IntOr(low[j]["stock"], 0)
	})
	if limit := values.IntOr(vars["limit"], 0); limit > 0 && limit < len(low) {
		low = low[:limit]
	}
	return field("lowStockItems", list(low)), nil
}

const defaultRecentLimit = 5

func (e *Engine) getRecentTransactions(_ context.Context, vars map[string]any) (map[string]any, error) {
	c, err := e.store.Collection(Sales)
	if err != nil {
		return nil, err
	}
	limit := values.IntOr(vars["limit"], defaultRecentLimit)
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	page := c.List(&mockstore.QueryFilter{Sort: "createdAt", Order: "desc", Limit: limit})
	return field("recentTransactions", list(page.Items)), nil
}

var periods = map[string]struct {
	buckets int
	monthly bool
}{
	"day":   {buckets: 1},
	"week":  {buckets: 7},
	"month": {buckets: 30},
	"year":  {buckets: 12, monthly: true},
}

func (e *Engine) getSalesAnalytics(_ context.Context, vars map[string]any) (map[string]any, error) {
	period := strings.ToLower(str(vars, "period"))
	if period == "" {
		period = "week"
	}
	spec, ok := periods[period]
	if !ok {
		return nil, &mockstore.ValidationError{Field: "period", Message: "must be one of day, week, month, year"}
	}

	c, err := e.store.Collection(Sales)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	layout := time.DateOnly
	keys := make([]string, spec.buckets)
	for i := range keys {
		back := spec.buckets - 1 - i
		if spec.monthly {
			layout = "2006-01"
			keys[i] = time.Date(now.Year(), now.Month()-time.Month(back), 1, 0, 0, 0, 0, time.UTC).Format(layout)
		} else {
			keys[i] = now.AddDate(0, 0, -back).Format(layout)
		}
	}

	type bucket struct {
		sales   int
		revenue float64
	}
	buckets := make(map[string]*bucket, len(keys))
	for _, k := range keys {
		buckets[k] = &bucket{}
	}

	totalSales, totalRevenue := 0, 0.0
	for _, s := range c.All() {
		b, ok := buckets[saleTime(s).UTC().Format(layout)]
		if !ok {
			continue
		}
		total := values.FloatOr(s["total"], 0)
		b.sales++
		b.revenue += total
		totalSales++
		totalRevenue += total
	}

	series := make([]any, len(keys))
	for i, k := range keys {
		series[i] = map[string]any{"date": k, "sales": buckets[k].sales, "revenue": values.Round2(buckets[k].revenue)}
	}
	avg := 0.0
	if totalSales > 0 {
		avg = values.Round2(totalRevenue / float64(totalSales))
	}
	return field("salesAnalytics", map[string]any{
		"period":            period,
		"totalSales":        totalSales,
		"totalRevenue":      values.Round2(totalRevenue),
		"averageOrderValue": avg,
		"series":            series,
	}), nil
}

const defaultTopLimit = 5

func (e *Engine) getTopProducts(_ context.Context, vars map[string]any) (map[string]any, error) {
	c, err := e.store.Collection(Sales)
	if err != nil {
		return nil, err
	}

	type top struct {
		id, name string
		qty      int
		revenue  float64
	}
	byID := map[string]*top{}
	for _, s := range c.All() {
		items, _ := s["items"].([]any)
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			pid := values.String(item["productId"])
			t, ok := byID[pid]
			if !ok {
				t = &top{id: pid, name: values.String(item["name"])}
				byID[pid] = t
			}
			t.qty += values.IntOr(item["quantity"], 0)
			t.revenue += values.FloatOr(item["lineTotal"], 0)
		}
	}

	ranked := make([]*top, 0, len(byID))
	for _, t := range byID {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].qty != ranked[j].qty {
			return ranked[i].qty > ranked[j].qty
		}
		if ranked[i].revenue != ranked[j].revenue {
			return ranked[i].revenue > ranked[j].revenue
		}
		return ranked[i].id < ranked[j].id
	})

	limit := values.IntOr(vars["limit"], defaultTopLimit)
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	out := make([]any, len(ranked))
	for i, t := range ranked {
		out[i] = map[string]any{
			"productId":    t.id,
			"name":         t.name,
			"quantitySold": t.qty,
			"revenue":      values.Round2(t.revenue),
		}
	}
	return field("topProducts", out), nil
}

// parseDateBound accepts YYYY-MM-DD or RFC3339. A date-only upper bound
// covers the whole day.
func parseDateBound(field, s string, upper bool) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false, &mockstore.ValidationError{Field: field, Message: "must be a date (YYYY-MM-DD) or RFC3339 timestamp"}
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true, nil
}

func (e *Engine) getGstSummary(_ context.Context, vars map[string]any) (map[string]any, error) {
	fromRaw, toRaw := str(vars, "from"), str(vars, "to")
	from, hasFrom, err := parseDateBound("from", fromRaw, false)
	if err != nil {
		return nil, err
	}
	to, hasTo, err := parseDateBound("to", toRaw, true)
	if err != nil {
		return nil, err
	}
	if hasFrom && hasTo && to.Before(from) {
		return nil, &mockstore.ValidationError{Field: "to", Message: "must not be before from"}
	}

	c, err := e.store.Collection(Sales)
	if err != nil {
		return nil, err
	}

	type rateBucket struct{ taxable, tax float64 }
	byRate := map[float64]*rateBucket{}
	taxable, totalTax := 0.0, 0.0
	for _, s := range c.All() {
		at := saleTime(s)
		if (hasFrom && at.Before(from)) || (hasTo && at.After(to)) {
			continue
		}
		subtotal := values.FloatOr(s["subtotal"], 0)
		share := 1.0
		if subtotal > 0 {
			share = 1 - values.FloatOr(s["discount"], 0)/subtotal
		}
		items, _ := s["items"].([]any)
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			rate := values.FloatOr(item["gstRate"], defaultGSTRate)
			base := values.FloatOr(item["lineTotal"], 0) * share
			b, ok := byRate[rate]
			if !ok {
				b = &rateBucket{}
				byRate[rate] = b
			}
			b.taxable += base
			b.tax += base * rate / 100
			taxable += base
			totalTax += base * rate / 100
		}
	}

	rates := make([]float64, 0, len(byRate))
	for r := range byRate {
		rates = append(rates, r)
	}
	sort.Float64s(rates)
	buckets := make([]any, len(rates))
	for i, r := range rates {
		buckets[i] = map[string]any{
			"rate":          r,
			"taxableAmount": values.Round2(byRate[r].taxable),
			"tax":           values.Round2(byRate[r].tax),
		}
	}

	totalTax = values.Round2(totalTax)
	half := values.Round2(totalTax / 2)
	return field("gstSummary", map[string]any{
		"from":          nullable(fromRaw),
		"to":            nullable(toRaw),
		"taxableAmount": values.Round2(taxable),
		"cgst":          half,
		"sgst":          values.Round2(totalTax - half),
		"totalTax":      totalTax,
		"byRate":        buckets,
	}), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
