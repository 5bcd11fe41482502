package mockengine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockstore"
)

// Collection names.
const (
	Products     = "products"
	Sales        = "sales"
	Customers    = "customers"
	Barcodes     = "barcodes"
	StoreProfile = "storeProfile"
)

const (
	invoicePrefix  = "INV"
	storeProfileID = "store-1"
)

// Seed is the initial content of the mock store.
type Seed struct {
	Products     []map[string]any `yaml:"products"`
	Sales        []map[string]any `yaml:"sales"`
	Customers    []map[string]any `yaml:"customers"`
	Barcodes     []map[string]any `yaml:"barcodes"`
	StoreProfile map[string]any   `yaml:"storeProfile"`
}

func (s Seed) collections() []mockstore.CollectionConfig {
	var profile []map[string]any
	if s.StoreProfile != nil {
		p := values.CloneMap(s.StoreProfile)
		if _, ok := p["id"]; !ok {
			p["id"] = storeProfileID
		}
		profile = []map[string]any{p}
	}
	return []mockstore.CollectionConfig{
		{Name: Products, IDPrefix: "prod", SearchFields: []string{"name", "barcode", "category", "brand"}, Seed: s.Products},
		{Name: Sales, IDPrefix: "sale", SearchFields: []string{"invoiceNumber", "customerName", "paymentMethod"}, Seed: s.Sales},
		{Name: Customers, IDPrefix: "cust", SearchFields: []string{"name", "phone", "email"}, Seed: s.Customers},
		{Name: Barcodes, IDPrefix: "bc", SearchFields: []string{"code", "label", "format"}, Seed: s.Barcodes},
		{Name: StoreProfile, IDPrefix: "store", Seed: profile},
	}
}

// LoadSeedFile reads a YAML seed file.
func LoadSeedFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return s, nil
}

// syncInvoices advances the invoice sequence past every seeded invoice.
func (e *Engine) syncInvoices() {
	sales, err := e.store.Collection(Sales)
	if err != nil {
		return
	}
	for _, sale := range sales.All() {
		num, _ := sale["invoiceNumber"].(string)
		if n, ok := invoiceNumber(num); ok {
			e.invoices.Observe(n)
		}
	}
}

func invoiceNumber(s string) (int64, bool) {
	digits, ok := strings.CutPrefix(s, invoicePrefix+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	return n, err == nil
}

// DefaultSeed returns a small demo store. Sale timestamps are relative to
// now so dashboards and analytics have data for the current period.
func DefaultSeed(now time.Time) Seed {
	ago := func(d time.Duration) string { return now.Add(-d).UTC().Format(time.RFC3339) }
	day := 24 * time.Hour

	products := []map[string]any{
		product("prod-tea", "Assam Tea 250g", "8901030865278", 140, 95, 42, 10, "Beverages", "Tata", 5),
		product("prod-rice", "Basmati Rice 5kg", "8906001052106", 650, 520, 8, 10, "Grocery", "India Gate", 5),
		product("prod-oil", "Sunflower Oil 1L", "8901088064014", 185, 150, 25, 12, "Grocery", "Fortune", 5),
		product("prod-soap", "Bath Soap 125g", "8901030704416", 45, 30, 120, 24, "Personal Care", "Lux", 18),
		product("prod-paste", "Toothpaste 150g", "8901314010325", 99, 70, 3, 15, "Personal Care", "Colgate", 18),
		product("prod-biscuit", "Glucose Biscuits", "8901063010079", 10, 7, 300, 50, "Snacks", "Parle", 18),
		product("prod-chips", "Potato Chips 52g", "8901491101837", 20, 14, 0, 20, "Snacks", "Lays", 12),
		product("prod-milk", "Toned Milk 500ml", "8901262010014", 28, 24, 60, 30, "Dairy", "Amul", 0),
	}

	customers := []map[string]any{
		{"id": "cust-walkin", "name": "Walk-in Customer", "phone": nil, "email": nil, "address": nil, "gstin": nil,
			"totalPurchases": 0.0, "createdAt": ago(90 * day)},
		{"id": "cust-asha", "name": "Asha Verma", "phone": "+91 98100 11223", "email": "asha@example.com",
			"address": "12 MG Road, Pune", "gstin": nil, "totalPurchases": 0.0, "createdAt": ago(60 * day)},
		{"id": "cust-kirana", "name": "Sharma Kirana Store", "phone": "+91 98200 44556", "email": "orders@sharmakirana.in",
			"address": "Shop 4, Station Road, Nashik", "gstin": "27AAPFS1234K1Z5", "totalPurchases": 0.0, "createdAt": ago(45 * day)},
	}

	barcodes := []map[string]any{
		{"id": "bc-tea", "code": "8901030865278", "format": "EAN13", "productId": "prod-tea", "label": "Assam Tea 250g", "createdAt": ago(30 * day)},
		{"id": "bc-soap", "code": "8901030704416", "format": "EAN13", "productId": "prod-soap", "label": "Bath Soap 125g", "createdAt": ago(30 * day)},
	}

	s := Seed{
		Products:  products,
		Customers: customers,
		Barcodes:  barcodes,
		StoreProfile: map[string]any{
			"id": storeProfileID, "name": "Demo Mart", "address": "1 Market Street, Pune",
			"phone": "+91 20 4000 1000", "email": "hello@demomart.in", "gstin": "27AABCD1234E1Z9",
			"currency": "INR", "createdAt": ago(120 * day),
		},
	}

	byID := make(map[string]map[string]any, len(products))
	for _, p := range products {
		byID[p["id"].(string)] = p
	}
	sales := []struct {
		customer string
		items    [][2]any
		method   string
		at       time.Duration
	}{
		{"cust-asha", [][2]any{{"prod-tea", 2}, {"prod-biscuit", 5}}, "upi", 20 * day},
		{"cust-kirana", [][2]any{{"prod-rice", 2}, {"prod-oil", 4}}, "card", 6 * day},
		{"cust-walkin", [][2]any{{"prod-soap", 3}, {"prod-paste", 1}}, "cash", 2 * day},
		{"cust-asha", [][2]any{{"prod-milk", 4}, {"prod-chips", 3}}, "cash", 3 * time.Hour},
	}
	customerByID := make(map[string]map[string]any, len(customers))
	for _, c := range customers {
		customerByID[c["id"].(string)] = c
	}
	for i, sd := range sales {
		lines := make([]saleLine, 0, len(sd.items))
		for _, it := range sd.items {
			p := byID[it[0].(string)]
			lines = append(lines, saleLine{
				productID: it[0].(string),
				name:      p["name"].(string),
				quantity:  it[1].(int),
				price:     p["price"].(float64),
				gstRate:   p["gstRate"].(float64),
			})
		}
		cust := customerByID[sd.customer]
		sale := buildSale(lines, 0)
		sale["id"] = fmt.Sprintf("sale-seed-%d", i+1)
		sale["invoiceNumber"] = fmt.Sprintf("%s-%06d", invoicePrefix, i+1)
		sale["customerId"] = sd.customer
		sale["customerName"] = cust["name"]
		sale["paymentMethod"] = sd.method
		sale["createdAt"] = ago(sd.at)
		cust["totalPurchases"] = values.Round2(cust["totalPurchases"].(float64) + sale["total"].(float64))
		s.Sales = append(s.Sales, sale)
	}
	return s
}

func product(id, name, barcode string, price, cost float64, stock, minStock int, category, brand string, gst float64) map[string]any {
	return map[string]any{
		"id": id, "name": name, "barcode": barcode, "price": price, "costPrice": cost,
		"stock": stock, "minStock": minStock, "category": category, "brand": brand,
		"supplier": brand + " Distributors", "gstRate": gst, "unit": "pcs",
	}
}
