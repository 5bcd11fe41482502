// Package mockstore is the in-memory arena behind the mock backend.
//
// A Store holds named collections (products, sales, customers, barcodes,
// storeProfile). Each Collection keeps its records in insertion order and
// indexes them by id. Reads always return deep copies so callers can never
// mutate stored state through a returned value.
//
// Thread Safety:
//
// Every collection has its own sync.RWMutex. Reads run concurrently, writes
// are serialized per collection. Operations that touch several collections
// use Store.Update (or Store.View for consistent reads), which locks the
// named collections in sorted-name order so two transactions can never
// deadlock each other.
//
// Usage:
//
//	store := mockstore.New()
//	_ = store.Register(mockstore.CollectionConfig{
//	    Name:         "products",
//	    IDPrefix:     "prod",
//	    SearchFields: []string{"name", "barcode"},
//	})
//
//	products, _ := store.Collection("products")
//	rec, err := products.Create(map[string]any{"name": "Tea"})
//	page := products.List(&mockstore.QueryFilter{Search: "tea", Limit: 10})
//
//	err = store.Update([]string{"products", "sales"}, func(tx *mockstore.Tx) error {
//	    // validate, then mutate both collections atomically
//	    return nil
//	})
//
//	store.Reset("") // back to seed data
package mockstore
