package mockengine

import (
	"context"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockstore"
)

var customerOptional = []string{"phone", "email", "address", "gstin"}

func (e *Engine) createCustomer(_ context.Context, vars map[string]any) (map[string]any, error) {
	rec := map[string]any{"name": str(vars, "name"), "totalPurchases": 0.0}
	for _, k := range customerOptional {
		rec[k] = vars[k]
	}
	c, err := e.store.Collection(Customers)
	if err != nil {
		return nil, err
	}
	created, err := c.Create(rec)
	if err != nil {
		return nil, err
	}
	return field("createCustomer", created), nil
}

func (e *Engine) updateCustomer(_ context.Context, vars map[string]any) (map[string]any, error) {
	patch := pick(vars, append([]string{"name"}, customerOptional...)...)
	if v, ok := patch["name"]; ok && v == nil {
		delete(patch, "name")
	}
	c, err := e.store.Collection(Customers)
	if err != nil {
		return nil, err
	}
	updated, err := c.Patch(str(vars, "id"), patch)
	if err != nil {
		return nil, err
	}
	return field("updateCustomer", updated), nil
}

func (e *Engine) createBarcode(_ context.Context, vars map[string]any) (map[string]any, error) {
	code := str(vars, "code")
	format := str(vars, "format")
	if format == "" {
		format = "EAN13"
	}
	productID := str(vars, "productId")

	var created map[string]any
	err := e.store.Update([]string{Barcodes, Products}, func(tx *mockstore.Tx) error {
		_, dup, err := tx.Find(Barcodes, func(m map[string]any) bool { return m["code"] == code })
		if err != nil {
			return err
		}
		if dup {
			return &mockstore.ValidationError{Field: "code", Message: "is already registered"}
		}

		rec := map[string]any{"code": code, "format": format, "productId": nil, "label": vars["label"]}
		if productID != "" {
			p, err := tx.Get(Products, productID)
			if err != nil {
				return err
			}
			rec["productId"] = productID
			if rec["label"] == nil {
				rec["label"] = p["name"]
			}
		}
		created, err = tx.Create(Barcodes, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("createBarcode", created), nil
}

func (e *Engine) getStoreProfile(_ context.Context, _ map[string]any) (map[string]any, error) {
	c, err := e.store.Collection(StoreProfile)
	if err != nil {
		return nil, err
	}
	all := c.All()
	if len(all) == 0 {
		return field("storeProfile", nil), nil
	}
	return field("storeProfile", all[0]), nil
}

// updateStoreProfile patches the single profile record, creating it on
// first use.
func (e *Engine) updateStoreProfile(_ context.Context, vars map[string]any) (map[string]any, error) {
	patch := pick(vars, "name", "address", "phone", "email", "gstin", "currency")
	if v, ok := patch["name"]; ok && v == nil {
		delete(patch, "name")
	}

	var profile map[string]any
	err := e.store.Update([]string{StoreProfile}, func(tx *mockstore.Tx) error {
		all, err := tx.All(StoreProfile)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			if _, ok := patch["name"]; !ok {
				return &mockstore.ValidationError{Field: "name", Message: "is required to create the store profile"}
			}
			rec := values.CloneMap(patch)
			rec["id"] = storeProfileID
			profile, err = tx.Create(StoreProfile, rec)
			return err
		}
		profile, err = tx.Patch(StoreProfile, values.String(all[0]["id"]), patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("updateStoreProfile", profile), nil
}
