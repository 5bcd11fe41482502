package mockengine

import (
	"context"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockstore"
)

const defaultGSTRate = 18.0

var productOptional = []string{"barcode", "costPrice", "minStock", "category", "brand", "supplier", "gstRate", "unit"}

func (e *Engine) getProducts(_ context.Context, vars map[string]any) (map[string]any, error) {
	c, err := e.store.Collection(Products)
	if err != nil {
		return nil, err
	}
	f := pageFilter(vars)
	if cat := str(vars, "category"); cat != "" {
		f.Filters = map[string]string{"category": cat}
	}
	return field("products", list(c.List(f).Items)), nil
}

func (e *Engine) getProduct(_ context.Context, vars map[string]any) (map[string]any, error) {
	return e.getByID(Products, "product", str(vars, "id"))
}

func (e *Engine) getProductByBarcode(_ context.Context, vars map[string]any) (map[string]any, error) {
	code := str(vars, "barcode")
	var found map[string]any
	err := e.store.View([]string{Barcodes, Products}, func(tx *mockstore.Tx) error {
		p, ok, err := tx.Find(Products, func(m map[string]any) bool { return m["barcode"] == code })
		if err != nil {
			return err
		}
		if ok {
			found = p
			return nil
		}
		// Fall back to the barcodes collection.
		bc, ok, err := tx.Find(Barcodes, func(m map[string]any) bool { return m["code"] == code })
		if err != nil {
			return err
		}
		pid, _ := bc["productId"].(string)
		if !ok || pid == "" {
			return &mockstore.NotFoundError{Collection: Products, ID: code}
		}
		found, err = tx.Get(Products, pid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("productByBarcode", found), nil
}

func (e *Engine) createProduct(_ context.Context, vars map[string]any) (map[string]any, error) {
	rec := map[string]any{
		"name":     str(vars, "name"),
		"price":    values.FloatOr(vars["price"], 0),
		"stock":    values.IntOr(vars["stock"], 0),
		"minStock": 0,
		"gstRate":  defaultGSTRate,
	}
	for k, v := range pick(vars, productOptional...) {
		if v != nil {
			rec[k] = v
		}
	}
	normalizeProduct(rec)

	var created map[string]any
	err := e.store.Update([]string{Products}, func(tx *mockstore.Tx) error {
		if err := checkUniqueBarcode(tx, "", rec["barcode"]); err != nil {
			return err
		}
		var err error
		created, err = tx.Create(Products, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("createProduct", created), nil
}

func (e *Engine) updateProduct(_ context.Context, vars map[string]any) (map[string]any, error) {
	recID := str(vars, "id")
	patch := pick(vars, append([]string{"name", "price", "stock"}, productOptional...)...)
	for _, required := range []string{"name", "price", "stock"} {
		if v, ok := patch[required]; ok && v == nil {
			delete(patch, required)
		}
	}
	normalizeProduct(patch)

	var updated map[string]any
	err := e.store.Update([]string{Products}, func(tx *mockstore.Tx) error {
		if _, err := tx.Get(Products, recID); err != nil {
			return err
		}
		if b, ok := patch["barcode"]; ok {
			if err := checkUniqueBarcode(tx, recID, b); err != nil {
				return err
			}
		}
		var err error
		updated, err = tx.Patch(Products, recID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return field("updateProduct", updated), nil
}

func (e *Engine) deleteProduct(_ context.Context, vars map[string]any) (map[string]any, error) {
	return e.deleteByID(Products, "deleteProduct", str(vars, "id"))
}

// normalizeProduct stores integer fields as int so records keep one numeric
// type per field regardless of the variable source.
func normalizeProduct(rec map[string]any) {
	for _, k := range []string{"stock", "minStock"} {
		if v, ok := rec[k]; ok && v != nil {
			rec[k] = values.IntOr(v, 0)
		}
	}
	for _, k := range []string{"price", "costPrice", "gstRate"} {
		if v, ok := rec[k]; ok && v != nil {
			rec[k] = values.FloatOr(v, 0)
		}
	}
}

func checkUniqueBarcode(tx *mockstore.Tx, selfID string, barcode any) error {
	code, _ := barcode.(string)
	if code == "" {
		return nil
	}
	_, dup, err := tx.Find(Products, func(m map[string]any) bool {
		return m["barcode"] == code && m["id"] != selfID
	})
	if err != nil {
		return err
	}
	if dup {
		return &mockstore.ValidationError{Field: "barcode", Message: "is already assigned to another product"}
	}
	return nil
}

func (e *Engine) getByID(collection, fieldName, recID string) (map[string]any, error) {
	c, err := e.store.Collection(collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.Get(recID)
	if err != nil {
		return nil, err
	}
	return field(fieldName, rec), nil
}

func (e *Engine) deleteByID(collection, fieldName, recID string) (map[string]any, error) {
	c, err := e.store.Collection(collection)
	if err != nil {
		return nil, err
	}
	if _, err := c.Delete(recID); err != nil {
		return nil, err
	}
	return field(fieldName, deleted(recID)), nil
}

func (e *Engine) listCollection(collection, fieldName string) Handler {
	return func(_ context.Context, vars map[string]any) (map[string]any, error) {
		c, err := e.store.Collection(collection)
		if err != nil {
			return nil, err
		}
		return field(fieldName, list(c.List(pageFilter(vars)).Items)), nil
	}
}
