package mockstore

import "fmt"

// Tx gives access to a locked set of collections inside Store.Update or
// Store.View. It must not be used after the callback returns.
type Tx struct {
	cols     map[string]*Collection
	writable bool
}

func (tx *Tx) collection(name string) (*Collection, error) {
	c, ok := tx.cols[name]
	if !ok {
		return nil, fmt.Errorf("collection %q is not part of this transaction", name)
	}
	return c, nil
}

func (tx *Tx) writeable(name string) (*Collection, error) {
	if !tx.writable {
		return nil, ErrReadOnly
	}
	return tx.collection(name)
}

// Get returns a copy of a record.
func (tx *Tx) Get(collection, id string) (map[string]any, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.get(id)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Find returns a copy of the first matching record.
func (tx *Tx) Find(collection string, match func(map[string]any) bool) (map[string]any, bool, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return nil, false, err
	}
	m, ok := c.find(match)
	return m, ok, nil
}

// List returns a filtered page of copies.
func (tx *Tx) List(collection string, filter *QueryFilter) (Page, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return Page{}, err
	}
	return c.list(filter), nil
}

// All returns copies of every record in insertion order.
func (tx *Tx) All(collection string) ([]map[string]any, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return nil, err
	}
	return c.all(), nil
}

// Create inserts a record.
func (tx *Tx) Create(collection string, data map[string]any) (map[string]any, error) {
	c, err := tx.writeable(collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.create(data)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Patch merges fields into a record.
func (tx *Tx) Patch(collection, id string, fields map[string]any) (map[string]any, error) {
	c, err := tx.writeable(collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.patch(id, fields)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Delete removes a record and returns its last state.
func (tx *Tx) Delete(collection, id string) (map[string]any, error) {
	c, err := tx.writeable(collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.remove(id)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}
