package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_Builds(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Len(t, c.Names(), 26)
	assert.NotNil(t, c.Schema())
	assert.NotPanics(t, func() { MustDefaultCatalog() })
}

func TestDefaultCatalog_Entries(t *testing.T) {
	c := MustDefaultCatalog()

	e, ok := c.Lookup(GetProducts)
	require.True(t, ok)
	assert.Equal(t, KindQuery, e.Kind)
	assert.Equal(t, "products", e.Field)
	assert.Contains(t, e.Document, "query GetProducts")
	names := make([]string, 0, len(e.Variables))
	for _, v := range e.Variables {
		names = append(names, v.Name)
		assert.False(t, v.Required)
	}
	assert.Equal(t, []string{"limit", "offset", "search", "category"}, names)

	e, ok = c.Lookup(CreateProduct)
	require.True(t, ok)
	assert.Equal(t, KindMutation, e.Kind)
	required := map[string]bool{}
	for _, v := range e.Variables {
		required[v.Name] = v.Required
	}
	assert.True(t, required["name"])
	assert.True(t, required["price"])
	assert.True(t, required["stock"])
	assert.False(t, required["brand"])
}

func TestCatalog_LookupIsCaseSensitive(t *testing.T) {
	c := MustDefaultCatalog()
	_, ok := c.Lookup("getproducts")
	assert.False(t, ok)
}

func TestCatalog_Descriptor(t *testing.T) {
	c := MustDefaultCatalog()

	d, err := c.Descriptor(DeleteBarcode, map[string]any{"id": "bc-1"})
	require.NoError(t, err)
	assert.Equal(t, KindMutation, d.Kind())

	_, err = c.Descriptor("Nope", nil)
	assert.Equal(t, KindUnknownOperation, KindOf(err))
}

func TestNewCatalog_RejectsMismatches(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"wrong name", Entry{Name: "A", Kind: KindQuery, Field: "storeProfile", Document: `query B { storeProfile { id } }`}},
		{"wrong kind", Entry{Name: "A", Kind: KindMutation, Field: "storeProfile", Document: `query A { storeProfile { id } }`}},
		{"wrong field", Entry{Name: "A", Kind: KindQuery, Field: "products", Document: `query A { storeProfile { id } }`}},
		{"invalid field", Entry{Name: "A", Kind: KindQuery, Field: "widgets", Document: `query A { widgets { id } }`}},
		{"two operations", Entry{Name: "A", Kind: KindQuery, Field: "storeProfile", Document: `query A { storeProfile { id } } query C { storeProfile { id } }`}},
		{"empty name", Entry{Kind: KindQuery, Document: `query { storeProfile { id } }`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(SchemaSDL, []Entry{tt.entry})
			assert.Error(t, err)
		})
	}
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	e := Entry{Name: "A", Kind: KindQuery, Field: "storeProfile", Document: `query A { storeProfile { id } }`}
	_, err := NewCatalog(SchemaSDL, []Entry{e, e})
	assert.ErrorContains(t, err, "registered twice")
}

func TestNewCatalog_BadSchema(t *testing.T) {
	_, err := NewCatalog("type {", nil)
	assert.Error(t, err)
}

func TestCatalog_Parse(t *testing.T) {
	c := MustDefaultCatalog()

	doc, err := c.Parse(`query X { dashboardStats { totalSales } }`)
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	k, ok := KindOfOperation(doc.Operations[0].Operation)
	assert.True(t, ok)
	assert.Equal(t, KindQuery, k)

	_, err = c.Parse(`query X { nope }`)
	assert.Error(t, err)
}
