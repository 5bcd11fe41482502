package operation

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// SchemaSDL is the POS GraphQL schema the catalog documents are validated
// against.
//
//go:embed schema.graphql
var SchemaSDL string

// Entry describes one canonical operation.
type Entry struct {
	// Name is the canonical operation name and the only routing key.
	Name string
	// Kind is query or mutation.
	Kind Kind
	// Field is the top-level result field (e.g. "products").
	Field string
	// Collection is the mock collection the operation reads or writes, if any.
	Collection string
	// Document is the GraphQL document sent by the live transport.
	Document string
	// Variables lists the variables the document declares, in order.
	Variables []Variable
}

// Variable is a declared operation variable.
type Variable struct {
	Name     string
	Type     string
	Required bool
}

// Catalog is an immutable registry of canonical operations.
type Catalog struct {
	schema  *ast.Schema
	entries map[string]Entry
	names   []string
}

// NewCatalog parses sdl and validates every entry's document against it.
// Each document must hold exactly one operation whose name, kind, and
// top-level field match the entry.
func NewCatalog(sdl string, entries []Entry) (*Catalog, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL schema: %w", err)
	}

	c := &Catalog{
		schema:  schema,
		entries: make(map[string]Entry, len(entries)),
	}

	var errs []error
	for _, e := range entries {
		if _, dup := c.entries[e.Name]; dup {
			errs = append(errs, fmt.Errorf("operation %q registered twice", e.Name))
			continue
		}
		vars, err := c.check(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("operation %q: %w", e.Name, err))
			continue
		}
		e.Document = strings.TrimSpace(e.Document)
		e.Variables = vars
		c.entries[e.Name] = e
		c.names = append(c.names, e.Name)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.Strings(c.names)
	return c, nil
}

func (c *Catalog) check(e Entry) ([]Variable, error) {
	if e.Name == "" {
		return nil, errors.New("name is required")
	}
	doc, err := c.Parse(e.Document)
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("document must contain exactly one operation, found %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if op.Name != e.Name {
		return nil, fmt.Errorf("document operation is named %q", op.Name)
	}
	if kind, ok := kindOf(op.Operation); !ok || kind != e.Kind {
		return nil, fmt.Errorf("document is a %s, catalog says %s", op.Operation, e.Kind)
	}
	if len(op.SelectionSet) != 1 {
		return nil, errors.New("document must select exactly one top-level field")
	}
	field, ok := op.SelectionSet[0].(*ast.Field)
	if !ok || field.Alias != e.Field {
		return nil, fmt.Errorf("document selects %v, want field %q", op.SelectionSet[0], e.Field)
	}

	vars := make([]Variable, 0, len(op.VariableDefinitions))
	for _, v := range op.VariableDefinitions {
		vars = append(vars, Variable{
			Name:     v.Variable,
			Type:     v.Type.String(),
			Required: v.Type.NonNull && v.DefaultValue == nil,
		})
	}
	return vars, nil
}

// Parse parses and validates a GraphQL document against the catalog schema.
func (c *Catalog) Parse(document string) (*ast.QueryDocument, error) {
	doc, errs := gqlparser.LoadQuery(c.schema, document)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid document: %w", errs)
	}
	return doc, nil
}

// Lookup returns the entry for a canonical name. Names are case-sensitive.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Names returns all operation names in sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Entries returns all entries sorted by name.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.entries[n])
	}
	return out
}

// Schema returns the parsed schema.
func (c *Catalog) Schema() *ast.Schema {
	return c.schema
}

// Descriptor builds a Descriptor for a catalog entry, taking the kind from
// the catalog.
func (c *Catalog) Descriptor(name string, vars map[string]any) (Descriptor, error) {
	e, ok := c.Lookup(name)
	if !ok {
		return Descriptor{}, UnknownOperation(name)
	}
	return New(name, e.Kind, vars), nil
}

func kindOf(op ast.Operation) (Kind, bool) {
	switch op {
	case ast.Query:
		return KindQuery, true
	case ast.Mutation:
		return KindMutation, true
	default:
		return 0, false
	}
}

// KindOfOperation maps a parsed GraphQL operation type to a Kind.
func KindOfOperation(op ast.Operation) (Kind, bool) {
	return kindOf(op)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return NewCatalog(SchemaSDL, builtinEntries)
})

// DefaultCatalog returns the built-in POS catalog.
func DefaultCatalog() (*Catalog, error) {
	return defaultCatalog()
}

// MustDefaultCatalog returns the built-in catalog or panics. The built-in
// documents are covered by tests, so a panic here is a programming error.
func MustDefaultCatalog() *Catalog {
	c, err := defaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}
