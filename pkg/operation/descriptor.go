package operation

import (
	"fmt"
	"strings"

	"github.com/getmockd/posgraph/internal/values"
)

// Kind distinguishes queries from mutations.
type Kind int

const (
	// KindQuery is a read-only operation.
	KindQuery Kind = iota
	// KindMutation changes backend state.
	KindMutation
)

// String returns the GraphQL keyword for the kind.
func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "query" or "mutation" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "query":
		return KindQuery, nil
	case "mutation":
		return KindMutation, nil
	default:
		return 0, fmt.Errorf("unknown operation kind %q (valid: query, mutation)", s)
	}
}

// Descriptor is a named, parameterized request. It is immutable: variables
// are copied on construction and on every read.
type Descriptor struct {
	name      string
	kind      Kind
	variables map[string]any
	selection []string
}

// New creates a Descriptor. selection is an optional hint listing the result
// fields the caller cares about; backends may ignore it.
func New(name string, kind Kind, vars map[string]any, selection ...string) Descriptor {
	return Descriptor{
		name:      name,
		kind:      kind,
		variables: values.CloneMap(vars),
		selection: append([]string(nil), selection...),
	}
}

// Query creates a query Descriptor.
func Query(name string, vars map[string]any) Descriptor {
	return New(name, KindQuery, vars)
}

// Mutation creates a mutation Descriptor.
func Mutation(name string, vars map[string]any) Descriptor {
	return New(name, KindMutation, vars)
}

// Name returns the operation name.
func (d Descriptor) Name() string { return d.name }

// Kind returns the operation kind.
func (d Descriptor) Kind() Kind { return d.kind }

// Variables returns a copy of the variables. Never nil.
func (d Descriptor) Variables() map[string]any {
	if d.variables == nil {
		return map[string]any{}
	}
	return values.CloneMap(d.variables)
}

// Variable returns a copy of a single variable.
func (d Descriptor) Variable(name string) (any, bool) {
	v, ok := d.variables[name]
	return values.Clone(v), ok
}

// Selection returns the selection hint.
func (d Descriptor) Selection() []string {
	return append([]string(nil), d.selection...)
}

// WithVariables returns a copy of d with vars replacing its variables.
func (d Descriptor) WithVariables(vars map[string]any) Descriptor {
	return New(d.name, d.kind, vars, d.selection...)
}

// Validate checks the structural invariants that hold regardless of backend.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.name) == "" {
		return Validation("name", "operation name is required")
	}
	if d.kind != KindQuery && d.kind != KindMutation {
		return Validation("kind", fmt.Sprintf("unsupported operation kind %s", d.kind))
	}
	return nil
}

// String renders the descriptor for logs, e.g. "mutation CreateProduct".
func (d Descriptor) String() string {
	return d.kind.String() + " " + d.name
}
