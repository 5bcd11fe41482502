package operation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/ohler55/ojg/jp"
)

// Result is the outcome of executing a Descriptor. On success Data is set and
// Errors is empty. Under the partial-failure policy both may be present.
type Result struct {
	Data   map[string]any `json:"data"`
	Errors []Error        `json:"errors,omitempty"`
}

// Success builds a successful Result.
func Success(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Data: data}
}

// Failure builds a Result carrying only errors.
func Failure(errs ...*Error) Result {
	r := Result{}
	for _, e := range errs {
		if e != nil {
			r.Errors = append(r.Errors, *e)
		}
	}
	return r
}

// FailureFrom converts err (see FromError) into a failed Result.
func FailureFrom(err error, classifiers ...Classifier) Result {
	return Failure(FromError(err, classifiers...))
}

// OK reports whether the result is a pure success.
func (r Result) OK() bool {
	return r.Data != nil && len(r.Errors) == 0
}

// Partial reports whether data and errors are both present.
func (r Result) Partial() bool {
	return r.Data != nil && len(r.Errors) > 0
}

// FirstError returns the first error, or nil.
func (r Result) FirstError() *Error {
	if len(r.Errors) == 0 {
		return nil
	}
	e := r.Errors[0]
	return &e
}

// Err joins all errors into one Go error, or returns nil.
func (r Result) Err() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		return r.FirstError()
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		e := r.Errors[i]
		errs[i] = &e
	}
	return errors.Join(errs...)
}

// HasKind reports whether any error has the given kind.
func (r Result) HasKind(kind ErrorKind) bool {
	for _, e := range r.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Field returns a deep copy of a top-level data field.
func (r Result) Field(name string) (any, bool) {
	v, ok := r.Data[name]
	if !ok {
		return nil, false
	}
	return values.Clone(v), true
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := Result{Data: values.CloneMap(r.Data)}
	if r.Errors != nil {
		out.Errors = make([]Error, len(r.Errors))
		for i, e := range r.Errors {
			e.Path = append([]any(nil), e.Path...)
			e.Extensions = values.CloneMap(e.Extensions)
			out.Errors[i] = e
		}
	}
	return out
}

// Lookup evaluates a JSONPath expression (e.g. "$.products[*].id") against Data.
func (r Result) Lookup(path string) ([]any, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if r.Data == nil {
		return nil, nil
	}
	return expr.Get(r.Data), nil
}

// Decode unmarshals a top-level data field into v.
func (r Result) Decode(field string, v any) error {
	raw, ok := r.Data[field]
	if !ok {
		return fmt.Errorf("result has no field %q", field)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", field, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode field %q: %w", field, err)
	}
	return nil
}
