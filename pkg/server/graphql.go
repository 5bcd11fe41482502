package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/transport"
)

const codeValidationFailed = "GRAPHQL_VALIDATION_FAILED"

// response is the GraphQL-over-HTTP response body. Data is null when the
// operation failed outright.
type response struct {
	Data   map[string]any `json:"data"`
	Errors gqlerror.List  `json:"errors,omitempty"`
}

// handleGraphQL validates the document against the schema, picks the
// operation named by operationName, and dispatches it to the engine.
// Nothing in the selection set is interpreted; the canonical name alone
// selects the handler.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, operation.Validation("", err.Error()))
		return
	}

	doc, gqlErrs := gqlparser.LoadQuery(s.catalog.Schema(), req.Query)
	if len(gqlErrs) > 0 {
		for _, e := range gqlErrs {
			if e.Extensions == nil {
				e.Extensions = map[string]any{}
			}
			e.Extensions["code"] = codeValidationFailed
		}
		writeJSON(w, http.StatusOK, response{Errors: gqlErrs})
		return
	}

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		writeJSON(w, http.StatusOK, response{Errors: gqlerror.List{transport.ToGQLError(operation.Validation("operationName", err.Error()))}})
		return
	}
	kind, ok := operation.KindOfOperation(op.Operation)
	if !ok {
		writeJSON(w, http.StatusOK, response{Errors: gqlerror.List{transport.ToGQLError(operation.UnknownOperation(op.Name))}})
		return
	}
	if r.Method == http.MethodGet && kind == operation.KindMutation {
		writeErrors(w, http.StatusMethodNotAllowed, operation.Validation("", "mutations require POST"))
		return
	}

	desc := operation.New(op.Name, kind, req.Variables)
	start := time.Now()
	res := s.engine.Execute(r.Context(), desc)
	s.ops.ObserveOperation(desc, res, time.Since(start))
	writeJSON(w, http.StatusOK, toResponse(res))
}

func toResponse(res operation.Result) response {
	out := response{Data: res.Data}
	for i := range res.Errors {
		out.Errors = append(out.Errors, transport.ToGQLError(&res.Errors[i]))
	}
	return out
}

func writeErrors(w http.ResponseWriter, status int, errs ...*operation.Error) {
	var list gqlerror.List
	for _, e := range errs {
		list = append(list, transport.ToGQLError(e))
	}
	writeJSON(w, status, response{Errors: list})
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		op := doc.Operations.ForName(name)
		if op == nil {
			return nil, errors.New("operation " + name + " is not defined in the document")
		}
		return op, nil
	}
	if len(doc.Operations) != 1 {
		return nil, errors.New("operationName is required when the document defines several operations")
	}
	op := doc.Operations[0]
	if op.Name == "" {
		return nil, errors.New("anonymous operations are not supported")
	}
	return op, nil
}

// parseRequest reads a request from the POST body (application/json or
// application/graphql) or from GET query parameters.
func parseRequest(r *http.Request) (*transport.Request, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := &transport.Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return nil, errors.New("invalid variables JSON")
			}
		}
		if strings.TrimSpace(req.Query) == "" {
			return nil, errors.New("query is required")
		}
		return req, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	defer func() { _ = r.Body.Close() }()
	if len(body) > MaxRequestBodySize {
		return nil, errors.New("request body too large")
	}
	if len(body) == 0 {
		return nil, errors.New("empty request body")
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/graphql") {
		return &transport.Request{Query: string(body), OperationName: r.URL.Query().Get("operationName")}, nil
	}

	var req transport.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.New("invalid JSON request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query is required")
	}
	return &req, nil
}
