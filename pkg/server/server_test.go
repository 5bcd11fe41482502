package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/mockstore"
	"github.com/getmockd/posgraph/pkg/metrics"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/ratelimit"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newEngine(t *testing.T) *mockengine.Engine {
	t.Helper()
	e, err := mockengine.New(
		mockengine.WithLatency(mockengine.NoLatency),
		mockengine.WithClock(clock),
	)
	require.NoError(t, err)
	return e
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.Engine == nil {
		cfg.Engine = newEngine(t)
	}
	if cfg.Now == nil {
		cfg.Now = clock
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func post(t *testing.T, url string, body any, header http.Header) (int, gqlResponse) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func document(t *testing.T, name string) string {
	t.Helper()
	e, ok := operation.MustDefaultCatalog().Lookup(name)
	require.True(t, ok)
	return e.Document
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Engine: newEngine(t), IssueTokens: true})
	assert.Error(t, err)

	s, err := New(Config{Engine: newEngine(t)})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, s.Addr())
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["backend"])
	assert.Equal(t, float64(len(operation.MustDefaultCatalog().Names())), body["operations"])
}

func TestGraphQL_Query(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	status, out := post(t, ts.URL+"/graphql", map[string]any{
		"query":         document(t, operation.GetProducts),
		"operationName": operation.GetProducts,
		"variables":     map[string]any{"limit": 3},
	}, nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, out.Errors)
	assert.Len(t, out.Data["products"], 3)
}

func TestGraphQL_ApplicationGraphQLBody(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/graphql", strings.NewReader(document(t, operation.GetStoreProfile)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/graphql")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Errors)
	assert.NotNil(t, out.Data["storeProfile"])
}

func TestGraphQL_DomainErrorsCarryCodes(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tests := []struct {
		name string
		vars map[string]any
		code string
	}{
		{name: operation.DeleteProduct, vars: map[string]any{"id": "does-not-exist"}, code: "NOT_FOUND"},
		{name: operation.CreateProduct, vars: map[string]any{"price": 1, "stock": 1}, code: "BAD_USER_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := post(t, ts.URL+"/graphql", map[string]any{
				"query": document(t, tt.name), "operationName": tt.name, "variables": tt.vars,
			}, nil)
			assert.Equal(t, http.StatusOK, status)
			assert.Nil(t, out.Data)
			require.Len(t, out.Errors, 1)
			assert.Equal(t, tt.code, out.Errors[0].Extensions["code"])
		})
	}
}

func TestGraphQL_RequestErrors(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantCode: "BAD_USER_INPUT"},
		{name: "bad json", body: "{", wantStatus: http.StatusBadRequest, wantCode: "BAD_USER_INPUT"},
		{name: "schema violation", body: map[string]any{"query": "query X { nope }"}, wantStatus: http.StatusOK, wantCode: codeValidationFailed},
		{name: "operation not in document", body: map[string]any{
			"query": document(t, operation.GetSales), "operationName": operation.GetProducts,
		}, wantStatus: http.StatusOK, wantCode: "BAD_USER_INPUT"},
		{name: "anonymous", body: map[string]any{"query": "{ storeProfile { id } }"}, wantStatus: http.StatusOK, wantCode: "BAD_USER_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := post(t, ts.URL+"/graphql", tt.body, nil)
			assert.Equal(t, tt.wantStatus, status)
			require.NotEmpty(t, out.Errors)
			assert.Equal(t, tt.wantCode, out.Errors[0].Extensions["code"])
		})
	}
}

func TestGraphQL_UnknownOperationName(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	_, out := post(t, ts.URL+"/graphql", map[string]any{
		"query": "query GetEverything { storeProfile { id } }",
	}, nil)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "UNKNOWN_OPERATION", out.Errors[0].Extensions["code"])
	assert.Contains(t, out.Errors[0].Message, "GetEverything")
}

func TestGraphQL_GetRejectsMutations(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	u := ts.URL + "/graphql?query=" + url.QueryEscape(
		"mutation DeleteProduct($id: ID!) { deleteProduct(id: $id) { id } }")
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStateAndReset(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	ctx := context.Background()

	res := s.engine.Mutate(ctx, operation.DeleteProduct, map[string]any{"id": "prod-tea"})
	require.True(t, res.OK(), "%v", res.Errors)

	resp, err := http.Post(ts.URL+"/state/reset?collection=products", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := s.engine.Query(ctx, operation.GetProduct, map[string]any{"id": "prod-tea"})
	assert.True(t, got.OK())

	resp, err = http.Post(ts.URL+"/state/reset?collection=nope", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var state struct {
		Overview struct {
			Collections int `json:"collections"`
		} `json:"overview"`
		Collections []map[string]any `json:"collections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, 5, state.Overview.Collections)
	assert.Len(t, state.Collections, 5)
}

func TestStateMetrics(t *testing.T) {
	metrics := mockstore.NewMetricsObserver()
	engine, err := mockengine.New(
		mockengine.WithLatency(mockengine.NoLatency),
		mockengine.WithClock(clock),
		mockengine.WithObserver(metrics),
	)
	require.NoError(t, err)
	_, ts := newTestServer(t, Config{Engine: engine, Metrics: metrics})

	res := engine.Mutate(context.Background(), operation.DeleteProduct, map[string]any{"id": "prod-tea"})
	require.True(t, res.OK(), "%v", res.Errors)

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var state struct {
		Metrics *mockstore.MetricsSnapshot `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.NotNil(t, state.Metrics)
	assert.Equal(t, int64(1), state.Metrics.DeleteCount)
}

func TestAuth(t *testing.T) {
	s, ts := newTestServer(t, Config{JWTSecret: "s3cret", IssueTokens: true})
	body := map[string]any{"query": document(t, operation.GetStoreProfile)}

	status, out := post(t, ts.URL+"/graphql", body, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "UNAUTHENTICATED", out.Errors[0].Extensions["code"])

	status, _ = post(t, ts.URL+"/graphql", body, http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Mint through the HTTP endpoint.
	resp, err := http.Post(ts.URL+"/auth/token", "application/json", strings.NewReader(`{"subject":"cashier-1","ttl":"10m"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	var tok tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	assert.True(t, fixedNow.Add(10*time.Minute).Equal(tok.ExpiresAt))

	status, out = post(t, ts.URL+"/graphql", body, http.Header{"Authorization": {"Bearer " + tok.Token}})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, out.Errors)

	sub, err := s.ValidateToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "cashier-1", sub)

	expired, _, err := s.IssueToken("old", time.Nanosecond)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	_, err = s.ValidateToken(expired)
	assert.Error(t, err)
}

func TestIssueToken_BadRequests(t *testing.T) {
	_, ts := newTestServer(t, Config{JWTSecret: "s3cret", IssueTokens: true})
	for _, body := range []string{`{`, `{"subject":""}`, `{"subject":"a","ttl":"-1s"}`} {
		resp, err := http.Post(ts.URL+"/auth/token", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	_, ok := bearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc")
	tok, ok := bearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = bearerToken(r)
	assert.False(t, ok)
}

func TestServeListener_StopsOnCancel(t *testing.T) {
	s, err := New(Config{Engine: newEngine(t), Addr: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, ts := newTestServer(t, Config{})

	post(t, ts.URL+"/graphql", map[string]any{"query": document(t, operation.GetProducts)}, nil)
	post(t, ts.URL+"/graphql", map[string]any{
		"query":     document(t, operation.GetProduct),
		"variables": map[string]any{"id": "missing"},
	}, nil)

	ops := s.Metrics()
	assert.Equal(t, 1.0, ops.Total.Value(operation.GetProducts, "query", metrics.OutcomeOK))
	assert.Equal(t, 1.0, ops.Total.Value(operation.GetProduct, "query", "not_found"))
	assert.Equal(t, uint64(1), ops.Duration.Count(operation.GetProducts))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	body := buf.String()
	assert.Contains(t, body, "# TYPE posgraph_operations_total counter")
	assert.Contains(t, body, `posgraph_operations_total{operation="GetProducts",kind="query",outcome="ok"} 1`)
	assert.Contains(t, body, `posgraph_store_records{collection="products"}`)
	assert.Contains(t, body, `posgraph_http_requests_total{route="/graphql`)
	assert.Contains(t, body, `status="200"} 2`)
}

func TestRateLimit(t *testing.T) {
	s, ts := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2})
	query := map[string]any{"query": document(t, operation.GetProducts)}

	for i := 0; i < 2; i++ {
		status, out := post(t, ts.URL+"/graphql", query, nil)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, out.Errors)
	}

	status, out := post(t, ts.URL+"/graphql", query, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, ratelimit.CodeRateLimited, out.Errors[0].Extensions["code"])
	assert.Equal(t, 1.0, s.Metrics().RateLimited.Value())

	// Other routes are not limited.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	generated := resp.Header.Get(RequestIDHeader)
	assert.Regexp(t, `^[0-9a-f]{16}$`, generated)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "till-7-req-42")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "till-7-req-42", resp.Header.Get(RequestIDHeader))
}
