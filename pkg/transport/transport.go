// Package transport executes operations against a live GraphQL endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/ratelimit"
	"github.com/getmockd/posgraph/pkg/session"
)

// Name is the backend name reported by Transport.Name.
const Name = "live"

const (
	defaultTimeout      = 30 * time.Second
	defaultInitialDelay = 200 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	maxResponseBytes    = 10 << 20
)

// Request is the GraphQL-over-HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is the GraphQL-over-HTTP response body.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors gqlerror.List   `json:"errors,omitempty"`
}

// Transport sends catalog documents to a GraphQL endpoint.
type Transport struct {
	endpoint       string
	client         *http.Client
	timeout        time.Duration
	session        *session.Manager
	maxAttempts    int
	initialDelay   time.Duration
	logger         *slog.Logger
	onUnauthorized func()
	catalog        *operation.Catalog
	limiter        *ratelimit.Bucket
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithTimeout bounds each attempt. Zero disables the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// WithSession attaches the session whose token authorizes requests.
func WithSession(m *session.Manager) Option {
	return func(t *Transport) { t.session = m }
}

// WithRetry sets the maximum number of attempts for network failures.
// Values below 1 mean a single attempt.
func WithRetry(maxAttempts int) Option {
	return func(t *Transport) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		t.maxAttempts = maxAttempts
	}
}

// WithRetryDelay sets the initial backoff interval.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.initialDelay = d
		}
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logging.Component(logger, "transport") }
}

// WithOnUnauthorized registers the re-authentication callback.
func WithOnUnauthorized(fn func()) Option {
	return func(t *Transport) { t.onUnauthorized = fn }
}

// WithRateLimit paces attempts to rps requests per second with the given
// burst. Retries count against the limit. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *Transport) {
		t.limiter = nil
		if rps > 0 {
			t.limiter = ratelimit.NewBucket(rps, burst)
		}
	}
}

// WithCatalog replaces the default operation catalog.
func WithCatalog(c *operation.Catalog) Option {
	return func(t *Transport) {
		if c != nil {
			t.catalog = c
		}
	}
}

// New creates a Transport for endpoint.
func New(endpoint string, opts ...Option) (*Transport, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	t := &Transport{
		endpoint:     endpoint,
		client:       &http.Client{},
		timeout:      defaultTimeout,
		maxAttempts:  1,
		initialDelay: defaultInitialDelay,
		logger:       logging.Component(nil, "transport"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.catalog == nil {
		c, err := operation.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		t.catalog = c
	}
	return t, nil
}

// Name returns "live".
func (t *Transport) Name() string { return Name }

// Endpoint returns the GraphQL endpoint URL.
func (t *Transport) Endpoint() string { return t.endpoint }

// Supports reports whether the catalog knows name.
func (t *Transport) Supports(name string) bool {
	_, ok := t.catalog.Lookup(name)
	return ok
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// Execute sends desc and decodes the response. Unknown names fail before
// any network traffic.
func (t *Transport) Execute(ctx context.Context, desc operation.Descriptor) operation.Result {
	if err := desc.Validate(); err != nil {
		return operation.Failure(operation.Validation("", err.Error()))
	}
	entry, ok := t.catalog.Lookup(desc.Name())
	if !ok || entry.Kind != desc.Kind() {
		return operation.Failure(operation.UnknownOperation(desc.Name()))
	}

	token, err := t.token(ctx)
	if err != nil {
		return operation.FailureFrom(err)
	}
	if token != "" && t.session.Expired(token) {
		t.unauthorized(ctx, token)
		return operation.Failure(operation.Unauthorized("session expired"))
	}

	vars, err := values.Normalize(desc.Variables())
	if err != nil {
		return operation.Failure(operation.Validation("", err.Error()))
	}
	body, err := json.Marshal(Request{Query: entry.Document, OperationName: entry.Name, Variables: vars})
	if err != nil {
		return operation.Failure(operation.Unknown(fmt.Sprintf("failed to encode request: %v", err)))
	}

	var resp *Response
	attempt := 0
	send := func() error {
		attempt++
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(operation.FromError(err))
			}
		}
		r, opErr := t.send(ctx, body, token)
		if opErr == nil {
			resp = r
			return nil
		}
		if opErr.Kind == operation.KindNetwork && ctx.Err() == nil {
			return opErr
		}
		return backoff.Permanent(opErr)
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Debug("retrying operation",
			"operation", desc.Name(), "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(send, t.backoff(ctx), notify); err != nil {
		opErr := operation.FromError(err)
		if opErr.Kind == operation.KindUnauthorized {
			t.unauthorized(ctx, token)
		}
		return operation.Failure(opErr)
	}

	result, err := decode(resp)
	if err != nil {
		return operation.Failure(operation.Unknown(err.Error()))
	}
	if result.HasKind(operation.KindUnauthorized) {
		t.unauthorized(ctx, token)
	}
	return result
}

func (t *Transport) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialDelay
	b.MaxInterval = defaultMaxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxAttempts-1)), ctx)
}

func (t *Transport) token(ctx context.Context) (string, error) {
	if t.session == nil {
		return "", nil
	}
	return t.session.Token(ctx)
}

// unauthorized clears the session for token. With a token the callback
// fires only for the call that actually cleared it; without one there is
// nothing to clear and every failure signals re-authentication.
func (t *Transport) unauthorized(ctx context.Context, token string) {
	t.logger.Warn("request unauthorized", "endpoint", t.endpoint)
	if t.session != nil && token != "" {
		cleared, err := t.session.Invalidate(ctx, token)
		if err != nil {
			t.logger.Error("failed to clear session", "error", err)
		}
		if !cleared {
			return
		}
	}
	if t.onUnauthorized != nil {
		t.onUnauthorized()
	}
}

func (t *Transport) send(ctx context.Context, body []byte, token string) (*Response, *operation.Error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, operation.Unknown(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, operation.Network(fmt.Sprintf("failed to reach %s: %v", t.endpoint, unwrapURLError(err)))
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, operation.Network(fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, operation.Unauthorized(fmt.Sprintf("server rejected session (status %d)", httpResp.StatusCode))
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, operation.Network(statusMessage(httpResp.StatusCode, data))
	case httpResp.StatusCode >= 500:
		return nil, operation.Network(fmt.Sprintf("server error (status %d)", httpResp.StatusCode))
	case httpResp.StatusCode >= 400:
		return nil, operation.Unknown(statusMessage(httpResp.StatusCode, data))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, operation.Unknown(fmt.Sprintf("invalid GraphQL response: %v", err))
	}
	return &resp, nil
}

func statusMessage(status int, body []byte) string {
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil && len(resp.Errors) > 0 {
		return fmt.Sprintf("unexpected status %d: %s", status, resp.Errors[0].Message)
	}
	return fmt.Sprintf("unexpected status %d", status)
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// decode turns a GraphQL response into a Result. Data and errors may
// coexist.
func decode(resp *Response) (operation.Result, error) {
	var result operation.Result
	if len(resp.Data) > 0 && !bytes.Equal(resp.Data, []byte("null")) {
		if err := json.Unmarshal(resp.Data, &result.Data); err != nil {
			return operation.Result{}, fmt.Errorf("invalid data in response: %w", err)
		}
	}
	for _, gqlErr := range resp.Errors {
		if gqlErr == nil {
			continue
		}
		result.Errors = append(result.Errors, *FromGQLError(gqlErr))
	}
	if result.Data == nil && len(result.Errors) == 0 {
		result.Data = map[string]any{}
	}
	return result, nil
}

// FromGQLError maps a GraphQL error to an operation.Error using its
// extensions.code.
func FromGQLError(e *gqlerror.Error) *operation.Error {
	code, _ := e.Extensions["code"].(string)
	out := &operation.Error{
		Message:    e.Message,
		Kind:       operation.KindFromCode(code),
		Path:       pathOf(e.Path),
		Extensions: e.Extensions,
	}
	if out.Message == "" {
		out.Message = "unknown GraphQL error"
	}
	return out
}

// ToGQLError is the inverse of FromGQLError.
func ToGQLError(e *operation.Error) *gqlerror.Error {
	ext := make(map[string]any, len(e.Extensions)+1)
	for k, v := range e.Extensions {
		ext[k] = v
	}
	ext["code"] = e.Kind.Code()

	out := &gqlerror.Error{Message: e.Message, Extensions: ext}
	for _, p := range e.Path {
		switch v := p.(type) {
		case string:
			out.Path = append(out.Path, ast.PathName(v))
		case int:
			out.Path = append(out.Path, ast.PathIndex(v))
		case float64:
			out.Path = append(out.Path, ast.PathIndex(int(v)))
		}
	}
	return out
}

func pathOf(p ast.Path) []any {
	if len(p) == 0 {
		return nil
	}
	out := make([]any, 0, len(p))
	for _, el := range p {
		switch v := el.(type) {
		case ast.PathName:
			out = append(out, string(v))
		case ast.PathIndex:
			out = append(out, int(v))
		}
	}
	return out
}
