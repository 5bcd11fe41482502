package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/posgraph/pkg/logging"
)

// Keys owned by the Manager.
const (
	TokenKey = "posgraph.token"
	InfoKey  = "posgraph.session"
)

// Info describes the stored session. Subject and ExpiresAt are read from
// the token's claims when it is a JWT; opaque tokens leave them empty.
type Info struct {
	Subject    string    `json:"subject,omitempty"`
	IssuedAt   time.Time `json:"issuedAt,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	LoggedInAt time.Time `json:"loggedInAt"`
	Opaque     bool      `json:"opaque,omitempty"`
}

// Manager owns the session token. Invalidate clears it exactly once per
// token no matter how many concurrent failures report it.
type Manager struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
	leeway time.Duration

	mu        sync.Mutex
	listeners []func()
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logging.Component(logger, "session") }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLeeway treats tokens as expired this long before their exp claim.
func WithLeeway(d time.Duration) ManagerOption {
	return func(m *Manager) { m.leeway = d }
}

// NewManager creates a Manager on top of kv.
func NewManager(kv KV, opts ...ManagerOption) *Manager {
	m := &Manager{
		kv:     kv,
		logger: logging.Component(nil, "session"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// KV returns the underlying store.
func (m *Manager) KV() KV { return m.kv }

// OnInvalidate registers fn to run after the session is cleared by
// Invalidate.
func (m *Manager) OnInvalidate(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// ParseToken reads the claims of a JWT without verifying its signature.
// Signature verification is the server's job; the client only needs the
// subject and expiry. Non-JWT tokens yield an opaque Info.
func ParseToken(token string) Info {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Info{Opaque: true}
	}
	info := Info{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return info
}

// Login stores token and its parsed Info.
func (m *Manager) Login(ctx context.Context, token string) (Info, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Info{}, errors.New("token cannot be empty")
	}
	info := ParseToken(token)
	info.LoggedInAt = m.now().UTC()
	if m.expired(info) {
		return Info{}, fmt.Errorf("token expired at %s", info.ExpiresAt.Format(time.RFC3339))
	}

	data, err := json.Marshal(info)
	if err != nil {
		return Info{}, fmt.Errorf("failed to encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.kv.Set(ctx, TokenKey, token); err != nil {
		return Info{}, err
	}
	if err := m.kv.Set(ctx, InfoKey, string(data)); err != nil {
		return Info{}, err
	}
	m.logger.Debug("session stored", "subject", info.Subject, "opaque", info.Opaque)
	return info, nil
}

// Token returns the stored token, or "" when there is none.
func (m *Manager) Token(ctx context.Context) (string, error) {
	tok, err := m.kv.Get(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// Info returns the stored session info. ok is false without a session.
func (m *Manager) Info(ctx context.Context) (info Info, ok bool, err error) {
	raw, err := m.kv.Get(ctx, InfoKey)
	if errors.Is(err, ErrNotFound) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return Info{}, false, fmt.Errorf("invalid stored session: %w", err)
	}
	return info, true, nil
}

// Expired reports whether token carries an exp claim in the past.
func (m *Manager) Expired(token string) bool {
	return m.expired(ParseToken(token))
}

func (m *Manager) expired(info Info) bool {
	if info.Opaque || info.ExpiresAt.IsZero() {
		return false
	}
	return !m.now().Add(m.leeway).Before(info.ExpiresAt)
}

// Invalidate clears the session if token is still the stored one. It
// returns true only for the call that actually cleared it; repeated or
// concurrent calls for the same token are no-ops.
func (m *Manager) Invalidate(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	current, err := m.kv.Get(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) || (err == nil && current != token) {
		m.mu.Unlock()
		return false, nil
	}
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	if err := m.clear(ctx); err != nil {
		m.mu.Unlock()
		return false, err
	}
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	m.logger.Warn("session invalidated")
	for _, fn := range listeners {
		fn()
	}
	return true, nil
}

// Logout removes the session unconditionally.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clear(ctx)
}

func (m *Manager) clear(ctx context.Context) error {
	return errors.Join(m.kv.Remove(ctx, TokenKey), m.kv.Remove(ctx, InfoKey))
}
