// Package mode decides whether the client graph is built on the mock
// engine or the live transport.
package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/getmockd/posgraph/pkg/logging"
	"github.com/getmockd/posgraph/pkg/session"
)

// OverrideKey is the KV key holding the persisted override.
const OverrideKey = "posgraph.useMock"

// EnvVar is the environment default consulted when no override is stored.
const EnvVar = "POSGRAPH_USE_MOCK"

// Source names where a decision came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceEnv      Source = "env"
	SourceConfig   Source = "config"
)

// Selector resolves the backend mode. Changing the override never touches
// an already constructed router; callers re-initialize the client graph.
type Selector struct {
	kv       session.KV
	fallback bool
	getenv   func(string) string
	logger   *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the selector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) { s.logger = logging.Component(logger, "mode") }
}

// WithGetenv replaces os.Getenv.
func WithGetenv(getenv func(string) string) Option {
	return func(s *Selector) {
		if getenv != nil {
			s.getenv = getenv
		}
	}
}

// NewSelector creates a Selector. configDefault is used when neither an
// override nor the environment says anything.
func NewSelector(kv session.KV, configDefault bool, opts ...Option) *Selector {
	s := &Selector{
		kv:       kv,
		fallback: configDefault,
		getenv:   os.Getenv,
		logger:   logging.Component(nil, "mode"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsMockMode reports whether the mock backend should be used.
func (s *Selector) IsMockMode(ctx context.Context) bool {
	v, _ := s.Resolve(ctx)
	return v
}

// Resolve returns the decision and where it came from. Unreadable or
// malformed values fall through to the next source.
func (s *Selector) Resolve(ctx context.Context) (bool, Source) {
	if s.kv != nil {
		raw, err := s.kv.Get(ctx, OverrideKey)
		switch {
		case err == nil:
			if v, perr := parseBool(raw); perr == nil {
				return v, SourceOverride
			}
			s.logger.Warn("ignoring malformed mode override", "value", raw)
		case !errors.Is(err, session.ErrNotFound):
			s.logger.Warn("failed to read mode override", "error", err)
		}
	}
	if raw := s.getenv(EnvVar); raw != "" {
		if v, err := parseBool(raw); err == nil {
			return v, SourceEnv
		}
		s.logger.Warn("ignoring malformed environment value", "var", EnvVar, "value", raw)
	}
	return s.fallback, SourceConfig
}

// SetOverride persists useMock.
func (s *Selector) SetOverride(ctx context.Context, useMock bool) error {
	if s.kv == nil {
		return errors.New("no session store configured")
	}
	if err := s.kv.Set(ctx, OverrideKey, strconv.FormatBool(useMock)); err != nil {
		return fmt.Errorf("failed to persist mode override: %w", err)
	}
	s.logger.Info("mode override set", "useMock", useMock)
	return nil
}

// ClearOverride removes the persisted override.
func (s *Selector) ClearOverride(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Remove(ctx, OverrideKey); err != nil {
		return fmt.Errorf("failed to clear mode override: %w", err)
	}
	return nil
}

// Name renders a mode decision for display.
func Name(useMock bool) string {
	if useMock {
		return "mock"
	}
	return "live"
}

// Parse accepts "mock"/"live" as well as boolean spellings.
func Parse(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mock":
		return true, nil
	case "live":
		return false, nil
	}
	return parseBool(s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
