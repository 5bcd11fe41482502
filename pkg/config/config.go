// Package config loads posgraph configuration.
//
// Values come from several sources with the following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables (POSGRAPH_*), then a .env file in the working directory
//  3. Local config file (.posgraph.yaml in the working directory)
//  4. Global config file (<user config dir>/posgraph/config.yaml)
//  5. Default values (lowest priority)
//
// Every key has a dotted name (e.g. "session.backend") shared by YAML
// files, flags and Sources, and a POSGRAPH_* environment variable:
//
//	endpoint: https://pos.example.com/graphql
//	useMock: false
//	timeout: 10s
//	session:
//	  backend: redis
//	  redisUrl: redis://localhost:6379/0
//	mock:
//	  latency: fixed
//	  fixedLatency: 50ms
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmockd/posgraph/pkg/logging"
)

// Config is the complete posgraph configuration.
type Config struct {
	Endpoint      string        `yaml:"endpoint" json:"endpoint"`
	UseMock       bool          `yaml:"useMock" json:"useMock"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts int           `yaml:"retryAttempts" json:"retryAttempts"`
	LogLevel      string        `yaml:"logLevel" json:"logLevel"`
	LogFormat     string        `yaml:"logFormat" json:"logFormat"`
	LogFile       string        `yaml:"logFile,omitempty" json:"logFile,omitempty"`
	OTLPEndpoint  string        `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`

	// RateLimit paces live requests, in requests per second. Zero is unlimited.
	RateLimit float64 `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	Session SessionConfig `yaml:"session" json:"session"`
	Mock    MockConfig    `yaml:"mock" json:"mock"`
	Server  ServerConfig  `yaml:"server" json:"server"`

	// Sources tracks where each value came from.
	Sources map[string]string `yaml:"-" json:"-"`
	// SetFields records the keys explicitly present in a loaded file, so
	// an explicit false or zero can override a lower layer.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend  string `yaml:"backend" json:"backend"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	RedisURL string `yaml:"redisUrl,omitempty" json:"redisUrl,omitempty"`
}

// MockConfig configures the mock engine.
type MockConfig struct {
	Latency      string        `yaml:"latency" json:"latency"`
	FixedLatency time.Duration `yaml:"fixedLatency,omitempty" json:"fixedLatency,omitempty"`
	FailureRate  float64       `yaml:"failureRate,omitempty" json:"failureRate,omitempty"`
	LowStockRule string        `yaml:"lowStockRule,omitempty" json:"lowStockRule,omitempty"`
	SeedFile     string        `yaml:"seedFile,omitempty" json:"seedFile,omitempty"`
}

// ServerConfig configures the mock GraphQL HTTP server.
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	JWTSecret   string `yaml:"jwtSecret,omitempty" json:"-"`
	IssueTokens bool   `yaml:"issueTokens,omitempty" json:"issueTokens,omitempty"`

	// RateLimit caps /graphql requests per client IP per second.
	RateLimit float64 `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	RateBurst int     `yaml:"rateBurst,omitempty" json:"rateBurst,omitempty"`
}

// Config sources.
const (
	SourceDefault = "default"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceDotEnv  = "dotenv"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionFile   = "file"
	SessionRedis  = "redis"
)

// Defaults.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 1
	DefaultServerAddr    = "127.0.0.1:4000"
)

// NewDefault returns a Config holding default values.
func NewDefault() *Config {
	cfg := &Config{
		UseMock:       true,
		Timeout:       DefaultTimeout,
		RetryAttempts: DefaultRetryAttempts,
		LogLevel:      "info",
		LogFormat:     "text",
		Session:       SessionConfig{Backend: SessionFile},
		Mock:          MockConfig{Latency: "default"},
		Server:        ServerConfig{Addr: DefaultServerAddr},
		Sources:       make(map[string]string),
	}
	for _, f := range fields {
		cfg.Sources[f.key] = SourceDefault
	}
	return cfg
}

// Keys returns every configuration key in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Get renders the value of key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fieldByKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return f.get(c), nil
}

// Set parses value into key and records source.
func (c *Config) Set(key, value, source string) error {
	f, ok := fieldByKey(key)
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := f.set(c, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
	return nil
}

// Source returns where key was set.
func (c *Config) Source(key string) string {
	if s, ok := c.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// Merge applies the keys set in source onto c. A source without SetFields
// (built in code) contributes its non-zero values.
func (c *Config) Merge(source *Config, sourceType string) error {
	if source == nil {
		return nil
	}
	for _, f := range fields {
		if source.SetFields != nil {
			if !source.SetFields[f.key] {
				continue
			}
		} else if f.zero(source) {
			continue
		}
		if err := c.Set(f.key, f.get(source), sourceType); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Session.Backend {
	case SessionMemory, SessionFile:
	case SessionRedis:
		if c.Session.RedisURL == "" {
			errs = append(errs, errors.New("session.redisUrl is required for the redis session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend must be memory, file, or redis, got %q", c.Session.Backend))
	}
	switch c.Mock.Latency {
	case "default", "none":
	case "fixed":
		if c.Mock.FixedLatency <= 0 {
			errs = append(errs, errors.New("mock.fixedLatency must be positive when mock.latency is fixed"))
		}
	default:
		errs = append(errs, fmt.Errorf("mock.latency must be default, none, or fixed, got %q", c.Mock.Latency))
	}
	if c.Mock.FailureRate < 0 || c.Mock.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("mock.failureRate must be between 0 and 1, got %v", c.Mock.FailureRate))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("retryAttempts must be at least 1"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout cannot be negative"))
	}
	if c.RateLimit < 0 || c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("rate limits cannot be negative"))
	}
	if !validLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("logLevel must be debug, info, warn, or error, got %q", c.LogLevel))
	}
	if c.LogFormat != string(logging.FormatText) && c.LogFormat != string(logging.FormatJSON) {
		errs = append(errs, fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func validLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Logging returns the logging configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.Format = logging.ParseFormat(c.LogFormat)
	cfg.File = c.LogFile
	return cfg
}
