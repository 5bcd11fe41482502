package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	assert.True(t, cfg.UseMock)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, 1, cfg.RetryAttempts)
	assert.Equal(t, SessionFile, cfg.Session.Backend)
	assert.Equal(t, "default", cfg.Mock.Latency)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	for _, key := range Keys() {
		assert.Equal(t, SourceDefault, cfg.Source(key), key)
	}
	require.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("test.yaml", []byte(`
endpoint: https://pos.example.com/graphql
useMock: false
timeout: 5s
session:
  backend: redis
  redisUrl: redis://localhost:6379/2
mock:
  failureRate: 0.25
  seedFile: ~
`))
	require.NoError(t, err)
	assert.Equal(t, "https://pos.example.com/graphql", cfg.Endpoint)
	assert.False(t, cfg.UseMock)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, SessionRedis, cfg.Session.Backend)
	assert.InDelta(t, 0.25, cfg.Mock.FailureRate, 1e-9)
	assert.True(t, cfg.SetFields["useMock"])
	assert.True(t, cfg.SetFields["session.redisUrl"])
	assert.False(t, cfg.SetFields["mock.seedFile"])
	assert.False(t, cfg.SetFields["logLevel"])
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		line int
		msg  string
	}{
		{name: "unknown key", data: "endpoint: x\nbogus: 1\n", line: 2, msg: `unknown key "bogus"`},
		{name: "unknown nested key", data: "session:\n  flavor: x\n", line: 2, msg: `unknown key "session.flavor"`},
		{name: "bad duration", data: "timeout: soon\n", line: 1, msg: "invalid timeout"},
		{name: "bad bool", data: "useMock: maybe\n", line: 1, msg: "invalid useMock"},
		{name: "sequence value", data: "endpoint:\n  - a\n", line: 2, msg: "must be a scalar"},
		{name: "not a mapping", data: "- a\n", line: 1, msg: "must be a mapping"},
		{name: "syntax", data: "endpoint: [\n", msg: "test.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig("test.yaml", []byte(tt.data))
			require.Error(t, err)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "test.yaml", cerr.Path)
			if tt.line > 0 {
				assert.Equal(t, tt.line, cerr.Line)
			}
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMerge_ExplicitFalseOverrides(t *testing.T) {
	cfg := NewDefault()
	file, err := ParseConfig("local.yaml", []byte("useMock: false\n"))
	require.NoError(t, err)

	require.NoError(t, cfg.Merge(file, SourceLocal))
	assert.False(t, cfg.UseMock)
	assert.Equal(t, SourceLocal, cfg.Source("useMock"))
	assert.Equal(t, SourceDefault, cfg.Source("timeout"))
}

func TestMerge_WithoutSetFieldsUsesNonZero(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Merge(&Config{Endpoint: "http://x", RetryAttempts: 3}, SourceFlag))
	assert.Equal(t, "http://x", cfg.Endpoint)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.True(t, cfg.UseMock, "zero bool does not override")
	assert.Equal(t, SourceFlag, cfg.Source("endpoint"))
}

func TestLoadEnvConfig(t *testing.T) {
	cfg := NewDefault()
	err := LoadEnvConfig(cfg, envMap(map[string]string{
		EnvEndpoint:      "http://env",
		EnvRetryAttempts: "4",
	}), map[string]string{
		EnvEndpoint: "http://dotenv",
		EnvLogLevel: "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.Endpoint)
	assert.Equal(t, SourceEnv, cfg.Source("endpoint"))
	assert.Equal(t, 4, cfg.RetryAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceDotEnv, cfg.Source("logLevel"))
}

func TestLoadEnvConfig_Invalid(t *testing.T) {
	err := LoadEnvConfig(NewDefault(), envMap(map[string]string{
		EnvTimeout:         "fast",
		EnvMockFailureRate: "high",
	}), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvTimeout)
	assert.Contains(t, err.Error(), EnvMockFailureRate)
}

func TestLoader_Precedence(t *testing.T) {
	work := t.TempDir()
	global := t.TempDir()

	writeFile(t, filepath.Join(global, GlobalConfigDir, "config.yaml"), `
endpoint: http://global
timeout: 7s
logLevel: warn
retryAttempts: 2
`)
	writeFile(t, filepath.Join(work, ".posgraph.yaml"), `
endpoint: http://local
timeout: 9s
`)
	writeFile(t, filepath.Join(work, DotEnvFile), "POSGRAPH_TIMEOUT=11s\nPOSGRAPH_LOG_FORMAT=json\n")

	cfg, err := Loader{
		WorkDir:   work,
		GlobalDir: global,
		Getenv:    envMap(map[string]string{EnvTimeout: "13s"}),
		Flags:     map[string]string{"endpoint": "http://flag"},
	}.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://flag", cfg.Endpoint)
	assert.Equal(t, SourceFlag, cfg.Source("endpoint"))
	assert.Equal(t, 13*time.Second, cfg.Timeout)
	assert.Equal(t, SourceEnv, cfg.Source("timeout"))
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, SourceDotEnv, cfg.Source("logFormat"))
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, SourceGlobal, cfg.Source("logLevel"))
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.Equal(t, SourceDefault, cfg.Source("session.backend"))
}

func TestLoader_NoFiles(t *testing.T) {
	cfg, err := Loader{WorkDir: t.TempDir(), GlobalDir: t.TempDir(), Getenv: envMap(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, NewDefault().Timeout, cfg.Timeout)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("bad local file", func(t *testing.T) {
		work := t.TempDir()
		writeFile(t, filepath.Join(work, ".posgraph.yml"), "nope: 1\n")
		_, err := Loader{WorkDir: work, GlobalDir: t.TempDir(), Getenv: envMap(nil)}.Load()
		var cerr *ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, filepath.Join(work, ".posgraph.yml"), cerr.Path)
	})

	t.Run("unknown flag key", func(t *testing.T) {
		_, err := Loader{WorkDir: t.TempDir(), GlobalDir: t.TempDir(), Getenv: envMap(nil),
			Flags: map[string]string{"colour": "blue"}}.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown config key "colour"`)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := Loader{WorkDir: t.TempDir(), GlobalDir: t.TempDir(),
			Getenv: envMap(map[string]string{EnvSessionBackend: "redis"})}.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redisUrl is required")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"bad session backend", func(c *Config) { c.Session.Backend = "disk" }, "session.backend"},
		{"bad latency", func(c *Config) { c.Mock.Latency = "slow" }, "mock.latency"},
		{"fixed without duration", func(c *Config) { c.Mock.Latency = "fixed" }, "mock.fixedLatency"},
		{"failure rate", func(c *Config) { c.Mock.FailureRate = 1.5 }, "failureRate"},
		{"retries", func(c *Config) { c.RetryAttempts = 0 }, "retryAttempts"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "logLevel"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "logFormat"},
		{"server rate", func(c *Config) { c.Server.RateLimit = -1 }, "rate limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Set("server.rateBurst", "8", SourceEnv))
	assert.Equal(t, 8, cfg.Server.RateBurst)
	assert.Equal(t, SourceEnv, cfg.Source("server.rateBurst"))
	require.NoError(t, cfg.Set("mock.fixedLatency", "250ms", SourceFlag))
	v, err := cfg.Get("mock.fixedLatency")
	require.NoError(t, err)
	assert.Equal(t, "250ms", v)

	_, err = cfg.Get("nope")
	require.Error(t, err)
	require.Error(t, cfg.Set("retryAttempts", "many", SourceFlag))
	assert.Equal(t, SourceDefault, cfg.Source("retryAttempts"))
}
