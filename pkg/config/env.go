package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvEndpoint         = "POSGRAPH_ENDPOINT"
	EnvUseMock          = "POSGRAPH_USE_MOCK"
	EnvTimeout          = "POSGRAPH_TIMEOUT"
	EnvRetryAttempts    = "POSGRAPH_RETRY_ATTEMPTS"
	EnvLogLevel         = "POSGRAPH_LOG_LEVEL"
	EnvLogFormat        = "POSGRAPH_LOG_FORMAT"
	EnvLogFile          = "POSGRAPH_LOG_FILE"
	EnvOTLPEndpoint     = "POSGRAPH_OTLP_ENDPOINT"
	EnvSessionBackend   = "POSGRAPH_SESSION_BACKEND"
	EnvSessionPath      = "POSGRAPH_SESSION_PATH"
	EnvRedisURL         = "POSGRAPH_REDIS_URL"
	EnvMockLatency      = "POSGRAPH_MOCK_LATENCY"
	EnvMockFixedLatency = "POSGRAPH_MOCK_FIXED_LATENCY"
	EnvMockFailureRate  = "POSGRAPH_MOCK_FAILURE_RATE"
	EnvMockLowStockRule = "POSGRAPH_MOCK_LOW_STOCK_RULE"
	EnvMockSeedFile     = "POSGRAPH_MOCK_SEED_FILE"
	EnvServerAddr       = "POSGRAPH_SERVER_ADDR"
	EnvJWTSecret        = "POSGRAPH_JWT_SECRET"
	EnvIssueTokens      = "POSGRAPH_ISSUE_TOKENS"
	EnvRateLimit        = "POSGRAPH_RATE_LIMIT"
	EnvServerRateLimit  = "POSGRAPH_SERVER_RATE_LIMIT"
	EnvServerRateBurst  = "POSGRAPH_SERVER_RATE_BURST"
)

// DotEnvFile is the optional file of KEY=value pairs read from the
// working directory.
const DotEnvFile = ".env"

// ReadDotEnv reads the .env file in dir. A missing file yields an empty map.
func ReadDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, DotEnvFile)
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vals, nil
}

// LoadEnvConfig applies POSGRAPH_* values onto cfg. Process environment
// values win over the .env map.
func LoadEnvConfig(cfg *Config, getenv func(string) string, dotenv map[string]string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	var errs []error
	for _, f := range fields {
		source := SourceEnv
		v := strings.TrimSpace(getenv(f.env))
		if v == "" {
			v = strings.TrimSpace(dotenv[f.env])
			source = SourceDotEnv
		}
		if v == "" {
			continue
		}
		if err := cfg.Set(f.key, v, source); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.env, err))
		}
	}
	return errors.Join(errs...)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
