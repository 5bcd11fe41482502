package config

import (
	"strconv"
	"time"
)

// field binds a dotted config key to its environment variable and to
// string conversions, so every layer (file, env, flag) sets values the
// same way.
type field struct {
	key  string
	env  string
	get  func(c *Config) string
	set  func(c *Config, v string) error
	zero func(c *Config) bool
}

func stringField(key, env string, ptr func(c *Config) *string) field {
	return field{
		key:  key,
		env:  env,
		get:  func(c *Config) string { return *ptr(c) },
		set:  func(c *Config, v string) error { *ptr(c) = v; return nil },
		zero: func(c *Config) bool { return *ptr(c) == "" },
	}
}

func boolField(key, env string, ptr func(c *Config) *bool) field {
	return field{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := parseBool(v)
			if err != nil {
				return err
			}
			*ptr(c) = b
			return nil
		},
		zero: func(c *Config) bool { return !*ptr(c) },
	}
}

func intField(key, env string, ptr func(c *Config) *int) field {
	return field{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*ptr(c) = n
			return nil
		},
		zero: func(c *Config) bool { return *ptr(c) == 0 },
	}
}

func floatField(key, env string, ptr func(c *Config) *float64) field {
	return field{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.FormatFloat(*ptr(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*ptr(c) = f
			return nil
		},
		zero: func(c *Config) bool { return *ptr(c) == 0 },
	}
}

func durationField(key, env string, ptr func(c *Config) *time.Duration) field {
	return field{
		key: key,
		env: env,
		get: func(c *Config) string { return ptr(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*ptr(c) = d
			return nil
		},
		zero: func(c *Config) bool { return *ptr(c) == 0 },
	}
}

var fields = []field{
	stringField("endpoint", EnvEndpoint, func(c *Config) *string { return &c.Endpoint }),
	boolField("useMock", EnvUseMock, func(c *Config) *bool { return &c.UseMock }),
	durationField("timeout", EnvTimeout, func(c *Config) *time.Duration { return &c.Timeout }),
	intField("retryAttempts", EnvRetryAttempts, func(c *Config) *int { return &c.RetryAttempts }),
	stringField("logLevel", EnvLogLevel, func(c *Config) *string { return &c.LogLevel }),
	stringField("logFormat", EnvLogFormat, func(c *Config) *string { return &c.LogFormat }),
	stringField("logFile", EnvLogFile, func(c *Config) *string { return &c.LogFile }),
	stringField("otlpEndpoint", EnvOTLPEndpoint, func(c *Config) *string { return &c.OTLPEndpoint }),
	floatField("rateLimit", EnvRateLimit, func(c *Config) *float64 { return &c.RateLimit }),

	stringField("session.backend", EnvSessionBackend, func(c *Config) *string { return &c.Session.Backend }),
	stringField("session.path", EnvSessionPath, func(c *Config) *string { return &c.Session.Path }),
	stringField("session.redisUrl", EnvRedisURL, func(c *Config) *string { return &c.Session.RedisURL }),

	stringField("mock.latency", EnvMockLatency, func(c *Config) *string { return &c.Mock.Latency }),
	durationField("mock.fixedLatency", EnvMockFixedLatency, func(c *Config) *time.Duration { return &c.Mock.FixedLatency }),
	floatField("mock.failureRate", EnvMockFailureRate, func(c *Config) *float64 { return &c.Mock.FailureRate }),
	stringField("mock.lowStockRule", EnvMockLowStockRule, func(c *Config) *string { return &c.Mock.LowStockRule }),
	stringField("mock.seedFile", EnvMockSeedFile, func(c *Config) *string { return &c.Mock.SeedFile }),

	stringField("server.addr", EnvServerAddr, func(c *Config) *string { return &c.Server.Addr }),
	stringField("server.jwtSecret", EnvJWTSecret, func(c *Config) *string { return &c.Server.JWTSecret }),
	boolField("server.issueTokens", EnvIssueTokens, func(c *Config) *bool { return &c.Server.IssueTokens }),
	floatField("server.rateLimit", EnvServerRateLimit, func(c *Config) *float64 { return &c.Server.RateLimit }),
	intField("server.rateBurst", EnvServerRateBurst, func(c *Config) *int { return &c.Server.RateBurst }),
}

func fieldByKey(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}
