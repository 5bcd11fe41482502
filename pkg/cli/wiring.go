package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/getmockd/posgraph/pkg/client"
	"github.com/getmockd/posgraph/pkg/config"
	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/mockstore"
	"github.com/getmockd/posgraph/pkg/mode"
	"github.com/getmockd/posgraph/pkg/session"
	"github.com/getmockd/posgraph/pkg/telemetry"
	"github.com/getmockd/posgraph/pkg/transport"
)

// openKV opens the configured session store.
func openKV(ctx context.Context, cfg *config.Config) (session.KV, error) {
	switch cfg.Session.Backend {
	case config.SessionMemory:
		return session.NewMemoryKV(), nil
	case config.SessionRedis:
		return session.NewRedisKV(ctx, cfg.Session.RedisURL)
	default:
		path := cfg.Session.Path
		if path == "" {
			var err error
			if path, err = session.DefaultFilePath(); err != nil {
				return nil, err
			}
		}
		return session.NewFileKV(path)
	}
}

func closeKV(kv session.KV) error {
	if c, ok := kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// engineOptions maps mock settings onto engine options.
func engineOptions(cfg *config.Config, observer mockstore.Observer) ([]mockengine.Option, error) {
	opts := []mockengine.Option{
		mockengine.WithLatency(mockengine.ParseLatency(cfg.Mock.Latency, cfg.Mock.FixedLatency)),
	}
	if cfg.Mock.FailureRate > 0 {
		opts = append(opts, mockengine.WithFailureInjection(mockengine.FailureConfig{Rate: cfg.Mock.FailureRate}))
	}
	if cfg.Mock.LowStockRule != "" {
		opts = append(opts, mockengine.WithLowStockRule(cfg.Mock.LowStockRule))
	}
	if cfg.Mock.SeedFile != "" {
		seed, err := mockengine.LoadSeedFile(cfg.Mock.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
		opts = append(opts, mockengine.WithSeed(seed))
	}
	if observer != nil {
		opts = append(opts, mockengine.WithObserver(observer))
	}
	return opts, nil
}

// stack is the session and client graph a command runs against.
type stack struct {
	kv       session.KV
	session  *session.Manager
	selector *mode.Selector
	client   *client.Client
	shutdown telemetry.Shutdown
}

func (s *stack) Close(ctx context.Context) error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if s.shutdown != nil {
		errs = append(errs, s.shutdown(ctx))
	}
	errs = append(errs, closeKV(s.kv))
	return errors.Join(errs...)
}

// openSession opens the store, session manager and selector without
// building a backend.
func (e *env) openSession(ctx context.Context) (*stack, error) {
	kv, err := openKV(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	return &stack{
		kv:       kv,
		session:  session.NewManager(kv, session.WithLogger(e.logger)),
		selector: mode.NewSelector(kv, e.cfg.UseMock, mode.WithLogger(e.logger), mode.WithGetenv(e.getenv)),
	}, nil
}

// openClient builds the full client graph.
func (e *env) openClient(ctx context.Context) (*stack, error) {
	st, err := e.openSession(ctx)
	if err != nil {
		return nil, err
	}
	tp, shutdown, err := telemetry.Setup(ctx, e.cfg.OTLPEndpoint, telemetry.DefaultServiceName)
	if err != nil {
		_ = closeKV(st.kv)
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	st.shutdown = shutdown

	engineOpts, err := engineOptions(e.cfg, nil)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	st.client, err = client.New(ctx,
		client.WithLogger(e.logger),
		client.WithTracerProvider(tp),
		client.WithSession(st.session),
		client.WithSelector(st.selector),
		client.WithEndpoint(e.cfg.Endpoint),
		client.WithEngineOptions(engineOpts...),
		client.WithTransportOptions(
			transport.WithTimeout(e.cfg.Timeout),
			transport.WithRetry(e.cfg.RetryAttempts),
			transport.WithRateLimit(e.cfg.RateLimit, 1),
		),
		client.WithOnUnauthorized(func() {
			fmt.Fprintln(e.errOut, "session expired or rejected; run 'posgraph login' again")
		}),
	)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	return st, nil
}
