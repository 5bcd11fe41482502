// Package cli provides the posgraph command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getmockd/posgraph/pkg/config"
	"github.com/getmockd/posgraph/pkg/logging"
)

// Version information (set at build time).
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// configFlags maps persistent flag names to config keys.
var configFlags = map[string]string{
	"endpoint":       "endpoint",
	"use-mock":       "useMock",
	"timeout":        "timeout",
	"retries":        "retryAttempts",
	"log-level":      "logLevel",
	"log-format":     "logFormat",
	"log-file":       "logFile",
	"otlp-endpoint":  "otlpEndpoint",
	"rate-limit":     "rateLimit",
	"session":        "session.backend",
	"session-path":   "session.path",
	"redis-url":      "session.redisUrl",
	"latency":        "mock.latency",
	"fixed-latency":  "mock.fixedLatency",
	"failure-rate":   "mock.failureRate",
	"low-stock-rule": "mock.lowStockRule",
	"seed-file":      "mock.seedFile",
	"addr":           "server.addr",
	"jwt-secret":     "server.jwtSecret",
	"issue-tokens":   "server.issueTokens",
	"server-rate":    "server.rateLimit",
	"server-burst":   "server.rateBurst",
}

// envKey stores the command environment in the command context.
type envKey struct{}

// env is what every command runs against.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
	json   bool
	getenv func(string) string
}

func getEnv(cmd *cobra.Command) *env {
	if e, ok := cmd.Context().Value(envKey{}).(*env); ok {
		return e
	}
	return &env{
		cfg:    config.NewDefault(),
		logger: logging.Nop(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		getenv: os.Getenv,
	}
}

// rootOptions are the non-config persistent flags.
type rootOptions struct {
	json      bool
	workDir   string
	globalDir string
	getenv    func(string) string
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Getenv)
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &rootOptions{getenv: getenv}
	root := &cobra.Command{
		Use:   "posgraph",
		Short: "POS data access over a mock or live GraphQL backend",
		Long: `posgraph runs point-of-sale queries and mutations against either an
in-process mock engine or a live GraphQL endpoint.

The backend is chosen by, in order: the persisted override ("posgraph mode
set"), POSGRAPH_USE_MOCK, and the useMock config value.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.BoolVar(&opts.json, "json", false, "Output results in JSON format")
	pf.StringVar(&opts.workDir, "workdir", "", "Directory holding .posgraph.yaml and .env (default: current directory)")
	pf.StringVar(&opts.globalDir, "config-dir", "", "Base directory for the global config (default: user config dir)")
	_ = pf.MarkHidden("config-dir")

	pf.String("endpoint", "", "Live GraphQL endpoint URL")
	pf.Bool("use-mock", true, "Default backend when no override or env is set")
	pf.Duration("timeout", config.DefaultTimeout, "Live request timeout per attempt")
	pf.Int("retries", config.DefaultRetryAttempts, "Live request attempts for network failures")
	pf.String("log-level", "info", "Log level (debug|info|warn|error)")
	pf.String("log-format", "text", "Log format (text|json)")
	pf.String("log-file", "", "Also append JSON logs to this file")
	pf.String("otlp-endpoint", "", "OTLP/gRPC collector for traces")
	pf.Float64("rate-limit", 0, "Live requests per second (0 = unlimited)")
	pf.String("session", config.SessionFile, "Session store (memory|file|redis)")
	pf.String("session-path", "", "Session file path for the file store")
	pf.String("redis-url", "", "Redis URL for the redis session store")
	pf.String("latency", "default", "Mock latency (default|none|fixed)")
	pf.Duration("fixed-latency", 0, "Mock latency when --latency=fixed")
	pf.Float64("failure-rate", 0, "Probability of injected mock failures (0..1)")
	pf.String("low-stock-rule", "", "expr rule deciding low stock")
	pf.String("seed-file", "", "YAML seed file for the mock store")
	pf.String("addr", config.DefaultServerAddr, "Mock server listen address")
	pf.String("jwt-secret", "", "HS256 secret enabling mock server auth")
	pf.Bool("issue-tokens", false, "Expose POST /auth/token on the mock server")
	pf.Float64("server-rate", 0, "Mock server requests per second per client (0 = unlimited)")
	pf.Int("server-burst", 0, "Mock server burst per client (default: twice --server-rate)")

	_ = root.RegisterFlagCompletionFunc("session", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.SessionMemory, config.SessionFile, config.SessionRedis}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newQueryCmd(),
		newMutateCmd(),
		newModeCmd(),
		newServeCmd(),
		newOpsCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newConfigCmd(),
		newStatsCmd(),
		newDashboardCmd(),
		newVersionCmd(),
	)
	return root
}

// load resolves configuration and stores the command environment.
func (o *rootOptions) load(cmd *cobra.Command) error {
	flags := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := configFlags[f.Name]; ok {
			flags[key] = f.Value.String()
		}
	})
	cfg, err := config.Loader{
		WorkDir:   o.workDir,
		GlobalDir: o.globalDir,
		Getenv:    o.getenv,
		Flags:     flags,
	}.Load()
	if err != nil {
		return err
	}

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	e := &env{
		cfg:    cfg,
		logger: logging.New(logCfg),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		json:   o.json,
		getenv: o.getenv,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, envKey{}, e))
	return nil
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
