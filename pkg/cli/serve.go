package cli

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/getmockd/posgraph/pkg/mockengine"
	"github.com/getmockd/posgraph/pkg/mockstore"
	"github.com/getmockd/posgraph/pkg/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the mock engine as a GraphQL endpoint",
		Long: `Serve the mock engine as a GraphQL endpoint.

The server answers the same documents the live transport sends, so a
client in live mode can point its endpoint at it. Set --jwt-secret to
require bearer tokens and --issue-tokens to mint them at POST /auth/token.`,
		Example: `  posgraph serve --addr 127.0.0.1:4000 --latency none
  posgraph serve --jwt-secret dev --issue-tokens`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := getEnv(cmd)
			metrics := mockstore.NewMetricsObserver()
			opts, err := engineOptions(e.cfg, metrics)
			if err != nil {
				return err
			}
			engine, err := mockengine.New(append(opts, mockengine.WithLogger(e.logger))...)
			if err != nil {
				return err
			}
			srv, err := server.New(server.Config{
				Engine:      engine,
				Addr:        e.cfg.Server.Addr,
				Logger:      e.logger,
				JWTSecret:   e.cfg.Server.JWTSecret,
				IssueTokens: e.cfg.Server.IssueTokens,
				Metrics:     metrics,
				RateLimit:   e.cfg.Server.RateLimit,
				RateBurst:   e.cfg.Server.RateBurst,
			})
			if err != nil {
				return err
			}
			defer srv.Close()
			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr(), err)
			}
			fmt.Fprintf(e.out, "mock GraphQL endpoint: http://%s/graphql\n", ln.Addr())
			return srv.ServeListener(cmd.Context(), ln)
		},
	}
}
