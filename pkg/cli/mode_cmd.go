package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
	"github.com/getmockd/posgraph/pkg/mode"
)

func newModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or persist the mock/live backend choice",
		Long: `Show or persist the mock/live backend choice.

The override is stored in the session store and read when a client is
built; running clients pick it up only after a reset.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the effective backend and where the decision came from",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSession(cmd, func(ctx context.Context, e *env, st *stack) error {
					useMock, source := st.selector.Resolve(ctx)
					if e.json {
						return output.JSON(e.out, map[string]any{
							"mode":    mode.Name(useMock),
							"useMock": useMock,
							"source":  string(source),
						})
					}
					fmt.Fprintf(e.out, "%s (%s)\n", mode.Name(useMock), source)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:       "set <mock|live>",
			Short:     "Persist a backend override",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"mock", "live"},
			RunE: func(cmd *cobra.Command, args []string) error {
				useMock, err := mode.Parse(args[0])
				if err != nil {
					return err
				}
				return withSession(cmd, func(ctx context.Context, e *env, st *stack) error {
					if err := st.selector.SetOverride(ctx, useMock); err != nil {
						return err
					}
					fmt.Fprintf(e.out, "mode set to %s\n", mode.Name(useMock))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the persisted override",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSession(cmd, func(ctx context.Context, e *env, st *stack) error {
					if err := st.selector.ClearOverride(ctx); err != nil {
						return err
					}
					useMock, source := st.selector.Resolve(ctx)
					fmt.Fprintf(e.out, "override cleared; mode is %s (%s)\n", mode.Name(useMock), source)
					return nil
				})
			},
		},
	)
	return cmd
}

// withSession runs fn with the session store open.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, e *env, st *stack) error) error {
	e := getEnv(cmd)
	ctx := cmd.Context()
	st, err := e.openSession(ctx)
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))
	return fn(ctx, e, st)
}
