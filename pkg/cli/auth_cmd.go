package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
)

func newLoginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token for the live backend",
		Long: `Store a session token for the live backend.

The token is read from --token, or from stdin when --token is "-".
JWTs are checked for expiry; opaque tokens are stored as given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = strings.TrimSpace(string(b))
			}
			if token == "" {
				return errors.New("a token is required (--token)")
			}
			return withSession(cmd, func(ctx context.Context, e *env, st *stack) error {
				info, err := st.session.Login(ctx, token)
				if err != nil {
					return err
				}
				if e.json {
					return output.JSON(e.out, info)
				}
				switch {
				case info.Opaque:
					fmt.Fprintln(e.out, "logged in (opaque token)")
				case info.ExpiresAt.IsZero():
					fmt.Fprintf(e.out, "logged in as %s\n", subjectOr(info.Subject))
				default:
					fmt.Fprintf(e.out, "logged in as %s until %s\n", subjectOr(info.Subject), info.ExpiresAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", `Session token ("-" reads stdin)`)
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, e *env, st *stack) error {
				if err := st.session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(e.out, "logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, e *env, st *stack) error {
				info, ok, err := st.session.Info(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("not logged in")
				}
				token, err := st.session.Token(ctx)
				if err != nil {
					return err
				}
				expired := st.session.Expired(token)
				if e.json {
					return output.JSON(e.out, map[string]any{"session": info, "expired": expired})
				}
				fmt.Fprintf(e.out, "subject: %s\n", subjectOr(info.Subject))
				fmt.Fprintf(e.out, "logged in: %s\n", info.LoggedInAt.Format(time.RFC3339))
				if !info.ExpiresAt.IsZero() {
					fmt.Fprintf(e.out, "expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
				}
				if expired {
					fmt.Fprintln(e.out, "status: expired")
				}
				return nil
			})
		},
	}
}

func subjectOr(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
