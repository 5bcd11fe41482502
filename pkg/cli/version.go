package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := getEnv(cmd)
			if e.json {
				return output.JSON(e.out, map[string]string{
					"version":   Version,
					"commit":    Commit,
					"buildDate": BuildDate,
					"go":        runtime.Version(),
				})
			}
			fmt.Fprintf(e.out, "posgraph %s (commit %s, built %s, %s)\n", Version, Commit, BuildDate, runtime.Version())
			return nil
		},
	}
}
