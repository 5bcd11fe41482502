package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
	"github.com/getmockd/posgraph/pkg/config"
)

// secretKeys are masked in config output.
var secretKeys = map[string]bool{"server.jwtSecret": true}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := getEnv(cmd)
			type entry struct {
				Key    string `json:"key"`
				Value  string `json:"value"`
				Source string `json:"source"`
			}
			entries := make([]entry, 0, len(config.Keys()))
			for _, key := range config.Keys() {
				v, err := e.cfg.Get(key)
				if err != nil {
					return err
				}
				if secretKeys[key] && v != "" {
					v = "********"
				}
				entries = append(entries, entry{Key: key, Value: v, Source: e.cfg.Source(key)})
			}
			if e.json {
				return output.JSON(e.out, entries)
			}
			tw := output.Table(e.out)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			for _, en := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", en.Key, en.Value, en.Source)
			}
			return tw.Flush()
		},
	}
}
