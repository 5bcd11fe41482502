package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
	"github.com/getmockd/posgraph/pkg/operation"
)

func newOpsCmd() *cobra.Command {
	var showDoc bool
	cmd := &cobra.Command{
		Use:   "ops [Name]",
		Short: "List the operation catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := getEnv(cmd)
			catalog, err := operation.DefaultCatalog()
			if err != nil {
				return err
			}
			entries := catalog.Entries()
			if len(args) == 1 {
				entry, ok := catalog.Lookup(args[0])
				if !ok {
					return operation.UnknownOperation(args[0])
				}
				entries = []operation.Entry{entry}
				showDoc = true
			}

			if e.json {
				type opJSON struct {
					Name       string   `json:"name"`
					Kind       string   `json:"kind"`
					Field      string   `json:"field"`
					Collection string   `json:"collection,omitempty"`
					Variables  []string `json:"variables,omitempty"`
					Document   string   `json:"document,omitempty"`
				}
				out := make([]opJSON, 0, len(entries))
				for _, en := range entries {
					op := opJSON{
						Name:       en.Name,
						Kind:       en.Kind.String(),
						Field:      en.Field,
						Collection: en.Collection,
						Variables:  variableList(en.Variables),
					}
					if showDoc {
						op.Document = en.Document
					}
					out = append(out, op)
				}
				return output.JSON(e.out, out)
			}

			if showDoc {
				for _, en := range entries {
					fmt.Fprintf(e.out, "# %s (%s) -> %s\n%s\n", en.Name, en.Kind, en.Field, strings.TrimSpace(en.Document))
				}
				return nil
			}
			tw := output.Table(e.out)
			fmt.Fprintln(tw, "NAME\tKIND\tFIELD\tVARIABLES")
			for _, en := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", en.Name, en.Kind, en.Field, strings.Join(variableList(en.Variables), ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&showDoc, "documents", false, "Print each operation's GraphQL document")
	return cmd
}

func variableList(vars []operation.Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, "$"+v.Name+": "+v.Type)
	}
	return out
}
