package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
	"github.com/getmockd/posgraph/pkg/operation"
	"github.com/getmockd/posgraph/pkg/watch"
)

type operationOptions struct {
	kind     operation.Kind
	vars     string
	path     string
	watch    bool
	interval time.Duration
	count    int
}

func newQueryCmd() *cobra.Command {
	o := &operationOptions{kind: operation.KindQuery}
	cmd := &cobra.Command{
		Use:   "query <Name>",
		Short: "Run a named query",
		Example: `  posgraph query GetProducts --vars '{"limit": 5}'
  posgraph query GetDashboardStats --path '$.dashboardStats.totalRevenue'
  posgraph query GetLowStockItems --watch --interval 10s`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeOperations(operation.KindQuery),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.bind(cmd)
	cmd.Flags().BoolVarP(&o.watch, "watch", "w", false, "Keep the query open and print every emission")
	cmd.Flags().DurationVar(&o.interval, "interval", 0, "Refetch period while watching (0 = no refetch)")
	cmd.Flags().IntVar(&o.count, "count", 0, "Stop watching after this many results (0 = until interrupted)")
	return cmd
}

func newMutateCmd() *cobra.Command {
	o := &operationOptions{kind: operation.KindMutation}
	cmd := &cobra.Command{
		Use:   "mutate <Name>",
		Short: "Run a named mutation",
		Example: `  posgraph mutate CreateProduct --vars '{"input": {"name": "Ghee 1L", "price": 650, "stock": 12}}'
  posgraph mutate DeleteProduct --vars '{"id": "prod-tea"}'`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeOperations(operation.KindMutation),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.bind(cmd)
	return cmd
}

func (o *operationOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.vars, "vars", "", "Variables as a JSON object")
	cmd.Flags().StringVar(&o.path, "path", "", "JSONPath applied to the result data")
}

func completeOperations(kind operation.Kind) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, e := range operation.MustDefaultCatalog().Entries() {
			if e.Kind == kind {
				names = append(names, e.Name)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func parseVars(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(s), &vars); err != nil {
		return nil, fmt.Errorf("invalid --vars: %w", err)
	}
	return vars, nil
}

func (o *operationOptions) run(cmd *cobra.Command, name string) error {
	vars, err := parseVars(o.vars)
	if err != nil {
		return err
	}
	if o.path != "" {
		if _, err := (operation.Result{}).Lookup(o.path); err != nil {
			return err
		}
	}

	e := getEnv(cmd)
	ctx := cmd.Context()
	st, err := e.openClient(ctx)
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	if o.watch {
		return o.runWatch(ctx, e, st.client.Watch(name, vars))
	}

	desc := operation.New(name, o.kind, vars)
	res := st.client.Execute(ctx, desc)
	if err := o.print(e, res.Data); err != nil {
		return err
	}
	return resultError(e, res)
}

// print writes data, or the values selected by --path.
func (o *operationOptions) print(e *env, data map[string]any) error {
	if data == nil {
		return nil
	}
	if o.path == "" {
		return output.JSON(e.out, data)
	}
	matches, err := operation.Result{Data: data}.Lookup(o.path)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := output.JSON(e.out, m); err != nil {
			return err
		}
	}
	return nil
}

// resultError reports result errors on stderr and returns the first one.
func resultError(e *env, res operation.Result) error {
	if res.OK() {
		return nil
	}
	if e.json {
		_ = output.JSON(e.errOut, map[string]any{"errors": res.Errors})
	} else {
		for _, err := range res.Errors {
			fmt.Fprintf(e.errOut, "%s: %s\n", err.Kind, err.Message)
		}
	}
	return res.Err()
}

var errWatchDone = errors.New("watch finished")

func (o *operationOptions) runWatch(ctx context.Context, e *env, w *watch.Watcher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, 1)
	finish := func(err error) {
		select {
		case results <- err:
		default:
		}
	}
	seen := 0
	sub := w.Subscribe(watch.ObserverFunc(
		func(em watch.Emission) {
			if em.Loading {
				if em.Stale {
					fmt.Fprintln(e.errOut, "refreshing...")
				}
				return
			}
			if err := o.print(e, em.Data); err != nil {
				finish(err)
				return
			}
			seen++
			if o.count > 0 && seen >= o.count {
				finish(errWatchDone)
			}
		},
		func(err operation.Error) {
			fmt.Fprintf(e.errOut, "%s: %s\n", err.Kind, err.Message)
			seen++
			if o.count > 0 && seen >= o.count {
				finish(&err)
			}
		},
	))
	defer sub.Unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-results:
			return err
		case <-ctx.Done():
			return nil
		}
	})
	if o.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(o.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					w.Refetch()
				}
			}
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errWatchDone) {
		return err
	}
	return nil
}
