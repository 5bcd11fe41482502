package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/getmockd/posgraph/pkg/cli/internal/output"
	"github.com/getmockd/posgraph/pkg/mockstore"
	"github.com/getmockd/posgraph/pkg/operation"
)

// stateResponse mirrors GET /state on the mock server.
type stateResponse struct {
	Overview    mockstore.Overview         `json:"overview"`
	Collections []mockstore.Info           `json:"collections"`
	Metrics     *mockstore.MetricsSnapshot `json:"metrics,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store contents and operation counters of a running mock server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := getEnv(cmd)
			if url == "" {
				url = "http://" + e.cfg.Server.Addr
			}
			state, err := fetchState(cmd.Context(), strings.TrimRight(url, "/")+"/state")
			if err != nil {
				return err
			}
			if e.json {
				return output.JSON(e.out, state)
			}

			p := output.NewPrinter(language.English, "")
			tw := output.Table(e.out)
			fmt.Fprintln(tw, "COLLECTION\tRECORDS\tSEEDED")
			for _, c := range state.Collections {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Title(c.Name), p.Count(int64(c.Count)), p.Count(int64(c.SeedCount)))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if m := state.Metrics; m != nil {
				fmt.Fprintln(e.out)
				tw = output.Table(e.out)
				fmt.Fprintln(tw, "OPERATION\tCOUNT")
				for _, row := range []struct {
					name string
					n    int64
				}{
					{"create", m.CreateCount},
					{"read", m.ReadCount},
					{"list", m.ListCount},
					{"update", m.UpdateCount},
					{"delete", m.DeleteCount},
					{"error", m.ErrorCount},
					{"reset", m.ResetCount},
				} {
					fmt.Fprintf(tw, "%s\t%s\n", p.Title(row.name), p.Count(row.n))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if total := m.TotalOperations(); total > 0 {
					fmt.Fprintf(e.out, "\naverage store latency: %s\n", (m.TotalLatency / time.Duration(total)).String())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Mock server base URL (default: http://<server.addr>)")
	return cmd
}

func fetchState(ctx context.Context, url string) (*stateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, operation.FromError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	var state stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("invalid state response: %w", err)
	}
	return &state, nil
}
