package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/cli/internal/output"
	"github.com/getmockd/posgraph/pkg/operation"
)

type dashboardStats struct {
	TotalSales     int     `json:"totalSales"`
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalProducts  int     `json:"totalProducts"`
	TotalCustomers int     `json:"totalCustomers"`
	LowStockCount  int     `json:"lowStockCount"`
	TodaySales     int     `json:"todaySales"`
	TodayRevenue   float64 `json:"todayRevenue"`
}

func newDashboardCmd() *cobra.Command {
	var (
		locale string
		symbol string
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the store dashboard with low-stock items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag, err := language.Parse(locale)
			if err != nil {
				return fmt.Errorf("invalid --locale: %w", err)
			}
			e := getEnv(cmd)
			ctx := cmd.Context()
			st, err := e.openClient(ctx)
			if err != nil {
				return err
			}
			defer st.Close(context.WithoutCancel(ctx))

			res := st.client.Query(ctx, operation.GetDashboardStats, nil)
			if err := resultError(e, res); err != nil {
				return err
			}
			low := st.client.Query(ctx, operation.GetLowStockItems, nil)
			if err := resultError(e, low); err != nil {
				return err
			}
			if e.json {
				return output.JSON(e.out, map[string]any{
					"dashboardStats": res.Data["dashboardStats"],
					"lowStockItems":  low.Data["lowStockItems"],
				})
			}

			var stats dashboardStats
			if err := res.Decode("dashboardStats", &stats); err != nil {
				return err
			}
			var items []map[string]any
			if err := low.Decode("lowStockItems", &items); err != nil {
				return err
			}

			p := output.NewPrinter(tag, symbol)
			fmt.Fprintf(e.out, "backend: %s\n\n", st.client.Backend())
			tw := output.Table(e.out)
			fmt.Fprintf(tw, "Revenue\t%s\t(today %s)\n", p.Money(stats.TotalRevenue), p.Money(stats.TodayRevenue))
			fmt.Fprintf(tw, "Sales\t%s\t(today %s)\n", p.Count(int64(stats.TotalSales)), p.Count(int64(stats.TodaySales)))
			fmt.Fprintf(tw, "Products\t%s\t\n", p.Count(int64(stats.TotalProducts)))
			fmt.Fprintf(tw, "Customers\t%s\t\n", p.Count(int64(stats.TotalCustomers)))
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(items) > 0 {
				output.Warn(e.out, "%d product(s) low on stock", len(items))
				tw = output.Table(e.out)
				for _, it := range items {
					fmt.Fprintf(tw, "  %s\t%s\t\n", values.String(it["name"]), p.Count(int64(values.IntOr(it["stock"], 0))))
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&locale, "locale", "en-IN", "Locale for number formatting (BCP 47)")
	cmd.Flags().StringVar(&symbol, "currency", "₹", "Currency symbol")
	return cmd
}
