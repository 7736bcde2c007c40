package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odinsson/tradeledger/internal/pricing"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <trade-log>",
		Short: "Watch a trade log and price it live",
		Long: `Watch a trade log file and maintain a live priced ledger.

Each line of the file is one trade log entry ("2x Xanax added to the
trade"); appended lines fold into the ledger incrementally, and a
truncated or replaced file triggers a full rebuild.

Examples:
  tradeledger watch trade.log
  tradeledger watch trade.log --profit-mode bazaar --fee-cut`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().String("profit-mode", "", "profit base: market or bazaar")
	cmd.Flags().Bool("fee-cut", false, "apply the 5% market fee to the profit base")
	_ = viper.BindPFlag("profit_mode", cmd.Flags().Lookup("profit-mode"))
	_ = viper.BindPFlag("fee_cut", cmd.Flags().Lookup("fee-cut"))

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.close()

	if viper.GetBool("fee_cut") {
		a.orchestrator.SetFeeCut(true)
	}

	// Coalesce change notifications into redraws, at most a few per second.
	redraw := make(chan struct{}, 1)
	a.orchestrator.OnChange(func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})

	if err := a.start(ctx); err != nil {
		return err
	}

	throttle := time.NewTicker(250 * time.Millisecond)
	defer throttle.Stop()

	var pending bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-redraw:
			pending = true
		case <-throttle.C:
			if !pending {
				continue
			}
			pending = false
			render(a.orchestrator)
		}
	}
}

func render(o *pricing.Orchestrator) {
	quotes := o.LedgerView()

	fmt.Println()
	if cp := o.Counterparty(); cp != nil {
		fmt.Printf("Trading with %s [%d]\n", cp.Name, cp.ID)
	}
	if len(quotes) == 0 {
		fmt.Println("(ledger empty)")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tQTY\tBUY\tTOTAL\tMARKET\tBAZAAR\tPROFIT")
	for _, q := range quotes {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			q.Name,
			q.Quantity,
			money(float64(q.BuyPrice)),
			money(float64(q.BuyTotal)),
			money(q.MarketPrice),
			money(q.BazaarLowest),
			profitCell(q),
		)
	}
	buyTotal, profitTotal, profitKnown := pricing.Totals(quotes)
	total := "—"
	if profitKnown {
		total = money(profitTotal)
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%s\t\t\t%s\n", money(float64(buyTotal)), total)
	_ = w.Flush()

	if s := o.Status(); s != "" {
		fmt.Println(s)
	}
}

func profitCell(q pricing.Quote) string {
	if !q.HasProfit {
		return "—"
	}
	return money(q.Profit)
}

// money renders a figure with thousands separators; zero is unresolved.
func money(v float64) string {
	if v == 0 {
		return "—"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String()
	if neg {
		out = "-" + out
	}
	return out
}
