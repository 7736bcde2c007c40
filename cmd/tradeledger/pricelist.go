package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odinsson/tradeledger/internal/model"
)

func pricelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricelist",
		Short: "Show your configured buy prices",
		Long: `Show the price list used to price ledger lines.

The list is cached for five minutes; --refresh bypasses the cache.`,
		RunE: runPricelist,
	}
	cmd.Flags().Bool("refresh", false, "bypass the cache and refetch")
	return cmd
}

func runPricelist(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	refresh, _ := cmd.Flags().GetBool("refresh")

	a, err := buildApp(ctx, os.DevNull)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(ctx); err != nil {
		return err
	}
	if refresh {
		if err := a.orchestrator.RefreshPriceList(ctx, true); err != nil {
			return err
		}
	}

	entries := a.orchestrator.PriceList()
	if len(entries) == 0 {
		fmt.Println("(price list empty)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tBUY\tBULK @ QTY\tMARKET")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, money(e.BuyPrice), bulkCell(e), money(e.MarketValue))
	}
	return w.Flush()
}

func bulkCell(e model.PriceListEntry) string {
	if e.BulkThreshold <= 0 || e.BulkBuyPrice <= 0 {
		return "—"
	}
	return fmt.Sprintf("%s @ %.0f+", money(e.BulkBuyPrice), e.BulkThreshold)
}
