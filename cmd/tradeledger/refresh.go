package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force-refresh the catalog and price list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, os.DevNull)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.start(ctx); err != nil {
				return err
			}
			if err := a.orchestrator.RefreshCatalog(ctx); err != nil {
				return fmt.Errorf("catalog refresh failed: %w", err)
			}
			if err := a.orchestrator.RefreshPriceList(ctx, true); err != nil {
				return fmt.Errorf("price list refresh failed: %w", err)
			}
			slog.Info("Catalog and price list refreshed")
			return nil
		},
	}
}
