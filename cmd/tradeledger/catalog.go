package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the cached item catalog",
	}
	cmd.AddCommand(catalogRefreshCmd())
	return cmd
}

func catalogRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refetch the item catalog, bypassing the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, os.DevNull)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.orchestrator.RefreshCatalog(ctx); err != nil {
				return fmt.Errorf("catalog refresh failed: %w", err)
			}
			slog.Info("Catalog refreshed")
			return nil
		},
	}
}
