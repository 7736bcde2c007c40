package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <trade-log>",
		Short: "Submit a receipt for a finished trade",
		Long: `Reconcile the given trade log once and submit the resulting ledger as
a completed-trade receipt. The session's cached cart is cleared on
success.

Example:
  tradeledger complete trade.log`,
		Args: cobra.ExactArgs(1),
		RunE: runComplete,
	}
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(ctx); err != nil {
		return err
	}
	// Force a synchronous pass so the ledger reflects the file before the
	// receipt is built.
	a.orchestrator.Sync()

	url, err := a.orchestrator.CompleteSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete trade: %w", err)
	}
	if url != "" {
		fmt.Println("Receipt:", url)
	} else {
		fmt.Println("Trade saved.")
	}
	return nil
}
