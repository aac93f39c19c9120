package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tradesCmd = &cobra.Command{
	Use:   "trades [run-id]",
	Short: "Print the stored trades of a run",
	Long:  "Read a run persisted to Postgres back as result rows (requires output.postgres.dsn)",
	Args:  cobra.ExactArgs(1),
	RunE:  showTrades,
}

func init() {
	rootCmd.AddCommand(tradesCmd)
}

func showTrades(cmd *cobra.Command, args []string) error {
	a, log, err := bootstrap(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	rows, total, err := a.StoredTrades(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printTrades(w, rows)
	fmt.Fprintf(w, "\nTrades: %d  Total R: %.2f\n", len(rows), total)
	return nil
}
