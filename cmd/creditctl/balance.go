package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var balanceHistory int

var balanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Show a user's stored balance and recent transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// The stored balance, regardless of unlimited credits mode
		balance, err := a.Store.Queries().GetBalance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("user %s: %d credits\n", args[0], balance)

		if balanceHistory <= 0 {
			return nil
		}
		txs, err := a.Ledger.History(cmd.Context(), args[0], balanceHistory, 0)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			fmt.Printf("  %s  %+5d  %-9s  %s\n", tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.Amount, tx.Type, tx.Reason)
		}
		return nil
	},
}

func init() {
	balanceCmd.Flags().IntVar(&balanceHistory, "history", 10, "number of recent transactions to show")
	rootCmd.AddCommand(balanceCmd)
}
