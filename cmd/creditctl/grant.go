package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"wedding-ai-backend/internal/models"
)

var (
	grantReason string
	grantEmail  string
)

var grantCmd = &cobra.Command{
	Use:   "grant <user-id> <amount>",
	Short: "Add credits to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if grantEmail != "" {
			if err := a.Ledger.EnsureUser(cmd.Context(), args[0], grantEmail); err != nil {
				return err
			}
		}

		balance, err := a.Ledger.Grant(cmd.Context(), args[0], amount, models.TransactionTypeGrant, grantReason)
		if err != nil {
			return err
		}
		fmt.Printf("granted %d credits to %s, balance is now %d\n", amount, args[0], balance)
		return nil
	},
}

func parseAmount(s string) (int, error) {
	amount, err := strconv.Atoi(s)
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("amount must be a positive integer, got %q", s)
	}
	return amount, nil
}

func init() {
	grantCmd.Flags().StringVar(&grantReason, "reason", "Manual grant", "reason recorded in the transaction log")
	grantCmd.Flags().StringVar(&grantEmail, "create-with-email", "", "create the user first if it does not exist")
	rootCmd.AddCommand(grantCmd)
}
