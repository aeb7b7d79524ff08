package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Migrations run while the application is built
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("migrations are up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
