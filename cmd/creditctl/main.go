// Command creditctl runs credit and job maintenance against the configured
// database: stale job sweeps, manual grants, balance lookups and migrations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"wedding-ai-backend/internal/app"
	"wedding-ai-backend/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "creditctl",
	Short:         "Maintenance commands for AI credits and generation jobs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadApp builds the application from the environment.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg))
}
