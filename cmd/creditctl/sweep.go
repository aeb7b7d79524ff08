package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepThreshold time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Finalize stale generation jobs and refund unused credits",
	Long: `Runs one pass of the stale job sweeper: every job still PENDING or
PROCESSING after the threshold is resolved to COMPLETED, PARTIAL or FAILED
and its unused reservation is refunded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.Sweeper
		if sweepThreshold > 0 {
			s = s.WithThreshold(sweepThreshold)
		}

		result, err := s.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("processed=%d refunded=%d skipped=%d\n", result.Processed, result.Refunded, result.Skipped)
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepThreshold, "threshold", 0, "override STALE_JOB_THRESHOLD")
	rootCmd.AddCommand(sweepCmd)
}
