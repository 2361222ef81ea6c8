package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/repair"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Backfill malformed leaderboard rows on the remote service",
	Long: `Scan the remote leaderboard for rows missing required fields and
backfill them with defaults in one batch.

The fixes are idempotent: if the batch lands partially, rerun the
command and the scan will find only what is still broken.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[docsync] ")

		client, err := remote.NewClient(cfg.RemoteURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating remote client: %v\n", err)
			os.Exit(1)
		}

		res, err := repair.New(client, logger).Run(context.Background())

		fmt.Printf("Repair pass\n")
		fmt.Printf("   Scanned:   %d\n", res.Scanned)
		fmt.Printf("   Malformed: %d\n", res.Malformed)
		fmt.Printf("   Repaired:  %d\n", res.Repaired)

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
}
