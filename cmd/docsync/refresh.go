package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/store"
	"github.com/docshare/docsync/internal/syncer"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Pull fresh catalog and leaderboard snapshots now",
	Long: `Force a full refresh of the document catalog and leaderboard,
ignoring the TTLs. Remote failures are reported, not swallowed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[docsync] ")

		db, err := store.Open(cfg.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		ctx := context.Background()
		if err := db.InitSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}

		client, err := remote.NewClient(cfg.RemoteURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating remote client: %v\n", err)
			os.Exit(1)
		}

		start := time.Now()

		if err := syncer.NewCatalog(db, client, syncer.Options{Logger: logger}).Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error refreshing catalog: %v\n", err)
			os.Exit(1)
		}
		if err := syncer.NewLeaderboard(db, client, syncer.Options{Logger: logger}).Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error refreshing leaderboard: %v\n", err)
			os.Exit(1)
		}

		docCount, _ := db.CountDocuments(ctx)
		entryCount, _ := db.CountLeaderboardEntries(ctx)

		fmt.Printf("Refresh complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Documents:   %d\n", docCount)
		fmt.Printf("   Leaderboard: %d\n", entryCount)
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
