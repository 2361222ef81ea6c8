package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache status",
	Long: `Display the current state of the local cache.

Shows:
  - Cache file location and size
  - Cached row counts per domain
  - Last successful refresh per domain
  - The signed-in identity, if any`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		info, err := os.Stat(cfg.CachePath)
		if os.IsNotExist(err) {
			fmt.Printf("\nCache not initialized at %s\n", cfg.CachePath)
			fmt.Printf("   Run 'docsync refresh' or 'docsync daemon' to create it\n\n")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking cache: %v\n", err)
			os.Exit(1)
		}

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

		docCount, _ := db.CountDocuments(ctx)
		notifCount, _ := db.CountNotifications(ctx)
		entryCount, _ := db.CountLeaderboardEntries(ctx)

		size := info.Size()
		sizeStr := fmt.Sprintf("%d bytes", size)
		if size > 1024*1024 {
			sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		} else if size > 1024 {
			sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
		}

		fmt.Printf("\nDocsync Cache Status\n\n")
		fmt.Printf("Location: %s\n", cfg.CachePath)
		fmt.Printf("Size: %s\n", sizeStr)
		fmt.Printf("Documents: %d\n", docCount)
		fmt.Printf("Notifications: %d\n", notifCount)
		fmt.Printf("Leaderboard entries: %d\n", entryCount)

		for _, domain := range []record.Domain{record.DomainDocuments, record.DomainLeaderboard} {
			last, err := db.LastRefresh(ctx, domain, "")
			if err != nil {
				continue
			}
			if last.IsZero() {
				fmt.Printf("Last %s refresh: never\n", domain)
			} else {
				fmt.Printf("Last %s refresh: %s\n", domain, last.Format("2006-01-02 15:04:05"))
			}
		}

		if identity := readSessionFile(cfg.SessionFile); identity != nil {
			fmt.Printf("Signed in: %s", identity.ID)
			if identity.DisplayName != "" {
				fmt.Printf(" (%s)", identity.DisplayName)
			}
			fmt.Println()
		} else {
			fmt.Printf("Signed in: no\n")
		}
		fmt.Println()
	},
}

// readSessionFile returns the identity from the session file, or nil
// when signed out or the file is unreadable.
func readSessionFile(path string) *record.Identity {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var identity record.Identity
	if err := json.Unmarshal(data, &identity); err != nil || identity.Validate() != nil {
		return nil
	}
	return &identity
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
