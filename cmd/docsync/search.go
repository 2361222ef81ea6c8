package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/store"
	"github.com/docshare/docsync/internal/syncer"
)

var searchType string

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the cached document catalog",
	Long: `Search cached documents by title, optionally filtered by type
(exam, book, lecture, other).

The search runs against the local cache: it answers instantly and works
offline. A stale cache is refreshed first when the service is reachable.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[docsync] ")

		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		typ := record.DocType(searchType)
		if searchType != "" && !typ.Valid() {
			fmt.Fprintf(os.Stderr, "Error: unknown document type %q\n", searchType)
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

		client, err := remote.NewClient(cfg.RemoteURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating remote client: %v\n", err)
			os.Exit(1)
		}

		catalog := syncer.NewCatalog(db, client, syncer.Options{TTL: cfg.CatalogTTL, Logger: logger})
		docs, err := catalog.Search(ctx, query, typ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching: %v\n", err)
			os.Exit(1)
		}

		if len(docs) == 0 {
			fmt.Println("No documents found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tDOWNLOADS\tRATING\tUPDATED")
		for _, doc := range docs {
			updated := ""
			if !doc.UpdatedAt.IsZero() {
				updated = doc.UpdatedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\t%s\n",
				doc.ID, doc.Title, doc.Type, doc.Downloads, doc.Rating, updated)
		}
		_ = w.Flush()
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchType, "type", "", "filter by document type (exam, book, lecture, other)")
	rootCmd.AddCommand(searchCmd)
}
