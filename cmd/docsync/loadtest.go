package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docshare/docsync/internal/loadtest"
)

var (
	loadtestDocs    int
	loadtestReaders int
	loadtestQueries int
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Benchmark concurrent cache reads",
	Long: `Populate a throwaway cache and benchmark concurrent catalog
searches against it, reporting latency percentiles.

The cache is created in a temporary directory and removed afterwards;
the real cache is not touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, err := os.MkdirTemp("", "docsync-loadtest-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating temp dir: %v\n", err)
			os.Exit(1)
		}
		defer os.RemoveAll(dir)

		fmt.Printf("Populating cache with %d documents...\n", loadtestDocs)
		tc, err := loadtest.CreateTestCache(filepath.Join(dir, "load.db"), loadtestDocs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating test cache: %v\n", err)
			os.Exit(1)
		}
		defer tc.Close()

		fmt.Printf("Running %d readers x %d queries...\n\n", loadtestReaders, loadtestQueries)
		stats, err := tc.RunConcurrentSearches(loadtestReaders, loadtestQueries)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running load test: %v\n", err)
			os.Exit(1)
		}

		stats.PrintStats()

		if stats.Errors > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	loadtestCmd.Flags().IntVar(&loadtestDocs, "docs", 5000, "documents to populate")
	loadtestCmd.Flags().IntVar(&loadtestReaders, "readers", 100, "concurrent readers")
	loadtestCmd.Flags().IntVar(&loadtestQueries, "queries", 50, "queries per reader")
	rootCmd.AddCommand(loadtestCmd)
}
