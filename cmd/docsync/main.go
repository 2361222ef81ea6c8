// Command docsync is the offline-first sync daemon and CLI for the
// document sharing service. It keeps a local cache database as the
// read source of truth and reconciles it with the remote service.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/docshare/docsync/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Offline-first sync for the document sharing service",
	Long: `docsync keeps a local cache of the document catalog, notifications,
and leaderboard so the client reads instantly and keeps working offline.

The cache is a local SQLite database. Reads always serve the cache;
the daemon refreshes stale domains from the remote service and holds
realtime channels open for the signed-in identity's notifications.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./docsync.yaml or ~/.docsync/docsync.yaml)")
}

// loadConfig reads the effective configuration for a command.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the process logger. With log_file set it writes to
// a size-rotated file; otherwise to stderr.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}
