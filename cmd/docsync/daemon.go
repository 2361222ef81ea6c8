package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docshare/docsync/internal/dashboard"
	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/session"
	"github.com/docshare/docsync/internal/store"
	"github.com/docshare/docsync/internal/syncer"
)

var daemonDashboard bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon (foreground)",
	Long: `Run the sync daemon in foreground mode.

The daemon will:
  1. Refresh the document catalog and leaderboard on their TTLs
  2. Follow the session file and rebind realtime channels on identity
     changes
  3. Merge pushed notification snapshots into the cache
  4. Optionally serve the WebSocket dashboard`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[docsync] ")

		db, err := store.Open(cfg.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := db.InitSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}

		client, err := remote.NewClient(cfg.RemoteURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating remote client: %v\n", err)
			os.Exit(1)
		}

		var sink syncer.EventSink
		var dash *dashboard.Server
		sessions := session.NewManager(db, logger)

		if daemonDashboard {
			dash = dashboard.NewServer(&dashboard.Config{Port: cfg.DashboardPort, Logger: logger})
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() { _ = dash.Stop() }()
			sink = dashboard.NewHandler(dash, db, sessions, logger).Sink()
		}

		catalog := syncer.NewCatalog(db, client, syncer.Options{TTL: cfg.CatalogTTL, Logger: logger, Events: sink})
		leaderboard := syncer.NewLeaderboard(db, client, syncer.Options{TTL: cfg.LeaderboardTTL, Logger: logger, Events: sink})
		notifications := syncer.NewNotifications(db, client, syncer.Options{Logger: logger, Events: sink})

		if err := sessions.Register(ctx, notifications); err != nil {
			logger.Printf("WARNING: notification channels not bound yet: %v", err)
		}

		watcher, err := session.NewWatcher(cfg.SessionFile, sessions, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session watcher: %v\n", err)
			os.Exit(1)
		}
		if err := watcher.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error watching session file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = watcher.Stop() }()

		fmt.Printf("docsync daemon running\n")
		fmt.Printf("   Remote:  %s\n", cfg.RemoteURL)
		fmt.Printf("   Cache:   %s\n", cfg.CachePath)
		fmt.Printf("   Session: %s\n", cfg.SessionFile)
		if dash != nil {
			fmt.Printf("   Dashboard: http://%s\n", dash.GetAddr())
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		runRefreshLoop(ctx, cfg.CatalogTTL, cfg.LeaderboardTTL, catalog, leaderboard)

		sessions.SignOut()
		logger.Printf("daemon stopped")
	},
}

// refresher is the TTL-driven part of a coordinator.
type refresher interface {
	RefreshIfStale(ctx context.Context) error
}

// runRefreshLoop drives TTL refreshes until ctx is cancelled. Each
// domain ticks at half its TTL so a refresh lands soon after the cache
// turns stale rather than up to a full TTL late.
func runRefreshLoop(ctx context.Context, catalogTTL, leaderboardTTL time.Duration, catalog, leaderboard refresher) {
	kick := func(r refresher, what string) {
		if err := r.RefreshIfStale(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error refreshing %s: %v\n", what, err)
		}
	}

	kick(catalog, "catalog")
	kick(leaderboard, "leaderboard")

	catalogTick := time.NewTicker(halfTTL(catalogTTL))
	defer catalogTick.Stop()
	leaderboardTick := time.NewTicker(halfTTL(leaderboardTTL))
	defer leaderboardTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-catalogTick.C:
			kick(catalog, "catalog")
		case <-leaderboardTick.C:
			kick(leaderboard, "leaderboard")
		}
	}
}

func halfTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * time.Second
	}
	half := ttl / 2
	if half < time.Second {
		half = time.Second
	}
	return half
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonDashboard, "dashboard", false, "serve the WebSocket dashboard")
	rootCmd.AddCommand(daemonCmd)
}
