package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay the local fallback backlog into the primary database",
	Long: `Copies candidates that were written to the SQLite fallback while the primary database was
unavailable, then purges expired score cache entries.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.database == nil {
		return errors.New("sync requires a reachable DATABASE_URL")
	}
	manager, err := a.storage()
	if err != nil {
		return err
	}

	synced, err := manager.SyncBacklog(ctx)
	if err != nil {
		return fmt.Errorf("sync stopped after %d candidates: %w", synced, err)
	}
	purged, err := a.database.PurgeExpiredCache(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d candidates, purged %d expired cache entries\n", synced, purged)

	pending, kept, err := manager.Backlog(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fallback store: %d pending, %d synced awaiting retention\n", pending, kept)
	return nil
}
