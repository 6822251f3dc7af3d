package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/benchscope/internal/db"
	"github.com/jonathan/benchscope/internal/types"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send notifications for already scored candidates",
	Long: `Sends the tiered notification cards for a scored batch, read either from a JSON file
(--input) or from the database (--since, --min-score). Requires FEISHU_WEBHOOK_URL or
notify.webhook_url.`,
	RunE: runNotify,
}

var (
	notifyInput    string
	notifySince    time.Duration
	notifyMinScore float64
	notifyLimit    int
)

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringVarP(&notifyInput, "input", "i", "", "Path to a JSON array of scored candidates")
	notifyCmd.Flags().DurationVar(&notifySince, "since", 24*time.Hour, "Database mode: candidates updated within this window")
	notifyCmd.Flags().Float64Var(&notifyMinScore, "min-score", 0, "Database mode: minimum total score")
	notifyCmd.Flags().IntVar(&notifyLimit, "limit", db.DefaultListLimit, "Database mode: maximum candidates to load")
}

func runNotify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	notifier := a.notifier()
	if notifier == nil {
		return errors.New("notifications are disabled: set FEISHU_WEBHOOK_URL or notify.webhook_url")
	}

	var candidates []types.ScoredCandidate
	if notifyInput != "" {
		candidates, err = readScored(notifyInput)
		if err != nil {
			return err
		}
	} else {
		if a.database == nil {
			return errors.New("either --input or a reachable DATABASE_URL is required")
		}
		stored, err := a.database.ListCandidates(ctx, db.CandidateFilter{
			Since:    time.Now().Add(-notifySince),
			MinScore: notifyMinScore,
			Limit:    notifyLimit,
		})
		if err != nil {
			return err
		}
		candidates = make([]types.ScoredCandidate, 0, len(stored))
		for _, c := range stored {
			candidates = append(candidates, c.ScoredCandidate)
		}
	}

	if err := notifier.Notify(ctx, candidates); err != nil {
		return fmt.Errorf("failed to send notifications: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Notified %d candidates\n", len(candidates))
	return nil
}
