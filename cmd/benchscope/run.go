package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/benchscope/internal/observability"
	"github.com/jonathan/benchscope/internal/pipeline"
	"github.com/jonathan/benchscope/internal/scoring"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one collection pass end to end",
	Long: `Collects candidates from every configured source, prefilters them, scores the survivors,
stores the batch and sends notifications. Progress is logged to stderr and the ranking is printed
when the run finishes.`,
	RunE: runPipeline,
}

var (
	runDryRun     bool
	runSkipNotify bool
	runTrigger    string
	runEnrich     bool
	runOutput     string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Collect and score without storing or notifying")
	runCmd.Flags().BoolVar(&runSkipNotify, "skip-notify", false, "Skip notifications")
	runCmd.Flags().StringVar(&runTrigger, "trigger", "cli", "Trigger recorded on the run (e.g. cli, schedule)")
	runCmd.Flags().BoolVar(&runEnrich, "enrich", false, "Fetch arXiv HTML sections for linked papers before scoring")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Also write scored candidates to this JSON file")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(ctx, runEnrich, !runDryRun)
	if err != nil {
		return err
	}

	result, runErr := p.Run(ctx, pipeline.RunOptions{
		Trigger:    runTrigger,
		DryRun:     runDryRun,
		SkipNotify: runSkipNotify,
		OnProgress: func(ev pipeline.ProgressEvent) {
			a.logger.Info().Str("step", ev.Step).Int("count", ev.Count).Msg(ev.Message)
		},
	})
	if result == nil {
		return runErr
	}

	scoring.SortByTotal(result.Scored, a.cfg.Scoring.Ranking)
	if runOutput != "" {
		if err := writeJSONFile(runOutput, result.Scored); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if err := observability.NewPrinter(out).PrintRanking(result.Scored, a.cfg.Scoring.Ranking); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nRun %s: collected %d, prefiltered %d, scored %d (%d high, %d medium, %d fallback) in %s\n",
		result.Status, result.Stats.Collected, result.Stats.Prefiltered, result.Stats.Scored,
		result.Stats.High, result.Stats.Medium, result.Stats.Fallback, result.Duration.Round(time.Millisecond))
	for source, err := range result.CollectorErrors {
		fmt.Fprintf(out, "  %s collector failed: %v\n", source, err)
	}
	return runErr
}
