package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/benchscope/internal/observability"
	"github.com/jonathan/benchscope/internal/prefilter"
	"github.com/jonathan/benchscope/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score candidates from a JSON file",
	Long: `Reads a JSON array of raw candidates, applies the prefilter and scores the survivors.
Without GEMINI_API_KEY every candidate is scored by the rule fallback.`,
	RunE: runScore,
}

var (
	scoreInput       string
	scoreOutput      string
	scoreNoPrefilter bool
	scoreDetail      bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVarP(&scoreInput, "input", "i", "", "Path to a JSON array of raw candidates (required)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "Write scored candidates to this JSON file")
	scoreCmd.Flags().BoolVar(&scoreNoPrefilter, "no-prefilter", false, "Score every input candidate")
	scoreCmd.Flags().BoolVar(&scoreDetail, "detail", false, "Print a detail box for each candidate")

	if err := scoreCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	candidates, err := readCandidates(scoreInput)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if !scoreNoPrefilter {
		candidates = prefilter.New(a.cfg.Prefilter, a.logger).Filter(candidates)
	}
	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	scored := engine.ScoreBatch(ctx, candidates)
	ranking := a.cfg.Scoring.Ranking
	scoring.SortByTotal(scored, ranking)

	if scoreOutput != "" {
		if err := writeJSONFile(scoreOutput, scored); err != nil {
			return err
		}
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if scoreDetail {
		for _, c := range scored {
			printer.PrintCandidate(c, ranking)
		}
		return nil
	}
	return printer.PrintRanking(scored, ranking)
}
