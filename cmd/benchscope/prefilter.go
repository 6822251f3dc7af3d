package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/observability"
	"github.com/jonathan/benchscope/internal/prefilter"
)

var prefilterCmd = &cobra.Command{
	Use:   "prefilter",
	Short: "Show prefilter decisions for candidates in a JSON file",
	RunE:  runPrefilter,
}

var prefilterInput string

func init() {
	rootCmd.AddCommand(prefilterCmd)

	prefilterCmd.Flags().StringVarP(&prefilterInput, "input", "i", "", "Path to a JSON array of raw candidates (required)")
	if err := prefilterCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
}

func runPrefilter(cmd *cobra.Command, _ []string) error {
	candidates, err := readCandidates(prefilterInput)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(config.LogConfig{Level: "error"}, cmd.ErrOrStderr())

	decisions := prefilter.New(cfg.Prefilter, logger).Decisions(candidates)
	printer := observability.NewPrinter(cmd.OutOrStdout())
	passed := 0
	for i, c := range candidates {
		d := decisions[i]
		if d.Accepted {
			passed++
		}
		printer.PrintDecision(c, d.Accepted, string(d.Reason))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d candidates passed\n", passed, len(candidates))
	return nil
}
