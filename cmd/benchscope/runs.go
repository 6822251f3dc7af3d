package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonathan/benchscope/internal/observability"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE:  runRuns,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.database == nil {
		return errors.New("run history requires a reachable DATABASE_URL")
	}
	runs, err := a.database.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	return observability.NewPrinter(cmd.OutOrStdout()).PrintRuns(runs)
}
