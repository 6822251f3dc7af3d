package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/benchscope/internal/server"
)

var (
	servePort   int
	serveEnrich bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server for triggering runs (POST /runs, POST /runs/stream) and reading run
history and stored candidates (GET /runs, GET /runs/{id}, GET /candidates). History endpoints need
DATABASE_URL.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveEnrich, "enrich", false, "Fetch arXiv HTML sections for linked papers before scoring")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(ctx, serveEnrich, true)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	var (
		runs       server.RunStore
		candidates server.CandidateStore
	)
	if a.database != nil {
		runs = a.database
		candidates = a.database
	}

	srv := server.New(server.Config{Port: servePort}, p, runs, candidates, a.logger)
	return srv.Start(ctx)
}
