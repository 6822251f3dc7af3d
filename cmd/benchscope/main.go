// Package main provides the entry point for the BenchScope CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "benchscope",
	Short: "BenchScope benchmark discovery pipeline",
	Long: `BenchScope collects candidate AI benchmarks from arXiv, GitHub and HuggingFace, filters them with
deterministic rules, scores them with an LLM and pushes tiered notifications to a Feishu webhook.

Configuration is read from --config (JSON or TOML) over built-in defaults; environment variables
such as GEMINI_API_KEY, DATABASE_URL and FEISHU_WEBHOOK_URL override file values.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or TOML config file (optional)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
