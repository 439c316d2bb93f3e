package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptpulse/promptpulse-engine/internal/config"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:   "pulse-engine",
	Short: "LLM call observability: metrics aggregation and alerting engine",
	Long: "pulse-engine records LLM provider call metadata and derives rolling\n" +
		"usage, latency, and error statistics plus rule-triggered alerts from it.",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to configuration file")
	rootCmd.AddCommand(serveCmd, checkCmd, seedCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", flagConfigPath), slog.Any("error", err))
		return nil, err
	}
	return cfg, nil
}
