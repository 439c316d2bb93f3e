package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/record"
)

var (
	flagSeedCount     int
	flagSeedDays      int
	flagSeedErrorRate float64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate sample call records for local development",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&flagSeedCount, "count", 500, "Number of records to generate")
	seedCmd.Flags().IntVar(&flagSeedDays, "days", 7, "Spread records over this many past days")
	seedCmd.Flags().Float64Var(&flagSeedErrorRate, "error-rate", 0.05, "Proportion of generated records that are errors")
}

var seedModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
}

var seedUsers = []string{"alice", "bob", "carol", "dave"}

var seedErrors = []struct {
	status  int
	message string
}{
	{429, "rate limit exceeded, retry after 20s"},
	{504, "upstream request timed out"},
	{401, "invalid api key"},
	{400, "prompt exceeds maximum context length"},
	{502, "bad gateway"},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagSeedCount <= 0 {
		return fmt.Errorf("count must be positive, got %d", flagSeedCount)
	}
	if flagSeedDays <= 0 {
		return fmt.Errorf("days must be positive, got %d", flagSeedDays)
	}
	if flagSeedErrorRate < 0 || flagSeedErrorRate > 1 {
		return fmt.Errorf("error-rate must be within [0, 1], got %g", flagSeedErrorRate)
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	now := time.Now().UTC()
	span := time.Duration(flagSeedDays) * 24 * time.Hour

	written := 0
	for i := 0; i < flagSeedCount; i++ {
		result := record.CallResult{
			UserID:       seedUsers[rand.Intn(len(seedUsers))],
			Model:        seedModels[rand.Intn(len(seedModels))],
			PromptTokens: int64(50 + rand.Intn(1950)),
			LatencyMs:    int64(150 + rand.Intn(3850)),
			Status:       models.StatusSuccess,
			Timestamp:    now.Add(-time.Duration(rand.Int63n(int64(span)))),
		}
		if rand.Float64() < flagSeedErrorRate {
			sample := seedErrors[rand.Intn(len(seedErrors))]
			result.Status = models.StatusError
			result.ErrorType = record.MapErrorType(sample.status, sample.message)
			result.ErrorMessage = sample.message
			result.LatencyMs = int64(100 + rand.Intn(9900))
		} else {
			result.CompletionTokens = int64(20 + rand.Intn(980))
		}

		if _, err := a.recorder.Record(ctx, result); err != nil {
			a.logger.Error("failed to write sample record", slog.Any("error", err))
			return err
		}
		written++
	}

	fmt.Printf("seeded %d records over the past %d day(s)\n", written, flagSeedDays)
	return nil
}
