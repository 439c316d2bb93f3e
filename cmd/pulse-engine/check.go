package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	flagCheckWindow    int
	flagCreateDefaults bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate all active alert rules once and exit",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&flagCheckWindow, "window", 0, "Evaluation window in minutes (0 = configured default)")
	checkCmd.Flags().BoolVar(&flagCreateDefaults, "create-defaults", false, "Create the stock alert rules before checking")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	if flagCreateDefaults {
		created, err := a.manager.EnsureDefaultRules(ctx)
		if err != nil {
			return err
		}
		for _, rule := range created {
			fmt.Printf("created default rule %q (%s)\n", rule.Name, rule.Kind)
		}
	}

	window := flagCheckWindow
	if window <= 0 {
		window = cfg.Alerting.WindowMinutes
	}

	events, err := a.checker.RunAlertCheck(ctx, window)
	if err != nil {
		a.logger.Error("alert check failed", slog.Any("error", err))
		return err
	}

	if len(events) == 0 {
		fmt.Println("no alerts triggered")
		return nil
	}
	for _, event := range events {
		fmt.Printf("alert %s rule=%s value=%.4f %s\n",
			event.ID, event.RuleID, event.MetricValue, event.Message)
	}
	return nil
}
