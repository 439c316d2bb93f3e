package engine

import (
	"fmt"

	"github.com/promptpulse/promptpulse-engine/internal/models"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// Outcome is the result of evaluating one rule against a snapshot pair.
type Outcome struct {
	Triggered bool
	Value     float64
	Message   string
}

// Evaluate decides whether rule's condition holds for the current snapshot.
// previous is the prior period's snapshot computed over the same grouping
// one window back; it is only consulted for token_spike and may be nil.
// Evaluate is a pure function: it keeps no state between calls.
func Evaluate(rule models.AlertRule, current models.MetricSnapshot, previous *models.MetricSnapshot) (Outcome, error) {
	const op = "engine.Evaluate"

	if !rule.Active {
		return Outcome{}, nil
	}

	switch rule.Kind {
	case models.RuleErrorRate:
		if current.ErrorRate > rule.Threshold {
			return Outcome{
				Triggered: true,
				Value:     current.ErrorRate,
				Message: fmt.Sprintf(
					"error rate %.2f%% over threshold %.2f%%: %d errors out of %d calls",
					current.ErrorRate*100, rule.Threshold*100, current.ErrorCount, current.Count,
				),
			}, nil
		}
		return Outcome{Value: current.ErrorRate}, nil

	case models.RuleLatencyP95:
		p95 := current.LatencyP95()
		if p95 > rule.Threshold {
			return Outcome{
				Triggered: true,
				Value:     p95,
				Message: fmt.Sprintf(
					"P95 latency %.0fms over threshold %.0fms across %d calls",
					p95, rule.Threshold, current.Count,
				),
			}, nil
		}
		return Outcome{Value: p95}, nil

	case models.RuleTokenSpike:
		// Without a previous period of non-zero usage there is no
		// meaningful ratio, so the rule never fires.
		if previous == nil || previous.TotalTokens <= 0 {
			return Outcome{Value: float64(current.TotalTokens)}, nil
		}
		ratio := float64(current.TotalTokens) / float64(previous.TotalTokens)
		if float64(current.TotalTokens) >= rule.Threshold*float64(previous.TotalTokens) {
			return Outcome{
				Triggered: true,
				Value:     float64(current.TotalTokens),
				Message: fmt.Sprintf(
					"token usage %.2fx previous period (threshold %.2fx): %d tokens now vs %d before",
					ratio, rule.Threshold, current.TotalTokens, previous.TotalTokens,
				),
			}, nil
		}
		return Outcome{Value: float64(current.TotalTokens)}, nil

	default:
		return Outcome{}, utils.NewAppError(op, "rule kind "+string(rule.Kind), utils.ErrUnsupportedRuleKind)
	}
}
