// Package pricing derives call cost estimates from token counts and a
// per-model price table.
package pricing

import (
	"github.com/shopspring/decimal"
)

// ModelPricing holds per-million-token prices in USD for a model.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"inputPerMTok"`
	OutputPerMTok float64 `yaml:"outputPerMTok"`
}

// DefaultPricing maps model names to their pricing.
var DefaultPricing = map[string]ModelPricing{
	"llama-3.3-70b-versatile": {InputPerMTok: 0.59, OutputPerMTok: 0.79},
	"llama-3.1-8b-instant":    {InputPerMTok: 0.05, OutputPerMTok: 0.08},
}

var million = decimal.NewFromInt(1_000_000)

// Table resolves model prices, falling back to zero cost for unknown models.
type Table struct {
	prices map[string]ModelPricing
}

// NewTable builds a price table from the defaults merged with overrides.
// Override entries replace default entries for the same model name.
func NewTable(overrides map[string]ModelPricing) *Table {
	prices := make(map[string]ModelPricing, len(DefaultPricing)+len(overrides))
	for name, p := range DefaultPricing {
		prices[name] = p
	}
	for name, p := range overrides {
		prices[name] = p
	}
	return &Table{prices: prices}
}

// Estimate returns the USD cost of a call, rounded to six decimal places.
// Unknown models cost zero rather than failing the recording path.
func (t *Table) Estimate(model string, promptTokens, completionTokens int64) decimal.Decimal {
	p, ok := t.prices[model]
	if !ok {
		return decimal.Zero
	}

	input := decimal.NewFromInt(promptTokens).
		Mul(decimal.NewFromFloat(p.InputPerMTok)).
		Div(million)
	output := decimal.NewFromInt(completionTokens).
		Mul(decimal.NewFromFloat(p.OutputPerMTok)).
		Div(million)

	return input.Add(output).Round(6)
}

// Known reports whether the table prices the given model.
func (t *Table) Known(model string) bool {
	_, ok := t.prices[model]
	return ok
}
