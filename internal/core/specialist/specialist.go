// Package specialist holds the per-bill-type negotiation agents. Each agent
// is a linear workflow of LLM stages ending in a pure savings calculation.
package specialist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/agenthands/hagglz/internal/workflow"
)

// Agent runs one specialist workflow over a bill state.
type Agent interface {
	BillType() model.BillType
	Run(ctx context.Context, s *model.BillState) error
}

// KeywordBonus adds Bonus to the confidence when Keyword occurs in the
// lower-cased text.
type KeywordBonus struct {
	Keyword string
	Bonus   float64
}

// Score sums the bonuses whose keyword appears in text.
func Score(text string, table []KeywordBonus) float64 {
	lower := strings.ToLower(text)
	total := 0.0
	for _, kb := range table {
		if strings.Contains(lower, kb.Keyword) {
			total += kb.Bonus
		}
	}
	return total
}

func flat(bonus float64, keywords ...string) []KeywordBonus {
	out := make([]KeywordBonus, len(keywords))
	for i, k := range keywords {
		out[i] = KeywordBonus{Keyword: k, Bonus: bonus}
	}
	return out
}

// ScriptRule selects Templates (indices into an agent's template library)
// when any trigger occurs in the strategy. Always rules match regardless.
type ScriptRule struct {
	Triggers  []string
	Templates []int
	Always    bool
}

// SelectScripts returns the templates picked by rules in rule order with
// duplicates removed. With no match the first three templates are used.
func SelectScripts(strategy string, rules []ScriptRule, templates []string) []string {
	lower := strings.ToLower(strategy)
	seen := make(map[int]bool)
	var out []string
	for _, r := range rules {
		if !r.Always && !containsAny(lower, r.Triggers) {
			continue
		}
		for _, idx := range r.Templates {
			if idx < 0 || idx >= len(templates) || seen[idx] {
				continue
			}
			seen[idx] = true
			out = append(out, templates[idx])
		}
	}
	if len(out) == 0 {
		n := min(3, len(templates))
		out = append(out, templates[:n]...)
	}
	return out
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// Rates are the savings fractions of the three scenarios.
type Rates struct {
	Conservative float64
	Moderate     float64
	Aggressive   float64
}

// Around builds rates as multiples of a typical savings fraction.
func Around(typical, low, high float64) Rates {
	return Rates{Conservative: typical * low, Moderate: typical, Aggressive: typical * high}
}

// CalculateSavings computes every scenario for amount. Recurring bills also
// get monthly and annual figures.
func CalculateSavings(amount float64, rates Rates, recurring bool) map[string]model.Savings {
	return map[string]model.Savings{
		model.Conservative: scenario(amount, rates.Conservative, recurring),
		model.Moderate:     scenario(amount, rates.Moderate, recurring),
		model.Aggressive:   scenario(amount, rates.Aggressive, recurring),
	}
}

func scenario(amount, rate float64, recurring bool) model.Savings {
	saved := model.Round2(amount * rate)
	s := model.Savings{
		Percentage:    model.Round1(rate * 100),
		SavingsAmount: saved,
		FinalAmount:   model.Round2(amount - saved),
	}
	if recurring {
		s.MonthlySavings = saved
		s.AnnualSavings = model.Round2(saved * 12)
	}
	return s
}

// SelectTarget names the scenario to aim for: aggressive above 0.8
// confidence or when forced, moderate above 0.6, conservative otherwise.
func SelectTarget(confidence float64, forceAggressive bool) string {
	switch {
	case forceAggressive || confidence > 0.8:
		return model.Aggressive
	case confidence > 0.6:
		return model.Moderate
	default:
		return model.Conservative
	}
}

func applySavings(s *model.BillState, rates Rates, recurring, forceAggressive bool) {
	s.SavingsPotential = CalculateSavings(s.Amount, rates, recurring)
	s.TargetSavings = s.SavingsPotential[SelectTarget(s.ConfidenceScore, forceAggressive)]
	slog.Info("savings potential calculated",
		"bill_type", s.BillType,
		"target_percentage", s.TargetSavings.Percentage,
		"target_savings", s.TargetSavings.SavingsAmount,
	)
}

// caller wraps the agent's LLM and records failures on the state.
type caller struct {
	agent string
	llm   llm.LLMClient
}

func (c caller) generate(ctx context.Context, s *model.BillState, stage, prompt string) (string, bool) {
	slog.Info("running stage", "agent", c.agent, "stage", stage)
	out, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		slog.Error("stage failed", "agent", c.agent, "stage", stage, "error", err)
		s.AddError(fmt.Sprintf("%s %s failed: %v", c.agent, stage, err))
		return "", false
	}
	return out, true
}

func company(s *model.BillState) string {
	if s.Company == "" {
		return model.UnknownCompany
	}
	return s.Company
}

func compile(stages ...workflow.NamedStage[model.BillState]) (*workflow.Graph[model.BillState], error) {
	return workflow.Chain(stages...)
}

func stage(name string, fn workflow.Stage[model.BillState]) workflow.NamedStage[model.BillState] {
	return workflow.NamedStage[model.BillState]{Name: name, Stage: fn}
}

var errNilClient = errors.New("specialist: llm client is nil")
