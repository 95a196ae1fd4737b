// Package estimate holds the deterministic calculators exposed next to the
// negotiation workflow: savings projections and a success probability score.
package estimate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/agenthands/hagglz/internal/core/model"
)

var ErrInvalidAmount = errors.New("original amount must be positive")

type Scenario struct {
	Percentage     float64 `json:"percentage"`
	MonthlySavings float64 `json:"monthly_savings"`
	AnnualSavings  float64 `json:"annual_savings"`
	FinalAmount    float64 `json:"final_amount"`
}

type Calculation struct {
	OriginalAmount float64 `json:"original_amount"`

	NegotiatedAmount  *float64 `json:"negotiated_amount,omitempty"`
	SavingsAmount     *float64 `json:"savings_amount,omitempty"`
	SavingsPercentage *float64 `json:"savings_percentage,omitempty"`
	MonthlySavings    *float64 `json:"monthly_savings,omitempty"`
	AnnualSavings     *float64 `json:"annual_savings,omitempty"`

	TargetPercentage    *float64 `json:"target_percentage,omitempty"`
	TargetSavingsAmount *float64 `json:"target_savings_amount,omitempty"`
	TargetFinalAmount   *float64 `json:"target_final_amount,omitempty"`
	TargetAnnualSavings *float64 `json:"target_annual_savings,omitempty"`

	Scenarios map[string]Scenario `json:"scenarios"`
}

var scenarioPercentages = []struct {
	name string
	pct  float64
}{
	{model.Conservative, 10},
	{model.Moderate, 20},
	{model.Aggressive, 30},
}

// Savings projects savings for a bill. negotiated and targetPct are optional;
// the three stock scenarios are always filled in.
func Savings(original float64, negotiated, targetPct *float64) (Calculation, error) {
	if original <= 0 || math.IsNaN(original) || math.IsInf(original, 0) {
		return Calculation{}, fmt.Errorf("%w: %v", ErrInvalidAmount, original)
	}
	c := Calculation{OriginalAmount: original, Scenarios: make(map[string]Scenario, len(scenarioPercentages))}

	if negotiated != nil {
		saved := original - *negotiated
		c.NegotiatedAmount = ptr(*negotiated)
		c.SavingsAmount = ptr(model.Round2(saved))
		c.SavingsPercentage = ptr(model.Round2(saved / original * 100))
		c.MonthlySavings = ptr(model.Round2(saved))
		c.AnnualSavings = ptr(model.Round2(saved * 12))
	}

	if targetPct != nil {
		saved := original * *targetPct / 100
		c.TargetPercentage = ptr(*targetPct)
		c.TargetSavingsAmount = ptr(model.Round2(saved))
		c.TargetFinalAmount = ptr(model.Round2(original - saved))
		c.TargetAnnualSavings = ptr(model.Round2(saved * 12))
	}

	for _, s := range scenarioPercentages {
		saved := original * s.pct / 100
		c.Scenarios[s.name] = Scenario{
			Percentage:     s.pct,
			MonthlySavings: model.Round2(saved),
			AnnualSavings:  model.Round2(saved * 12),
			FinalAmount:    model.Round2(original - saved),
		}
	}
	return c, nil
}

func ptr(v float64) *float64 { return &v }

// Factors describe the customer's negotiating position. Zero values add nothing.
type Factors struct {
	BillType            string  `json:"bill_type"`
	Amount              float64 `json:"amount"`
	CustomerTenureYears float64 `json:"customer_tenure_years"`
	PaymentHistory      string  `json:"payment_history"`
	HasCompetitorOffers bool    `json:"has_competitor_offers"`
	Timing              string  `json:"timing"`
}

type Probability struct {
	BaseProbability  float64  `json:"base_probability"`
	Adjustments      []string `json:"adjustments"`
	FinalProbability float64  `json:"final_probability"`
	Percentage       float64  `json:"percentage"`
	ConfidenceLevel  string   `json:"confidence_level"`
}

const (
	baseProbability = 0.5
	maxProbability  = 0.95
)

var billTypeLift = map[model.BillType]struct {
	lift float64
	note string
}{
	model.BillUtility:      {0.10, "Utility bills generally negotiable (+10%)"},
	model.BillMedical:      {0.20, "Medical bills highly negotiable (+20%)"},
	model.BillTelecom:      {0.15, "Telecom services very negotiable (+15%)"},
	model.BillSubscription: {0.10, "Subscriptions moderately negotiable (+10%)"},
}

// SuccessProbability scores how likely a negotiation is to succeed.
func SuccessProbability(f Factors) Probability {
	p := baseProbability
	var adj []string
	add := func(lift float64, note string) {
		p += lift
		adj = append(adj, note)
	}

	if bt, ok := billTypeLift[model.BillType(strings.ToUpper(strings.TrimSpace(f.BillType)))]; ok {
		add(bt.lift, bt.note)
	}

	switch {
	case f.Amount > 1000:
		add(0.15, "Very high amount provides strong leverage (+15%)")
	case f.Amount > 500:
		add(0.10, "High amount increases leverage (+10%)")
	}

	switch {
	case f.CustomerTenureYears > 5:
		add(0.15, "Very long-term customer (+15%)")
	case f.CustomerTenureYears > 2:
		add(0.10, "Long-term customer loyalty (+10%)")
	}

	switch strings.ToLower(f.PaymentHistory) {
	case "excellent":
		add(0.10, "Excellent payment history (+10%)")
	case "good":
		add(0.05, "Good payment history (+5%)")
	}

	if f.HasCompetitorOffers {
		add(0.15, "Competitor offers provide leverage (+15%)")
	}

	switch strings.ToLower(f.Timing) {
	case "end_of_quarter":
		add(0.10, "End of quarter timing (+10%)")
	case "contract_renewal":
		add(0.15, "Contract renewal timing (+15%)")
	}

	p = math.Min(p, maxProbability)
	if adj == nil {
		adj = []string{}
	}
	return Probability{
		BaseProbability:  baseProbability,
		Adjustments:      adj,
		FinalProbability: math.Round(p*1000) / 1000,
		Percentage:       model.Round1(p * 100),
		ConfidenceLevel:  level(p),
	}
}

func level(p float64) string {
	switch {
	case p > 0.7:
		return "high"
	case p > 0.5:
		return "medium"
	default:
		return "low"
	}
}
