package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/agenthands/hagglz/internal/workflow"
)

const (
	medicalCeiling        = 0.9
	medicalBase           = 0.4
	medicalFailConfidence = 0.3
	medicalLargeBill      = 1000
)

var (
	medicalStrategyBonus = []KeywordBonus{{"charity", 0.1}, {"uninsured", 0.1}}

	medicalRates      = Rates{Conservative: 0.15, Moderate: 0.30, Aggressive: 0.50}
	medicalErrorRates = Rates{Conservative: 0.20, Moderate: 0.40, Aggressive: 0.60}

	medicalScripts = []string{
		"Is this negotiable? I'd like to discuss payment options for this medical bill.",
		"I want to offer you a settlement amount to close out this account. What's the minimum you would accept?",
		"I'm experiencing financial hardship. Are there assistance programmes or charity care available?",
		"I'd like to request an itemised bill to review all charges before making payment.",
		"I believe there may be billing errors. Can we review the charges together?",
		"I don't have insurance coverage for this. Do you offer uninsured patient discounts?",
		"Can we set up a payment plan that works with my budget?",
		"I've received multiple bills for the same service. Can you help clarify the charges?",
	}

	medicalScriptRules = []ScriptRule{
		{Triggers: []string{"hardship", "charity"}, Templates: []int{2}},
		{Triggers: []string{"settlement"}, Templates: []int{1}},
		{Triggers: []string{"uninsured"}, Templates: []int{5}},
		{Triggers: []string{"payment plan"}, Templates: []int{6}},
	}

	// Templates used first whenever a billing error was found.
	medicalErrorScripts = ScriptRule{Always: true, Templates: []int{0, 3, 4}}

	commonBillingErrors = []string{
		"Duplicate charges for the same service",
		"Incorrect CPT (procedure) codes",
		"Services billed but not received",
		"Insurance processing errors",
		"Incorrect patient information",
		"Upcoding (billing for more expensive procedures)",
		"Unbundling (separate billing for bundled services)",
		"Balance billing issues",
	}

	// Phrases in an error analysis that indicate a billing error was found.
	billingErrorIndicators = []string{
		"duplicate charge",
		"billed twice",
		"overcharge",
		"incorrect code",
		"incorrect cpt",
		"upcoding",
		"unbundling",
		"not received",
		"billing error found",
		"errors found",
		"discrepancy found",
	}

	// Phrases that negate the indicators above.
	noBillingErrorIndicators = []string{
		"no errors found",
		"no billing errors",
		"no obvious errors",
		"no discrepancies",
	}
)

// Medical negotiates healthcare, dental and hospital bills.
type Medical struct {
	caller
	prompts config.MedicalPrompts
	graph   *workflow.Graph[model.BillState]
}

func NewMedical(client llm.LLMClient, prompts config.MedicalPrompts) (*Medical, error) {
	if client == nil {
		return nil, errNilClient
	}
	a := &Medical{caller: caller{agent: config.AgentMedical, llm: client}, prompts: prompts}
	g, err := compile(
		stage("check_errors", a.checkErrors),
		stage("assess_hardship", a.assessHardship),
		stage("generate_strategy", a.generateStrategy),
		stage("create_script", a.createScript),
		stage("calculate_savings", a.calculateSavings),
	)
	if err != nil {
		return nil, fmt.Errorf("medical agent: %w", err)
	}
	a.graph = g
	return a, nil
}

func (a *Medical) BillType() model.BillType { return model.BillMedical }

func (a *Medical) Run(ctx context.Context, s *model.BillState) error {
	_, err := a.graph.Run(ctx, s)
	return err
}

func (a *Medical) checkErrors(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "billing error check",
		fmt.Sprintf(a.prompts.Errors, company(s), s.Amount, s.OCRText, "- "+strings.Join(commonBillingErrors, "\n- ")))
	if !ok {
		s.ErrorAnalysis = model.AnalysisUnavailable
		s.HasErrors = false
		return
	}
	s.ErrorAnalysis = out
	s.HasErrors = DetectBillingErrors(out)
}

// DetectBillingErrors reports whether an error analysis describes at least
// one concrete billing error.
func DetectBillingErrors(analysis string) bool {
	lower := strings.ToLower(analysis)
	if containsAny(lower, noBillingErrorIndicators) {
		return false
	}
	return containsAny(lower, billingErrorIndicators)
}

func (a *Medical) assessHardship(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "financial assistance assessment",
		fmt.Sprintf(a.prompts.Hardship, s.Amount, company(s)))
	if !ok {
		s.FinancialAssistance = model.FinancialUnavailable
		return
	}
	s.FinancialAssistance = out
}

func (a *Medical) generateStrategy(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "strategy generation",
		fmt.Sprintf(a.prompts.Strategy, company(s), s.Amount, s.HasErrors, s.ErrorAnalysis, s.FinancialAssistance))
	if !ok {
		s.NegotiationStrategy = model.StrategyFailed
		s.EstablishConfidence(medicalFailConfidence, medicalCeiling)
		return
	}
	s.NegotiationStrategy = out

	base := medicalBase
	if s.HasErrors {
		base += 0.2
	}
	if s.Amount > medicalLargeBill {
		base += 0.1
	}
	s.EstablishConfidence(base+Score(out, medicalStrategyBonus), medicalCeiling)
}

func (a *Medical) createScript(ctx context.Context, s *model.BillState) {
	rules := medicalScriptRules
	if s.HasErrors {
		rules = append([]ScriptRule{medicalErrorScripts}, rules...)
	}
	templates := SelectScripts(s.NegotiationStrategy, rules, medicalScripts)
	out, ok := a.generate(ctx, s, "script generation",
		fmt.Sprintf(a.prompts.Script, company(s), s.Amount, s.HasErrors, s.NegotiationStrategy, strings.Join(templates, "\n")))
	if !ok {
		s.Script = model.ScriptFailed
		return
	}
	s.Script = out
}

// Medical bills are one-off, so no monthly or annual figures.
func (a *Medical) calculateSavings(ctx context.Context, s *model.BillState) {
	rates := medicalRates
	if s.HasErrors {
		rates = medicalErrorRates
	}
	applySavings(s, rates, false, s.HasErrors)
}
