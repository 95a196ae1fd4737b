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
	utilityCeiling        = 0.9
	utilityScriptCeiling  = 0.95
	utilityBase           = 0.25
	utilityFailConfidence = 0.3
)

var (
	utilityUsageBonus    = flat(0.15, "loyal", "savings", "competitor", "discount", "programme")
	utilityStrategyBonus = []KeywordBonus{{"competitor", 0.05}, {"discount", 0.05}, {"loyalty", 0.03}}
	utilityScriptBonus   = flat(0.05, "opening", "discount", "competitor", "loyal")

	utilityRates = Rates{Conservative: 0.05, Moderate: 0.15, Aggressive: 0.25}

	utilityScripts = []string{
		"I've been a loyal customer for {years} years and I'm hoping we can work together to find a better rate.",
		"I see that {competitor} is offering {specific_deal}. Can you match or beat that offer?",
		"I'm considering cancelling my service because the cost has become too high. Is there anything you can do to help?",
		"I've noticed my bill has increased significantly. Are there any programmes or discounts available?",
		"I'm experiencing financial hardship due to {reason}. Do you have any assistance programmes?",
		"I'd like to discuss my payment plan options and see if we can reduce my monthly costs.",
		"I've been comparing rates and found better offers elsewhere. Can you provide a competitive rate?",
		"I'm a senior citizen/student/veteran. Are there any special discounts available for my situation?",
	}

	utilityScriptRules = []ScriptRule{
		{Triggers: []string{"loyal"}, Templates: []int{0}},
		{Triggers: []string{"competitor"}, Templates: []int{1, 2}},
		{Triggers: []string{"hardship"}, Templates: []int{4}},
		{Triggers: []string{"discount"}, Templates: []int{3}},
	}
)

// Utility negotiates electric, gas, water and heating bills.
type Utility struct {
	caller
	prompts config.UtilityPrompts
	graph   *workflow.Graph[model.BillState]
}

func NewUtility(client llm.LLMClient, prompts config.UtilityPrompts) (*Utility, error) {
	if client == nil {
		return nil, errNilClient
	}
	a := &Utility{caller: caller{agent: config.AgentUtility, llm: client}, prompts: prompts}
	g, err := compile(
		stage("analyse_usage", a.analyseUsage),
		stage("research_competitors", a.researchCompetitors),
		stage("generate_strategy", a.generateStrategy),
		stage("create_script", a.createScript),
		stage("calculate_savings", a.calculateSavings),
	)
	if err != nil {
		return nil, fmt.Errorf("utility agent: %w", err)
	}
	a.graph = g
	return a, nil
}

func (a *Utility) BillType() model.BillType { return model.BillUtility }

func (a *Utility) Run(ctx context.Context, s *model.BillState) error {
	_, err := a.graph.Run(ctx, s)
	return err
}

func (a *Utility) analyseUsage(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "usage analysis",
		fmt.Sprintf(a.prompts.Usage, company(s), s.Amount, s.OCRText))
	if !ok {
		s.UsageAnalysis = model.AnalysisUnavailable
		s.EstablishConfidence(utilityFailConfidence, utilityCeiling)
		return
	}
	s.UsageAnalysis = out
	s.EstablishConfidence(utilityBase+Score(out, utilityUsageBonus), utilityCeiling)
}

func (a *Utility) researchCompetitors(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "competitor research",
		fmt.Sprintf(a.prompts.Competitors, company(s), s.BillType, s.Amount))
	if !ok {
		s.CompetitorResearch = model.CompetitorUnavailable
		return
	}
	s.CompetitorResearch = out
}

func (a *Utility) generateStrategy(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "strategy generation",
		fmt.Sprintf(a.prompts.Strategy, company(s), s.Amount, s.BillType, s.UsageAnalysis, s.CompetitorResearch))
	if !ok {
		s.NegotiationStrategy = model.StrategyFailed
		return
	}
	s.NegotiationStrategy = out
	s.RaiseConfidence(Score(out, utilityStrategyBonus), utilityCeiling)
}

func (a *Utility) createScript(ctx context.Context, s *model.BillState) {
	templates := SelectScripts(s.NegotiationStrategy, utilityScriptRules, utilityScripts)
	out, ok := a.generate(ctx, s, "script generation",
		fmt.Sprintf(a.prompts.Script, company(s), s.Amount, s.NegotiationStrategy, strings.Join(templates, "\n")))
	if !ok {
		s.Script = model.ScriptFailed
		return
	}
	s.Script = out
	s.RaiseConfidence(Score(out, utilityScriptBonus), utilityScriptCeiling)
}

func (a *Utility) calculateSavings(ctx context.Context, s *model.BillState) {
	applySavings(s, utilityRates, true, false)
}
