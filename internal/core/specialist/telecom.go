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
	telecomCeiling        = 0.95
	telecomPotentialShare = 0.8
	telecomFailConfidence = 0.3
	telecomBundle         = "bundle"
)

type serviceRule struct {
	name   string
	anyOf  []string
	noneOf []string
}

var (
	telecomProfiles = map[string]model.TypeInfo{
		"mobile": {
			NegotiationPotential: 0.8,
			TypicalSavings:       0.25,
			Levers:               []string{"competitor_comparison", "usage_analysis", "loyalty_discount"},
			KeyFactors:           []string{"data_usage", "call_minutes", "contract_status"},
		},
		"internet": {
			NegotiationPotential: 0.9,
			TypicalSavings:       0.30,
			Levers:               []string{"speed_downgrade", "competitor_offers", "bundle_analysis"},
			KeyFactors:           []string{"speed_requirements", "data_caps", "promotional_expiry"},
		},
		"cable": {
			NegotiationPotential: 0.9,
			TypicalSavings:       0.35,
			Levers:               []string{"cord_cutting_threat", "channel_reduction", "streaming_alternatives"},
			KeyFactors:           []string{"channel_usage", "streaming_services", "contract_terms"},
		},
		"landline": {
			NegotiationPotential: 0.7,
			TypicalSavings:       0.40,
			Levers:               []string{"necessity_question", "basic_plan", "bundle_removal"},
			KeyFactors:           []string{"actual_usage", "mobile_alternative", "emergency_needs"},
		},
		telecomBundle: {
			NegotiationPotential: 0.8,
			TypicalSavings:       0.25,
			Levers:               []string{"service_separation", "competitor_bundles", "usage_optimisation"},
			KeyFactors:           []string{"individual_service_costs", "usage_patterns", "contract_flexibility"},
		},
	}

	// Checked in order. A bill matching none of them is treated as a bundle.
	telecomServiceRules = []serviceRule{
		{name: "mobile", anyOf: []string{"mobile", "cell"}},
		{name: "internet", anyOf: []string{"internet"}, noneOf: []string{"cable"}},
		{name: "cable", anyOf: []string{"cable", "tv"}},
		{name: "landline", anyOf: []string{"landline", "home phone"}},
	}

	telecomStrategyBonus = flat(0.04, "competitor", "retention", "promotional", "usage", "cancel")

	telecomScripts = []string{
		"I've been a loyal customer for {years} years and I'm considering switching to {competitor}. Can you offer me a better rate?",
		"I see {competitor} is offering {specific_offer}. Can you match or beat that deal?",
		"My promotional rate has expired and my bill has increased significantly. Can we discuss options to reduce it?",
		"I'm only using {usage_amount} of my plan. Do you have a more suitable plan for my usage?",
		"I'm bundling services with you but I think I'm overpaying. Can we review my package?",
		"I'm experiencing financial hardship. Are there any assistance programmes or reduced-rate plans available?",
		"I'm ready to cancel my service today unless we can work out a better deal.",
		"I don't need all these features I'm paying for. Can we customise a plan that better fits my needs?",
	}

	telecomScriptRules = []ScriptRule{
		{Triggers: []string{"competitor"}, Templates: []int{0, 1}},
		{Triggers: []string{"promotional"}, Templates: []int{2}},
		{Triggers: []string{"usage"}, Templates: []int{3, 7}},
		{Triggers: []string{"bundle"}, Templates: []int{4}},
		{Triggers: []string{"cancel"}, Templates: []int{6}},
	}
)

// IdentifyService returns the primary telecom service described by analysis
// and its profile.
func IdentifyService(analysis string) (string, model.TypeInfo) {
	lower := strings.ToLower(analysis)
	for _, r := range telecomServiceRules {
		if containsAny(lower, r.anyOf) && !containsAny(lower, r.noneOf) {
			return r.name, telecomProfiles[r.name]
		}
	}
	return telecomBundle, telecomProfiles[telecomBundle]
}

// Telecom negotiates phone, internet, cable and mobile bills.
type Telecom struct {
	caller
	prompts config.TelecomPrompts
	graph   *workflow.Graph[model.BillState]
}

func NewTelecom(client llm.LLMClient, prompts config.TelecomPrompts) (*Telecom, error) {
	if client == nil {
		return nil, errNilClient
	}
	a := &Telecom{caller: caller{agent: config.AgentTelecom, llm: client}, prompts: prompts}
	g, err := compile(
		stage("identify_services", a.identifyServices),
		stage("analyse_usage", a.analyseUsage),
		stage("research_competitors", a.researchCompetitors),
		stage("generate_strategy", a.generateStrategy),
		stage("create_script", a.createScript),
		stage("calculate_savings", a.calculateSavings),
	)
	if err != nil {
		return nil, fmt.Errorf("telecom agent: %w", err)
	}
	a.graph = g
	return a, nil
}

func (a *Telecom) BillType() model.BillType { return model.BillTelecom }

func (a *Telecom) Run(ctx context.Context, s *model.BillState) error {
	_, err := a.graph.Run(ctx, s)
	return err
}

func (a *Telecom) identifyServices(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "service identification",
		fmt.Sprintf(a.prompts.Identify, company(s), s.Amount, s.OCRText))
	if !ok {
		s.ServiceAnalysis = model.AnalysisUnavailable
		s.SubType, s.TypeInfo = telecomBundle, telecomProfiles[telecomBundle]
		return
	}
	s.ServiceAnalysis = out
	s.SubType, s.TypeInfo = IdentifyService(out)
}

func (a *Telecom) analyseUsage(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "usage analysis",
		fmt.Sprintf(a.prompts.Usage, company(s), s.SubType, s.Amount, strings.Join(s.TypeInfo.KeyFactors, ", ")))
	if !ok {
		s.UsageAnalysis = model.AnalysisUnavailable
		return
	}
	s.UsageAnalysis = out
}

func (a *Telecom) researchCompetitors(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "competitor research",
		fmt.Sprintf(a.prompts.Competitors, company(s), s.SubType, s.Amount))
	if !ok {
		s.CompetitorResearch = model.CompetitorUnavailable
		return
	}
	s.CompetitorResearch = out
}

func (a *Telecom) generateStrategy(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "strategy generation",
		fmt.Sprintf(a.prompts.Strategy, company(s), s.SubType, s.Amount, s.TypeInfo.NegotiationPotential,
			s.UsageAnalysis, s.CompetitorResearch, strings.Join(s.TypeInfo.Levers, ", ")))
	if !ok {
		s.NegotiationStrategy = model.StrategyFailed
		s.EstablishConfidence(telecomFailConfidence, telecomCeiling)
		return
	}
	s.NegotiationStrategy = out
	base := s.TypeInfo.NegotiationPotential * telecomPotentialShare
	s.EstablishConfidence(base+Score(out, telecomStrategyBonus), telecomCeiling)
}

func (a *Telecom) createScript(ctx context.Context, s *model.BillState) {
	templates := SelectScripts(s.NegotiationStrategy, telecomScriptRules, telecomScripts)
	out, ok := a.generate(ctx, s, "script generation",
		fmt.Sprintf(a.prompts.Script, company(s), s.SubType, s.Amount, s.NegotiationStrategy, strings.Join(templates, "\n")))
	if !ok {
		s.Script = model.ScriptFailed
		return
	}
	s.Script = out
}

func (a *Telecom) calculateSavings(ctx context.Context, s *model.BillState) {
	typical := s.TypeInfo.TypicalSavings
	if typical == 0 {
		typical = telecomProfiles[telecomBundle].TypicalSavings
	}
	applySavings(s, Around(typical, 0.7, 1.3), true, false)
}
