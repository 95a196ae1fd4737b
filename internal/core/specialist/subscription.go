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
	subscriptionCeiling        = 0.9
	subscriptionPotentialShare = 0.7
	subscriptionFailConfidence = 0.4
	subscriptionOther          = "other"
)

type namedProfile struct {
	name    string
	profile model.TypeInfo
}

var (
	// Checked in order; the first name found in the analysis wins.
	subscriptionProfiles = []namedProfile{
		{"streaming", model.TypeInfo{NegotiationPotential: 0.7, TypicalSavings: 0.25, Levers: []string{"student", "annual", "bundle", "loyalty"}}},
		{"software", model.TypeInfo{NegotiationPotential: 0.8, TypicalSavings: 0.30, Levers: []string{"annual", "multi-user", "nonprofit", "startup"}}},
		{"fitness", model.TypeInfo{NegotiationPotential: 0.9, TypicalSavings: 0.35, Levers: []string{"annual", "family", "corporate", "student"}}},
		{"news", model.TypeInfo{NegotiationPotential: 0.8, TypicalSavings: 0.40, Levers: []string{"student", "senior", "annual", "digital-only"}}},
		{"cloud", model.TypeInfo{NegotiationPotential: 0.6, TypicalSavings: 0.20, Levers: []string{"annual", "volume", "startup", "nonprofit"}}},
	}

	otherSubscription = model.TypeInfo{NegotiationPotential: 0.6, TypicalSavings: 0.25, Levers: []string{"annual", "loyalty"}}

	subscriptionStrategyBonus = flat(0.05, "competitor", "discount", "cancel", "alternative", "loyalty")

	subscriptionScripts = []string{
		"I've been a loyal subscriber for {duration} and I'm considering cancelling due to cost. Can you offer me a better rate?",
		"I see you're offering new customers a discount. Can existing customers get the same deal?",
		"I'm not using all the features I'm paying for. Do you have a more basic plan that would suit my needs?",
		"I'm comparing your service with competitors who are offering better prices. Can you match their rates?",
		"I'd like to cancel my subscription. Is there anything you can do to keep me as a customer?",
		"I'm experiencing financial difficulties. Do you offer any hardship discounts or payment plans?",
		"I only use this service seasonally. Do you have any pause or temporary suspension options?",
		"I'm a student/senior/military member. Are there any special discounts available for my situation?",
	}

	subscriptionScriptRules = []ScriptRule{
		{Triggers: []string{"loyalty"}, Templates: []int{0}},
		{Triggers: []string{"competitor"}, Templates: []int{1, 3}},
		{Triggers: []string{"cancel"}, Templates: []int{4}},
		{Triggers: []string{"downgrade"}, Templates: []int{2}},
		{Triggers: []string{"hardship"}, Templates: []int{5}},
	}
)

// IdentifySubscription returns the subscription type named in analysis and
// its profile, or "other".
func IdentifySubscription(analysis string) (string, model.TypeInfo) {
	lower := strings.ToLower(analysis)
	for _, p := range subscriptionProfiles {
		if strings.Contains(lower, p.name) {
			return p.name, p.profile
		}
	}
	return subscriptionOther, otherSubscription
}

// Subscription negotiates streaming, software and membership bills.
type Subscription struct {
	caller
	prompts config.SubscriptionPrompts
	graph   *workflow.Graph[model.BillState]
}

func NewSubscription(client llm.LLMClient, prompts config.SubscriptionPrompts) (*Subscription, error) {
	if client == nil {
		return nil, errNilClient
	}
	a := &Subscription{caller: caller{agent: config.AgentSubscription, llm: client}, prompts: prompts}
	g, err := compile(
		stage("identify_type", a.identifyType),
		stage("analyse_usage", a.analyseUsage),
		stage("research_alternatives", a.researchAlternatives),
		stage("generate_strategy", a.generateStrategy),
		stage("create_script", a.createScript),
		stage("calculate_savings", a.calculateSavings),
	)
	if err != nil {
		return nil, fmt.Errorf("subscription agent: %w", err)
	}
	a.graph = g
	return a, nil
}

func (a *Subscription) BillType() model.BillType { return model.BillSubscription }

func (a *Subscription) Run(ctx context.Context, s *model.BillState) error {
	_, err := a.graph.Run(ctx, s)
	return err
}

func (a *Subscription) identifyType(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "subscription identification",
		fmt.Sprintf(a.prompts.Identify, company(s), s.Amount, s.OCRText))
	if !ok {
		s.SubscriptionAnalysis = model.AnalysisUnavailable
		s.SubType, s.TypeInfo = subscriptionOther, otherSubscription
		return
	}
	s.SubscriptionAnalysis = out
	s.SubType, s.TypeInfo = IdentifySubscription(out)
}

func (a *Subscription) analyseUsage(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "usage analysis",
		fmt.Sprintf(a.prompts.Usage, company(s), s.SubType, s.Amount))
	if !ok {
		s.UsageAnalysis = model.AnalysisUnavailable
		return
	}
	s.UsageAnalysis = out
}

func (a *Subscription) researchAlternatives(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "alternatives research",
		fmt.Sprintf(a.prompts.Alternatives, company(s), s.SubType, s.Amount))
	if !ok {
		s.AlternativesResearch = model.AlternativeUnavailable
		return
	}
	s.AlternativesResearch = out
}

func (a *Subscription) generateStrategy(ctx context.Context, s *model.BillState) {
	out, ok := a.generate(ctx, s, "strategy generation",
		fmt.Sprintf(a.prompts.Strategy, company(s), s.SubType, s.Amount, s.TypeInfo.NegotiationPotential,
			s.UsageAnalysis, s.AlternativesResearch, strings.Join(s.TypeInfo.Levers, ", ")))
	if !ok {
		s.NegotiationStrategy = model.StrategyFailed
		s.EstablishConfidence(subscriptionFailConfidence, subscriptionCeiling)
		return
	}
	s.NegotiationStrategy = out
	base := s.TypeInfo.NegotiationPotential * subscriptionPotentialShare
	s.EstablishConfidence(base+Score(out, subscriptionStrategyBonus), subscriptionCeiling)
}

func (a *Subscription) createScript(ctx context.Context, s *model.BillState) {
	templates := SelectScripts(s.NegotiationStrategy, subscriptionScriptRules, subscriptionScripts)
	out, ok := a.generate(ctx, s, "script generation",
		fmt.Sprintf(a.prompts.Script, company(s), s.SubType, s.Amount, s.NegotiationStrategy, strings.Join(templates, "\n")))
	if !ok {
		s.Script = model.ScriptFailed
		return
	}
	s.Script = out
}

func (a *Subscription) calculateSavings(ctx context.Context, s *model.BillState) {
	typical := s.TypeInfo.TypicalSavings
	if typical == 0 {
		typical = otherSubscription.TypicalSavings
	}
	applySavings(s, Around(typical, 0.6, 1.4), true, false)
}
