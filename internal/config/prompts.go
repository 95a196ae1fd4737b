package config

import (
	"fmt"
	"strings"
)

// Prompt templates are fmt format strings. The argument order of each
// template is fixed by the stage that renders it and noted above the field.

type RouterPrompts struct {
	// ocr text
	Classify string `toml:"classify"`
	// ocr text
	Extract string `toml:"extract"`
}

type UtilityPrompts struct {
	// company, amount, ocr text
	Usage string `toml:"usage"`
	// company, bill type, amount
	Competitors string `toml:"competitors"`
	// company, amount, bill type, usage analysis, competitor research
	Strategy string `toml:"strategy"`
	// company, amount, strategy, script templates
	Script string `toml:"script"`
}

type MedicalPrompts struct {
	// provider, amount, ocr text, common billing errors
	Errors string `toml:"errors"`
	// amount, provider
	Hardship string `toml:"hardship"`
	// provider, amount, errors found, error analysis, financial options
	Strategy string `toml:"strategy"`
	// provider, amount, errors found, strategy, script templates
	Script string `toml:"script"`
}

type SubscriptionPrompts struct {
	// company, amount, ocr text
	Identify string `toml:"identify"`
	// company, subscription type, amount
	Usage string `toml:"usage"`
	// company, subscription type, amount
	Alternatives string `toml:"alternatives"`
	// company, subscription type, amount, negotiation potential, usage analysis, alternatives, common discounts
	Strategy string `toml:"strategy"`
	// company, subscription type, amount, strategy, script templates
	Script string `toml:"script"`
}

type TelecomPrompts struct {
	// company, amount, ocr text
	Identify string `toml:"identify"`
	// company, telecom type, amount, key factors
	Usage string `toml:"usage"`
	// company, telecom type, amount
	Competitors string `toml:"competitors"`
	// company, telecom type, amount, negotiation potential, usage analysis, competitor research, common tactics
	Strategy string `toml:"strategy"`
	// company, telecom type, amount, strategy, script templates
	Script string `toml:"script"`
}

type ResearchPrompts struct {
	// company, bill type, prior strategies
	Company string `toml:"company"`
}

type Prompts struct {
	Router       RouterPrompts       `toml:"router"`
	Utility      UtilityPrompts      `toml:"utility"`
	Medical      MedicalPrompts      `toml:"medical"`
	Subscription SubscriptionPrompts `toml:"subscription"`
	Telecom      TelecomPrompts      `toml:"telecom"`
	Research     ResearchPrompts     `toml:"research"`
}

// check renders every template with placeholder arguments of the types its
// stage passes and rejects any that leave fmt error markers behind.
func (p Prompts) check() error {
	const s, f, b = "x", 1.0, true
	templates := []struct {
		name string
		tmpl string
		args []any
	}{
		{"router.classify", p.Router.Classify, []any{s}},
		{"router.extract", p.Router.Extract, []any{s}},
		{"utility.usage", p.Utility.Usage, []any{s, f, s}},
		{"utility.competitors", p.Utility.Competitors, []any{s, s, f}},
		{"utility.strategy", p.Utility.Strategy, []any{s, f, s, s, s}},
		{"utility.script", p.Utility.Script, []any{s, f, s, s}},
		{"medical.errors", p.Medical.Errors, []any{s, f, s, s}},
		{"medical.hardship", p.Medical.Hardship, []any{f, s}},
		{"medical.strategy", p.Medical.Strategy, []any{s, f, b, s, s}},
		{"medical.script", p.Medical.Script, []any{s, f, b, s, s}},
		{"subscription.identify", p.Subscription.Identify, []any{s, f, s}},
		{"subscription.usage", p.Subscription.Usage, []any{s, s, f}},
		{"subscription.alternatives", p.Subscription.Alternatives, []any{s, s, f}},
		{"subscription.strategy", p.Subscription.Strategy, []any{s, s, f, f, s, s, s}},
		{"subscription.script", p.Subscription.Script, []any{s, s, f, s, s}},
		{"telecom.identify", p.Telecom.Identify, []any{s, f, s}},
		{"telecom.usage", p.Telecom.Usage, []any{s, s, f, s}},
		{"telecom.competitors", p.Telecom.Competitors, []any{s, s, f}},
		{"telecom.strategy", p.Telecom.Strategy, []any{s, s, f, f, s, s, s}},
		{"telecom.script", p.Telecom.Script, []any{s, s, f, s, s}},
		{"research.company", p.Research.Company, []any{s, s, s}},
	}
	for _, t := range templates {
		if out := fmt.Sprintf(t.tmpl, t.args...); strings.Contains(out, "%!") {
			return fmt.Errorf("prompt %s does not match its arguments: %s", t.name, out[strings.Index(out, "%!"):])
		}
	}
	return nil
}

func DefaultPrompts() Prompts {
	return Prompts{
		Router: RouterPrompts{
			Classify: `Analyse this bill and determine the specialist agent category.

Bill Data: %s

Categories:
- UTILITY: Electric, gas, water, heating bills
- MEDICAL: Healthcare, dental, medical, hospital bills
- SUBSCRIPTION: Streaming services, software subscriptions, memberships
- TELECOM: Phone, internet, cable, mobile bills

Read the bill text carefully and identify key indicators such as the company name,
service type and billing categories. If unclear, pick the most likely category.

Return ONLY the category name (UTILITY, MEDICAL, SUBSCRIPTION, or TELECOM).`,
			Extract: `Extract key information from this bill:

Bill Text: %s

Format your response exactly as:
Company: [company name]
Amount: [total amount due, numerical value only]
Account: [account number if available]
Due Date: [due date if available]
Service Period: [service period if available]`,
		},
		Utility: UtilityPrompts{
			Usage: `Analyse this utility bill for negotiation opportunities:

Bill Details:
- Company: %s
- Amount: $%.2f
- Bill Text: %s

Focus on seasonal usage patterns, the bill amount compared to typical utility costs,
long-term customer loyalty indicators, payment history, service type and rate structure.

Provide key negotiation leverage points, potential savings opportunities, customer
loyalty factors, market comparison opportunities and specific angles to pursue.`,
			Competitors: `Provide competitor research for this utility bill:

Current Provider: %s
Service Type: %s
Current Amount: $%.2f

Cover typical competitor rates, common promotional offers, switching incentives,
seasonal discounts and loyalty programme alternatives. Give specific talking points
with competitor names, typical savings and rate comparison arguments.`,
			Strategy: `Create a comprehensive utility negotiation strategy.

Bill Information:
- Company: %s
- Amount: $%.2f
- Type: %s

Analysis: %s
Competitor Research: %s

Include the primary negotiation angle (loyalty, competition, hardship, rate analysis,
bundling), talking points, a realistic target savings range, fallback positions,
timing recommendations and key phrases to use.`,
			Script: `Create a complete negotiation script for this utility bill:

Company: %s
Amount: $%.2f
Strategy: %s

Use these proven script templates:
%s

Write an opening statement, two or three main arguments, specific requests, responses
to common objections and a closing with next steps. Keep it polite but firm and include
placeholders such as [years as customer] and [competitor name].`,
		},
		Medical: MedicalPrompts{
			Errors: `Analyse this medical bill for potential billing errors and discrepancies:

Bill Details:
- Provider: %s
- Amount: $%.2f
- Bill Text: %s

Common medical billing errors:
%s

Identify coding errors, duplicate or unnecessary charges, insurance processing issues
and mismatched patient or service information. Summarise findings and next steps.`,
			Hardship: `Assess financial assistance options for this medical bill:

Bill Amount: $%.2f
Provider: %s

Cover charity care programmes, income-based assistance, uninsured patient discounts,
payment plans and settlement possibilities. Explain which programmes to ask about,
typical discounts, documentation needed and the best way to request assistance.`,
			Strategy: `Create a comprehensive medical bill negotiation strategy.

Bill Information:
- Provider: %s
- Amount: $%.2f
- Errors Found: %t

Error Analysis: %s
Financial Options: %s

Choose between error-based challenges, financial hardship, uninsured discounts,
settlement offers and payment plans. Give talking points, a target outcome,
documentation to request and an escalation path. Providers prefer payment to
collections and many hospitals have charity care requirements.`,
			Script: `Create a complete medical bill negotiation script:

Provider: %s
Amount: $%.2f
Errors Found: %t
Strategy: %s

Use these proven medical negotiation approaches:
%s

Include a professional opening, a clear statement of purpose, specific requests
(error corrections, assistance, settlement or payment plan), documentation requests
such as an itemised bill, and a closing with next steps. Stay respectful and professional.`,
		},
		Subscription: SubscriptionPrompts{
			Identify: `Analyse this subscription bill to identify the service type and characteristics:

Bill Details:
- Company: %s
- Amount: $%.2f
- Bill Text: %s

Identify the service category (streaming, software, fitness, news, cloud, other),
tier, billing frequency, included features and contract terms.`,
			Usage: `Analyse the value and usage potential for this subscription:

Subscription: %s
Type: %s
Amount: $%.2f

Assess cost per month and year, feature utilisation, alternatives, seasonal usage and
value. Point out premium tiers that could be downgraded, unused features, competitor
pricing, bundle opportunities and billing frequency.`,
			Alternatives: `Research alternatives and competitive options for this subscription:

Current Service: %[1]s
Type: %[2]s
Current Cost: $%.2[3]f

For %[2]s subscriptions consider lower tiers, competitor services, bundles, annual
pricing, student/senior/military discounts, family plans and new customer promotions.
List alternative plans with prices and the talking points they support.`,
			Strategy: `Create a comprehensive subscription negotiation strategy.

Subscription Details:
- Service: %s
- Type: %s
- Amount: $%.2f
- Negotiation Potential: %.2f

Usage Analysis: %s
Alternatives: %s

Common discounts for this type: %s

Cover the primary approach (loyalty, competition, downgrade, cancellation leverage,
bundles, payment terms), specific discount requests and timing.`,
			Script: `Create a complete subscription negotiation script:

Service: %s
Type: %s
Amount: $%.2f
Strategy: %s

Use these proven subscription negotiation approaches:
%s

Include a friendly opening, the reason for calling, specific requests, leverage points,
alternatives if the first request is denied and a clear closing. Ask for the retention
department and about unadvertised promotions.`,
		},
		Telecom: TelecomPrompts{
			Identify: `Analyse this telecom bill and identify the services and plan details:

Bill Details:
- Company: %s
- Amount: $%.2f
- Bill Text: %s

Identify the primary service (mobile, internet, cable TV, landline, or bundle), plan
tier, contract status, promotional pricing and any equipment or add-on fees.`,
			Usage: `Analyse usage and actual needs for this telecom service:

Provider: %s
Service Type: %s
Amount: $%.2f

Key factors to evaluate: %s

Identify overprovisioned plans, unused features, cheaper tiers that fit the usage and
arguments for a plan change.`,
			Competitors: `Research competitor offers for this telecom service:

Current Provider: %s
Service Type: %s
Current Amount: $%.2f

List competitor plans and prices, new customer promotions, switching incentives and
retention offers commonly available from the current provider.`,
			Strategy: `Create a comprehensive telecom negotiation strategy.

Service Details:
- Provider: %s
- Type: %s
- Amount: $%.2f
- Negotiation Potential: %.2f

Usage Analysis: %s
Competitor Research: %s

Common tactics for this service: %s

Cover the primary approach, retention department tactics, promotional rate requests,
competitor price matching, plan changes and when to threaten cancellation.`,
			Script: `Create a complete telecom negotiation script:

Provider: %s
Service Type: %s
Amount: $%.2f
Strategy: %s

Use these proven telecom negotiation approaches:
%s

Include an opening with account details, requests for rate reductions or promotional
pricing, plan changes, competitor price matching, contract adjustments, leverage from
loyalty history and cancellation, and a closing with confirmation of any changes.`,
		},
		Research: ResearchPrompts{
			Company: `Research %s for bill negotiation intelligence (bill type: %s).

Previously generated strategies for this company:
%s

Summarise how flexible the company tends to be, which departments to ask for,
retention and loyalty offers, known promotions, best contact times and the
arguments most likely to work.`,
		},
	}
}
