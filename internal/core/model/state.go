package model

// Sentinel texts written by stages whose LLM call failed.
const (
	AnalysisUnavailable    = "Analysis unavailable"
	StrategyFailed         = "Strategy generation failed"
	ScriptFailed           = "Script generation failed"
	UnknownCompany         = "Unknown"
	CompetitorUnavailable  = "Competitor research unavailable"
	AlternativeUnavailable = "Alternatives research unavailable"
	FinancialUnavailable   = "Financial assistance research unavailable"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Savings is one negotiation outcome scenario. Percentage is in percent
// units. MonthlySavings and AnnualSavings are set for recurring bills only.
type Savings struct {
	Percentage     float64 `json:"percentage"`
	SavingsAmount  float64 `json:"savings_amount"`
	FinalAmount    float64 `json:"final_amount"`
	MonthlySavings float64 `json:"monthly_savings,omitempty"`
	AnnualSavings  float64 `json:"annual_savings,omitempty"`
}

// Scenario names for SavingsPotential.
const (
	Conservative = "conservative"
	Moderate     = "moderate"
	Aggressive   = "aggressive"
)

// TypeInfo describes the sub-type a specialist identified, such as a
// streaming subscription or a mobile plan.
type TypeInfo struct {
	NegotiationPotential float64  `json:"negotiation_potential"`
	TypicalSavings       float64  `json:"typical_savings"`
	Levers               []string `json:"levers,omitempty"`
	KeyFactors           []string `json:"key_factors,omitempty"`
}

// BillState is threaded through the router and every specialist graph.
type BillState struct {
	BillType BillType
	OCRText  string
	Company  string
	Amount   float64

	UsageAnalysis        string
	CompetitorResearch   string
	ErrorAnalysis        string
	FinancialAssistance  string
	SubscriptionAnalysis string
	ServiceAnalysis      string
	AlternativesResearch string

	SubType   string
	TypeInfo  TypeInfo
	HasErrors bool

	NegotiationStrategy string
	Script              string
	ConfidenceScore     float64
	SavingsPotential    map[string]Savings
	TargetSavings       Savings

	ConversationHistory []Turn
	Errors              []string

	confidenceSet bool
}

func NewBillState(bill BillRecord) BillState {
	bt := bill.BillType
	if bt == "" {
		bt = BillUnknown
	}
	return BillState{
		BillType:         bt,
		OCRText:          bill.OCRText,
		Company:          bill.Company,
		Amount:           bill.Amount,
		SavingsPotential: map[string]Savings{},
	}
}

// EstablishConfidence sets the base score of a run. The first call wins;
// later calls can only raise the score.
func (s *BillState) EstablishConfidence(v, ceiling float64) {
	if !s.confidenceSet {
		s.confidenceSet = true
		s.ConfidenceScore = clamp(v, ceiling)
		return
	}
	s.RaiseConfidence(v-s.ConfidenceScore, ceiling)
}

// RaiseConfidence adds a bonus. Negative deltas are ignored and the result
// never exceeds ceiling.
func (s *BillState) RaiseConfidence(delta, ceiling float64) {
	s.confidenceSet = true
	if delta <= 0 {
		return
	}
	next := clamp(s.ConfidenceScore+delta, ceiling)
	if next > s.ConfidenceScore {
		s.ConfidenceScore = next
	}
}

func (s *BillState) ConfidenceEstablished() bool { return s.confidenceSet }

func (s *BillState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func clamp(v, ceiling float64) float64 {
	if v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
