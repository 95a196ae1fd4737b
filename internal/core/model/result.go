package model

import "time"

type ExecutionMode string

const (
	ModeAutoExecute  ExecutionMode = "auto_execute"
	ModeSupervised   ExecutionMode = "supervised"
	ModeHumanHandoff ExecutionMode = "human_handoff"
	ModeError        ExecutionMode = "error"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ExecutionInstructions is the mode-specific guidance attached to a result.
// Only the fields relevant to the chosen mode are set.
type ExecutionInstructions struct {
	Mode                ExecutionMode `json:"mode"`
	Confidence          float64       `json:"confidence"`
	Strategy            string        `json:"strategy,omitempty"`
	Script              string        `json:"script,omitempty"`
	TargetSavings       *Savings      `json:"target_savings,omitempty"`
	NextSteps           []string      `json:"next_steps,omitempty"`
	SupervisionRequired []string      `json:"supervision_required,omitempty"`
	Reason              string        `json:"reason,omitempty"`
	Recommendations     []string      `json:"recommendations,omitempty"`
	AvailableAnalysis   *Analysis     `json:"available_analysis,omitempty"`
}

// Analysis is the generated material handed to a human negotiator.
type Analysis struct {
	Strategy         string  `json:"strategy"`
	Script           string  `json:"script"`
	PotentialSavings Savings `json:"potential_savings"`
}

type NegotiationResult struct {
	NegotiationID         string                `json:"negotiation_id"`
	ProcessingStatus      string                `json:"processing_status"`
	BillType              BillType              `json:"bill_type"`
	ConfidenceScore       float64               `json:"confidence_score"`
	ExecutionMode         ExecutionMode         `json:"execution_mode"`
	Company               string                `json:"company"`
	Amount                float64               `json:"amount"`
	NegotiationStrategy   string                `json:"negotiation_strategy"`
	NegotiationScript     string                `json:"negotiation_script"`
	TargetSavings         Savings               `json:"target_savings"`
	SavingsPotential      map[string]Savings    `json:"savings_potential"`
	ExecutionInstructions ExecutionInstructions `json:"execution_instructions"`
	ProcessingErrors      []string              `json:"processing_errors"`
	Error                 string                `json:"error,omitempty"`
	UserID                string                `json:"user_id,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
}

// FailedResult is the degenerate result for a run that could not complete.
func FailedResult(err error) NegotiationResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return NegotiationResult{
		ProcessingStatus: StatusFailed,
		BillType:         BillUnknown,
		ConfidenceScore:  0,
		ExecutionMode:    ModeError,
		Company:          UnknownCompany,
		SavingsPotential: map[string]Savings{},
		ExecutionInstructions: ExecutionInstructions{
			Mode: ModeError,
		},
		ProcessingErrors: []string{msg},
		Error:            msg,
		CreatedAt:        time.Now().UTC(),
	}
}

// Failed reports whether the run aborted instead of completing degraded.
func (r NegotiationResult) Failed() bool { return r.ProcessingStatus == StatusFailed }
