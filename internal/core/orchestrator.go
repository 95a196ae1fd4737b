// Package core wires the router, the specialist agents and the
// confidence-gated execution modes into one negotiation workflow.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/core/specialist"
	"github.com/agenthands/hagglz/internal/workflow"
	"github.com/google/uuid"
)

var (
	ErrUnknownBillType = errors.New("no specialist for bill type")
	ErrMissingOCRText  = errors.New("bill has no ocr text")
)

// BillRouter classifies bill text and extracts its company and amount.
type BillRouter interface {
	Process(ctx context.Context, ocrText string) (model.BillState, error)
}

// Recorder receives every completed result. Recorders run after Negotiate
// returns and their errors are only logged.
type Recorder interface {
	Record(ctx context.Context, result model.NegotiationResult) error
}

type IDGenerator func() string

// Thresholds are the lower bounds of the auto and supervised bands.
type Thresholds struct {
	Auto       float64
	Supervised float64
}

var DefaultThresholds = Thresholds{Auto: 0.8, Supervised: 0.5}

// SelectMode maps a confidence score to exactly one execution mode. Each
// band includes its lower bound.
func SelectMode(score float64, t Thresholds) model.ExecutionMode {
	switch {
	case score >= t.Auto:
		return model.ModeAutoExecute
	case score >= t.Supervised:
		return model.ModeSupervised
	default:
		return model.ModeHumanHandoff
	}
}

// negotiation is the orchestrator graph state.
type negotiation struct {
	bill   model.BillRecord
	state  model.BillState
	errors []string
	mode   model.ExecutionMode
	instr  model.ExecutionInstructions
	result model.NegotiationResult
}

func (n *negotiation) fail(err error) {
	n.errors = append(n.errors, err.Error())
}

type Orchestrator struct {
	router     BillRouter
	agents     map[model.BillType]specialist.Agent
	thresholds Thresholds
	recorders  []Recorder
	newID      IDGenerator
	now        func() time.Time
	graph      *workflow.Graph[negotiation]
}

type Option func(*Orchestrator)

func WithThresholds(t Thresholds) Option {
	return func(o *Orchestrator) { o.thresholds = t }
}

func WithRecorders(r ...Recorder) Option {
	return func(o *Orchestrator) { o.recorders = append(o.recorders, r...) }
}

func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator compiles the negotiation graph. Agents are keyed by the
// bill type they report; a bill type without an agent hands off to a human.
func NewOrchestrator(router BillRouter, agents []specialist.Agent, opts ...Option) (*Orchestrator, error) {
	if router == nil {
		return nil, errors.New("orchestrator: router is nil")
	}
	o := &Orchestrator{
		router:     router,
		agents:     make(map[model.BillType]specialist.Agent, len(agents)),
		thresholds: DefaultThresholds,
		newID:      func() string { return uuid.New().String() },
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, a := range agents {
		if a == nil {
			continue
		}
		o.agents[a.BillType()] = a
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.thresholds.Supervised > o.thresholds.Auto {
		return nil, fmt.Errorf("orchestrator: supervised threshold %v exceeds auto threshold %v", o.thresholds.Supervised, o.thresholds.Auto)
	}

	g, err := workflow.NewBuilder[negotiation]().
		AddNode("route", o.route).
		AddNode("execute_specialist", o.executeSpecialist).
		AddNode("evaluate_confidence", o.evaluateConfidence).
		AddNode(string(model.ModeAutoExecute), o.autoExecute).
		AddNode(string(model.ModeSupervised), o.supervised).
		AddNode(string(model.ModeHumanHandoff), o.humanHandoff).
		AddNode("finalize", o.finalize).
		AddEdge("route", "execute_specialist").
		AddEdge("execute_specialist", "evaluate_confidence").
		AddConditionalEdges("evaluate_confidence", func(n *negotiation) string { return string(n.mode) }, map[string]string{
			string(model.ModeAutoExecute):  string(model.ModeAutoExecute),
			string(model.ModeSupervised):   string(model.ModeSupervised),
			string(model.ModeHumanHandoff): string(model.ModeHumanHandoff),
		}).
		AddEdge(string(model.ModeAutoExecute), "finalize").
		AddEdge(string(model.ModeSupervised), "finalize").
		AddEdge(string(model.ModeHumanHandoff), "finalize").
		AddEdge("finalize", workflow.End).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.graph = g
	return o, nil
}

// Negotiate runs one bill through the whole workflow. Stage failures are
// reported in ProcessingErrors; only a broken run yields a failed result.
func (o *Orchestrator) Negotiate(ctx context.Context, bill model.BillRecord) model.NegotiationResult {
	n := &negotiation{bill: bill}
	path, err := o.graph.Run(ctx, n)
	if err != nil {
		slog.Error("negotiation run failed", "path", strings.Join(path, ","), "error", err)
		res := model.FailedResult(err)
		res.NegotiationID = o.newID()
		res.UserID = bill.UserID
		return res
	}
	slog.Info("negotiation completed",
		"negotiation_id", n.result.NegotiationID,
		"bill_type", n.result.BillType,
		"confidence", n.result.ConfidenceScore,
		"mode", n.result.ExecutionMode,
		"errors", len(n.result.ProcessingErrors),
	)
	o.record(ctx, n.result)
	return n.result
}

func (o *Orchestrator) record(ctx context.Context, res model.NegotiationResult) {
	if len(o.recorders) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	for _, r := range o.recorders {
		go func(r Recorder) {
			if err := r.Record(bg, res); err != nil {
				slog.Warn("recording negotiation failed", "negotiation_id", res.NegotiationID, "error", err)
			}
		}(r)
	}
}

func (o *Orchestrator) route(ctx context.Context, n *negotiation) {
	n.state = model.NewBillState(n.bill)
	if strings.TrimSpace(n.bill.OCRText) == "" {
		n.fail(fmt.Errorf("routing failed: %w", ErrMissingOCRText))
		n.state.BillType = model.BillUtility
		return
	}

	routed, err := o.router.Process(ctx, n.bill.OCRText)
	n.errors = append(n.errors, routed.Errors...)
	if err != nil {
		n.fail(fmt.Errorf("routing failed: %w", err))
		n.state.BillType = model.BillUtility
		return
	}

	n.state.BillType = routed.BillType
	if !routed.BillType.Valid() {
		n.state.BillType = model.BillUtility
	}
	// Values supplied with the bill win over a failed extraction.
	if routed.Company != "" && routed.Company != model.UnknownCompany {
		n.state.Company = routed.Company
	}
	if routed.Amount > 0 {
		n.state.Amount = routed.Amount
	}
}

func (o *Orchestrator) executeSpecialist(ctx context.Context, n *negotiation) {
	bt := n.state.BillType
	agent, ok := o.agents[bt]
	if !ok {
		n.fail(fmt.Errorf("dispatch failed: %w: %s", ErrUnknownBillType, bt))
		n.state = stub(n.state)
		return
	}

	sub := model.NewBillState(model.BillRecord{
		OCRText:  n.state.OCRText,
		Company:  n.state.Company,
		Amount:   n.state.Amount,
		BillType: bt,
	})
	sub.ConversationHistory = n.state.ConversationHistory

	err := agent.Run(ctx, &sub)
	n.errors = append(n.errors, sub.Errors...)
	if err != nil {
		n.fail(fmt.Errorf("%s specialist failed: %w", bt.Lower(), err))
		n.state = stub(n.state)
		return
	}
	n.state = sub
}

// stub is the result of a specialist that could not run.
func stub(s model.BillState) model.BillState {
	out := model.NewBillState(model.BillRecord{
		OCRText:  s.OCRText,
		Company:  s.Company,
		Amount:   s.Amount,
		BillType: s.BillType,
	})
	out.ConfidenceScore = 0
	return out
}

func (o *Orchestrator) evaluateConfidence(ctx context.Context, n *negotiation) {
	n.mode = SelectMode(n.state.ConfidenceScore, o.thresholds)
	slog.Info("execution mode selected", "confidence", n.state.ConfidenceScore, "mode", n.mode)
}

func (o *Orchestrator) autoExecute(ctx context.Context, n *negotiation) {
	target := n.state.TargetSavings
	n.instr = model.ExecutionInstructions{
		Mode:          model.ModeAutoExecute,
		Confidence:    n.state.ConfidenceScore,
		Strategy:      n.state.NegotiationStrategy,
		Script:        n.state.Script,
		TargetSavings: &target,
		NextSteps: []string{
			"Execute negotiation script automatically",
			"Monitor conversation progress",
			"Apply fallback strategies if needed",
			"Report results to user",
		},
	}
}

func (o *Orchestrator) supervised(ctx context.Context, n *negotiation) {
	target := n.state.TargetSavings
	n.instr = model.ExecutionInstructions{
		Mode:          model.ModeSupervised,
		Confidence:    n.state.ConfidenceScore,
		Strategy:      n.state.NegotiationStrategy,
		Script:        n.state.Script,
		TargetSavings: &target,
		SupervisionRequired: []string{
			"Review negotiation strategy before execution",
			"Monitor conversation in real-time",
			"Approve key negotiation points",
			"Intervene if conversation goes off-track",
		},
		NextSteps: []string{
			"Present strategy for human review",
			"Execute with human oversight",
			"Confirm key decisions during negotiation",
			"Report results to user",
		},
	}
}

func (o *Orchestrator) humanHandoff(ctx context.Context, n *negotiation) {
	n.instr = model.ExecutionInstructions{
		Mode:       model.ModeHumanHandoff,
		Confidence: n.state.ConfidenceScore,
		Reason:     "Low confidence score requires human intervention",
		AvailableAnalysis: &model.Analysis{
			Strategy:         n.state.NegotiationStrategy,
			Script:           n.state.Script,
			PotentialSavings: n.state.TargetSavings,
		},
		Recommendations: []string{
			"Review AI-generated strategy and script",
			"Conduct manual analysis of bill details",
			"Research additional negotiation angles",
			"Execute negotiation with human expertise",
			"Use AI analysis as supporting information",
		},
		NextSteps: []string{
			"Human review of all analysis",
			"Manual negotiation execution",
			"Optional use of AI-generated talking points",
			"Human-driven strategy adjustments",
		},
	}
}

func (o *Orchestrator) finalize(ctx context.Context, n *negotiation) {
	s := n.state
	res := model.NegotiationResult{
		NegotiationID:         o.newID(),
		ProcessingStatus:      model.StatusCompleted,
		BillType:              s.BillType,
		ConfidenceScore:       s.ConfidenceScore,
		ExecutionMode:         n.mode,
		Company:               s.Company,
		Amount:                s.Amount,
		NegotiationStrategy:   s.NegotiationStrategy,
		NegotiationScript:     s.Script,
		TargetSavings:         s.TargetSavings,
		SavingsPotential:      s.SavingsPotential,
		ExecutionInstructions: n.instr,
		ProcessingErrors:      n.errors,
		UserID:                n.bill.UserID,
		CreatedAt:             o.now(),
	}
	if !res.BillType.Valid() {
		res.BillType = model.BillUtility
	}
	if res.Company == "" {
		res.Company = model.UnknownCompany
	}
	if res.Amount < 0 {
		res.Amount = 0
	}
	if res.ExecutionMode == "" {
		res.ExecutionMode = SelectMode(res.ConfidenceScore, o.thresholds)
	}
	if res.ExecutionInstructions.Mode == "" {
		res.ExecutionInstructions.Mode = res.ExecutionMode
		res.ExecutionInstructions.Confidence = res.ConfidenceScore
	}
	if res.SavingsPotential == nil {
		res.SavingsPotential = map[string]model.Savings{}
	}
	if res.ProcessingErrors == nil {
		res.ProcessingErrors = []string{}
	}
	n.result = res
}
