package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/core/specialist"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	state model.BillState
	err   error
	panic bool
}

func (f *fakeRouter) Process(ctx context.Context, ocrText string) (model.BillState, error) {
	if f.panic {
		panic("router exploded")
	}
	s := f.state
	s.OCRText = ocrText
	return s, f.err
}

type fakeAgent struct {
	billType   model.BillType
	confidence float64
	err        error
	errors     []string
}

func (f *fakeAgent) BillType() model.BillType { return f.billType }

func (f *fakeAgent) Run(ctx context.Context, s *model.BillState) error {
	s.EstablishConfidence(f.confidence, 0.95)
	s.NegotiationStrategy = "strategy"
	s.Script = "script"
	s.Errors = append(s.Errors, f.errors...)
	return f.err
}

type chanRecorder chan model.NegotiationResult

func (c chanRecorder) Record(ctx context.Context, r model.NegotiationResult) error {
	c <- r
	return nil
}

func routed(bt model.BillType, company string, amount float64) *fakeRouter {
	s := model.NewBillState(model.BillRecord{Company: company, Amount: amount})
	s.BillType = bt
	return &fakeRouter{state: s}
}

func TestSelectMode(t *testing.T) {
	cases := []struct {
		score float64
		want  model.ExecutionMode
	}{
		{1.0, model.ModeAutoExecute},
		{0.95, model.ModeAutoExecute},
		{0.8, model.ModeAutoExecute},
		{0.7999, model.ModeSupervised},
		{0.5, model.ModeSupervised},
		{0.4999, model.ModeHumanHandoff},
		{0.0, model.ModeHumanHandoff},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SelectMode(tc.score, DefaultThresholds), "score %v", tc.score)
	}
}

func TestNegotiate_ModeByConfidence(t *testing.T) {
	for _, tc := range []struct {
		confidence float64
		mode       model.ExecutionMode
	}{
		{0.8, model.ModeAutoExecute},
		{0.5, model.ModeSupervised},
		{0.4999, model.ModeHumanHandoff},
	} {
		o, err := NewOrchestrator(routed(model.BillUtility, "City Power", 100),
			[]specialist.Agent{&fakeAgent{billType: model.BillUtility, confidence: tc.confidence}},
			WithIDGenerator(func() string { return "neg-1" }))
		require.NoError(t, err)

		res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "ELECTRIC BILL"})

		assert.Equal(t, tc.mode, res.ExecutionMode)
		assert.Equal(t, tc.mode, res.ExecutionInstructions.Mode)
		assert.Equal(t, model.StatusCompleted, res.ProcessingStatus)
		assert.Equal(t, "neg-1", res.NegotiationID)
		assert.Equal(t, "City Power", res.Company)
		assert.Equal(t, 100.0, res.Amount)
		assert.NotNil(t, res.ProcessingErrors)
	}
}

func TestNegotiate_InstructionsPerMode(t *testing.T) {
	build := func(c float64) model.ExecutionInstructions {
		o, err := NewOrchestrator(routed(model.BillTelecom, "Verizon", 85),
			[]specialist.Agent{&fakeAgent{billType: model.BillTelecom, confidence: c}})
		require.NoError(t, err)
		return o.Negotiate(context.Background(), model.BillRecord{OCRText: "x"}).ExecutionInstructions
	}

	auto := build(0.9)
	assert.Len(t, auto.NextSteps, 4)
	assert.Empty(t, auto.SupervisionRequired)
	assert.NotNil(t, auto.TargetSavings)

	sup := build(0.6)
	assert.Len(t, sup.SupervisionRequired, 4)
	assert.Len(t, sup.NextSteps, 4)

	handoff := build(0.2)
	assert.NotEmpty(t, handoff.Reason)
	assert.Len(t, handoff.Recommendations, 5)
	require.NotNil(t, handoff.AvailableAnalysis)
	assert.Equal(t, "strategy", handoff.AvailableAnalysis.Strategy)
}

func TestNegotiate_DispatchMiss(t *testing.T) {
	o, err := NewOrchestrator(routed(model.BillMedical, "Hospital", 2450),
		[]specialist.Agent{&fakeAgent{billType: model.BillUtility, confidence: 0.9}})
	require.NoError(t, err)

	res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "HOSPITAL BILL"})

	assert.Equal(t, model.BillMedical, res.BillType)
	assert.Equal(t, 0.0, res.ConfidenceScore)
	assert.Equal(t, model.ModeHumanHandoff, res.ExecutionMode)
	assert.Empty(t, res.NegotiationStrategy)
	assert.Empty(t, res.NegotiationScript)
	require.Len(t, res.ProcessingErrors, 1)
	assert.Contains(t, res.ProcessingErrors[0], ErrUnknownBillType.Error())
}

func TestNegotiate_SpecialistErrorForcesZeroConfidence(t *testing.T) {
	agent := &fakeAgent{billType: model.BillUtility, confidence: 0.9, err: errors.New("graph broke"), errors: []string{"stage failed"}}
	o, err := NewOrchestrator(routed(model.BillUtility, "City Power", 100), []specialist.Agent{agent})
	require.NoError(t, err)

	res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "x"})

	assert.Equal(t, 0.0, res.ConfidenceScore)
	assert.Equal(t, model.ModeHumanHandoff, res.ExecutionMode)
	assert.Equal(t, "stage failed", res.ProcessingErrors[0])
	assert.Contains(t, res.ProcessingErrors[1], "graph broke")
}

func TestNegotiate_RouterErrorDefaultsToUtility(t *testing.T) {
	r := &fakeRouter{err: errors.New("router down")}
	o, err := NewOrchestrator(r, []specialist.Agent{&fakeAgent{billType: model.BillUtility, confidence: 0.6}})
	require.NoError(t, err)

	res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "x", Company: "Known Co", Amount: 42})

	assert.Equal(t, model.BillUtility, res.BillType)
	assert.Equal(t, "Known Co", res.Company)
	assert.Equal(t, 42.0, res.Amount)
	assert.Equal(t, model.ModeSupervised, res.ExecutionMode)
	assert.Contains(t, res.ProcessingErrors[0], "router down")
}

func TestNegotiate_MissingOCRText(t *testing.T) {
	o, err := NewOrchestrator(routed(model.BillTelecom, "", 0),
		[]specialist.Agent{&fakeAgent{billType: model.BillUtility, confidence: 0.3}})
	require.NoError(t, err)

	res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "  "})

	assert.Equal(t, model.BillUtility, res.BillType)
	assert.Equal(t, model.UnknownCompany, res.Company)
	assert.Equal(t, model.ModeHumanHandoff, res.ExecutionMode)
	assert.Contains(t, res.ProcessingErrors[0], ErrMissingOCRText.Error())
}

func TestNegotiate_RunErrorYieldsFailedResult(t *testing.T) {
	o, err := NewOrchestrator(&fakeRouter{panic: true}, nil)
	require.NoError(t, err)

	res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "x", UserID: "u1"})

	assert.Equal(t, model.StatusFailed, res.ProcessingStatus)
	assert.Equal(t, model.ModeError, res.ExecutionMode)
	assert.Equal(t, 0.0, res.ConfidenceScore)
	assert.Contains(t, res.Error, "router exploded")
	assert.NotEmpty(t, res.NegotiationID)
	assert.Equal(t, "u1", res.UserID)
}

func TestNegotiate_Recorders(t *testing.T) {
	rec := make(chanRecorder, 1)
	o, err := NewOrchestrator(routed(model.BillUtility, "City Power", 100),
		[]specialist.Agent{&fakeAgent{billType: model.BillUtility, confidence: 0.7}},
		WithRecorders(rec))
	require.NoError(t, err)

	res := o.Negotiate(context.Background(), model.BillRecord{OCRText: "x"})

	select {
	case got := <-rec:
		assert.Equal(t, res.NegotiationID, got.NegotiationID)
	case <-time.After(2 * time.Second):
		t.Fatal("recorder was not called")
	}
}

func TestNewOrchestrator_Errors(t *testing.T) {
	_, err := NewOrchestrator(nil, nil)
	assert.Error(t, err)

	_, err = NewOrchestrator(&fakeRouter{}, nil, WithThresholds(Thresholds{Auto: 0.4, Supervised: 0.6}))
	assert.Error(t, err)
}

// billLLM answers router prompts from the bill text and everything else
// with neutral analysis.
type billLLM struct {
	fail bool
}

func (b *billLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if b.fail {
		return "", errors.New("llm unavailable")
	}
	switch {
	case strings.Contains(prompt, "Return ONLY the category name"):
		for marker, label := range map[string]string{
			"ELECTRIC BILL": "UTILITY",
			"HOSPITAL BILL": "MEDICAL",
			"NETFLIX":       "SUBSCRIPTION",
			"VERIZON":       "TELECOM",
		} {
			if strings.Contains(prompt, marker) {
				return label, nil
			}
		}
		return "UNSURE", nil
	case strings.Contains(prompt, "Extract key information"):
		for marker, line := range map[string]string{
			"ELECTRIC BILL": "Company: City Power\nAmount: $124.58",
			"HOSPITAL BILL": "Company: City Medical Center\nAmount: $2,450.00",
			"NETFLIX":       "Company: Netflix\nAmount: 19.99",
			"VERIZON":       "Company: Verizon Wireless\nAmount: 85.00",
		} {
			if strings.Contains(prompt, marker) {
				return line, nil
			}
		}
		return "nothing", nil
	}
	return "Review the account details and ask about available options.", nil
}

func newSystem(t *testing.T, client llm.LLMClient) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	clients := &Clients{
		Router: client, Utility: client, Medical: client,
		Subscription: client, Telecom: client, Research: client,
	}
	o, err := Build(cfg, clients)
	require.NoError(t, err)
	return o
}

func TestNegotiate_EndToEnd(t *testing.T) {
	o := newSystem(t, &billLLM{})

	for _, tc := range []struct {
		text   string
		amount float64
		want   model.BillType
	}{
		{"ELECTRIC BILL\nCITY POWER\nAmount Due: $124.58", 124.58, model.BillUtility},
		{"HOSPITAL BILL\nCITY MEDICAL CENTER\nEmergency Room Visit\nAmount Due: $2,450.00", 2450, model.BillMedical},
		{"NETFLIX PREMIUM\nMonthly Subscription\nAmount: $19.99", 19.99, model.BillSubscription},
		{"VERIZON WIRELESS\nMonthly Statement\nAmount Due: $85.00", 85, model.BillTelecom},
	} {
		res := o.Negotiate(context.Background(), model.BillRecord{OCRText: tc.text})

		assert.Equal(t, tc.want, res.BillType, tc.text)
		assert.Equal(t, tc.amount, res.Amount, tc.text)
		assert.Equal(t, model.StatusCompleted, res.ProcessingStatus)
		assert.Empty(t, res.ProcessingErrors, tc.text)
		assert.GreaterOrEqual(t, res.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, res.ConfidenceScore, 0.95)

		conservative := res.SavingsPotential[model.Conservative]
		assert.Less(t, conservative.FinalAmount, tc.amount, tc.text)
		assert.Greater(t, conservative.FinalAmount, 0.0, tc.text)
		assert.Contains(t, []model.Savings{
			res.SavingsPotential[model.Conservative],
			res.SavingsPotential[model.Moderate],
			res.SavingsPotential[model.Aggressive],
		}, res.TargetSavings)
	}
}

func TestNegotiate_AllLLMCallsFail(t *testing.T) {
	o := newSystem(t, &billLLM{fail: true})

	for _, text := range []string{"ELECTRIC BILL", "HOSPITAL BILL", "NETFLIX", "VERIZON WIRELESS"} {
		res := o.Negotiate(context.Background(), model.BillRecord{OCRText: text, Amount: 50})

		assert.Equal(t, model.StatusCompleted, res.ProcessingStatus, text)
		assert.Equal(t, model.ModeHumanHandoff, res.ExecutionMode, text)
		assert.NotEmpty(t, res.ProcessingErrors, text)
		assert.Less(t, res.ConfidenceScore, 0.5, text)
	}
}

func TestNegotiate_Concurrent(t *testing.T) {
	o := newSystem(t, &billLLM{})
	done := make(chan model.NegotiationResult, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			done <- o.Negotiate(context.Background(), model.BillRecord{OCRText: fmt.Sprintf("NETFLIX %d", i)})
		}(i)
	}
	for i := 0; i < 8; i++ {
		res := <-done
		assert.Equal(t, model.BillSubscription, res.BillType)
	}
}
