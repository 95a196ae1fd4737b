package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/agenthands/hagglz/internal/cache"
	"github.com/agenthands/hagglz/internal/core/estimate"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/core/research"
	"github.com/agenthands/hagglz/internal/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeNegotiator struct {
	mu   sync.Mutex
	got  []model.BillRecord
	fail error
}

func (f *fakeNegotiator) Negotiate(ctx context.Context, bill model.BillRecord) model.NegotiationResult {
	f.mu.Lock()
	f.got = append(f.got, bill)
	f.mu.Unlock()
	if f.fail != nil {
		res := model.FailedResult(f.fail)
		res.NegotiationID = "failed-1"
		return res
	}
	return model.NegotiationResult{
		NegotiationID:    "neg-1",
		ProcessingStatus: model.StatusCompleted,
		BillType:         model.BillTelecom,
		ConfidenceScore:  0.76,
		ExecutionMode:    model.ModeSupervised,
		Company:          "Verizon",
		Amount:           85,
		TargetSavings:    model.Savings{Percentage: 25, SavingsAmount: 21.25, FinalAmount: 63.75, MonthlySavings: 21.25, AnnualSavings: 255},
		SavingsPotential: map[string]model.Savings{},
		ProcessingErrors: []string{},
		UserID:           bill.UserID,
	}
}

type fakeMemory struct {
	mu       sync.Mutex
	outcomes []memory.Outcome
	stats    memory.Stats
	err      error
}

func (f *fakeMemory) SaveOutcome(ctx context.Context, o memory.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return f.err
}

func (f *fakeMemory) Stats(ctx context.Context) (memory.Stats, error) {
	return f.stats, f.err
}

func (f *fakeMemory) CompanyProfile(ctx context.Context, company string) (memory.CompanyProfile, error) {
	return memory.CompanyProfile{Company: company, Outcomes: 2, AverageSavingsPercentage: 12.5}, f.err
}

type fakeResearcher struct{}

func (fakeResearcher) Company(ctx context.Context, company string, billType model.BillType) (research.Brief, error) {
	if company == "" {
		return research.Brief{}, errors.New("company name is required")
	}
	return research.Brief{Company: company, BillType: billType, Research: "ask for retention", ResearchComplete: true}, nil
}

func newTestServer(t *testing.T, n Negotiator, mem MemoryStore) (*Server, *gin.Engine) {
	t.Helper()
	results, err := cache.New(1<<20, time.Hour)
	require.NoError(t, err)
	t.Cleanup(results.Close)

	s := NewServer(n, results, mem, fakeResearcher{})
	s.async = func(f func()) { f() }
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, s.SetupRouter()
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)

	w := do(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body["timestamp"])
	components := body["components"].(map[string]any)
	assert.Equal(t, "active", components["orchestrator"])
	assert.Equal(t, "inactive", components["memory_system"])
}

func TestNegotiate_ThenStatus(t *testing.T) {
	n := &fakeNegotiator{}
	_, r := newTestServer(t, n, nil)

	w := do(r, http.MethodPost, "/api/v1/negotiate", map[string]any{
		"bill_text":      "Verizon Wireless unlimited plan",
		"user_id":        "u1",
		"company":        " Verizon ",
		"amount":         85,
		"target_savings": 20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp NegotiateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "neg-1", resp.NegotiationID)
	assert.Equal(t, 255.0, resp.EstimatedAnnualSavings)
	require.NotNil(t, resp.TargetCalculation)
	assert.Equal(t, 17.0, *resp.TargetCalculation.TargetSavingsAmount)

	require.Len(t, n.got, 1)
	assert.Equal(t, "Verizon", n.got[0].Company)
	assert.Equal(t, "u1", n.got[0].UserID)

	w = do(r, http.MethodGet, "/api/v1/negotiation/neg-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cached model.NegotiationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, "Verizon", cached.Company)
	assert.Equal(t, model.ModeSupervised, cached.ExecutionMode)
}

func TestNegotiate_BadRequests(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)

	w := do(r, http.MethodPost, "/api/v1/negotiate", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/negotiate", map[string]any{"bill_text": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNegotiate_FailedRun(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{fail: errors.New("graph exploded")}, nil)

	w := do(r, http.MethodPost, "/api/v1/negotiate", map[string]any{"bill_text": "x", "user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "graph exploded")

	// failed runs are still looked up by id
	w = do(r, http.MethodGet, "/api/v1/negotiation/failed-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetNegotiation_NotFound(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)

	w := do(r, http.MethodGet, "/api/v1/negotiation/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "nope")
}

func TestFeedback(t *testing.T) {
	mem := &fakeMemory{}
	_, r := newTestServer(t, &fakeNegotiator{}, mem)

	do(r, http.MethodPost, "/api/v1/negotiate", map[string]any{"bill_text": "x", "user_id": "u1"})

	w := do(r, http.MethodPost, "/api/v1/feedback", map[string]any{
		"negotiation_id":    "neg-1",
		"success":           true,
		"actual_savings":    20,
		"difficulty_rating": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, mem.outcomes, 1)
	o := mem.outcomes[0]
	assert.Equal(t, "Verizon", o.Company)
	assert.Equal(t, model.BillTelecom, o.BillType)
	assert.Equal(t, 85.0, o.OriginalAmount)
	assert.Equal(t, 65.0, o.FinalAmount)
	assert.Equal(t, "u1", o.UserID)

	w = do(r, http.MethodPost, "/api/v1/feedback", map[string]any{"negotiation_id": "neg-1", "success": false})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, mem.outcomes, 1)

	w = do(r, http.MethodPost, "/api/v1/feedback", map[string]any{"negotiation_id": "neg-1", "difficulty_rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedback_UnknownNegotiation(t *testing.T) {
	mem := &fakeMemory{}
	_, r := newTestServer(t, &fakeNegotiator{}, mem)

	w := do(r, http.MethodPost, "/api/v1/feedback", map[string]any{
		"negotiation_id": "gone",
		"success":        true,
		"actual_savings": 10,
		"final_amount":   90,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mem.outcomes, 1)
	assert.Equal(t, 100.0, mem.outcomes[0].OriginalAmount)
	assert.Equal(t, 90.0, mem.outcomes[0].FinalAmount)
}

func TestStats(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/stats", nil).Code)

	_, r = newTestServer(t, &fakeNegotiator{}, &fakeMemory{stats: memory.Stats{Strategies: 4, Outcomes: 1, Companies: 2}})
	w := do(r, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"strategies":4`)

	_, r = newTestServer(t, &fakeNegotiator{}, &fakeMemory{err: errors.New("down")})
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/api/v1/stats", nil).Code)
}

func TestResearchCompany(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, &fakeMemory{})

	w := do(r, http.MethodGet, "/api/v1/research/Comcast?bill_type=telecom", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Company  string                `json:"company"`
		Research research.Brief        `json:"research"`
		Profile  memory.CompanyProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Comcast", body.Company)
	assert.Equal(t, model.BillTelecom, body.Research.BillType)
	assert.Equal(t, 12.5, body.Profile.AverageSavingsPercentage)

	w = do(r, http.MethodGet, "/api/v1/research/Comcast?bill_type=rent", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateSavings(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)

	w := do(r, http.MethodPost, "/api/v1/calculate-savings", map[string]any{"original_amount": 100, "negotiated_amount": 80})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Calculations estimate.Calculation `json:"calculations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 20.0, *body.Calculations.SavingsAmount)
	assert.Equal(t, 90.0, body.Calculations.Scenarios[model.Conservative].FinalAmount)

	w = do(r, http.MethodPost, "/api/v1/calculate-savings", map[string]any{"original_amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuccessProbability(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)

	w := do(r, http.MethodPost, "/api/v1/success-probability", map[string]any{"bill_type": "MEDICAL", "amount": 2000})
	require.Equal(t, http.StatusOK, w.Code)

	var p estimate.Probability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.InDelta(t, 0.85, p.FinalProbability, 1e-9)
	assert.Equal(t, "high", p.ConfidenceLevel)
}

func TestNoRoute(t *testing.T) {
	_, r := newTestServer(t, &fakeNegotiator{}, nil)
	w := do(r, http.MethodGet, "/api/v2/whatever", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Endpoint not found")
}
