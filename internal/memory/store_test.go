package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/driver"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed() model.NegotiationResult {
	return model.NegotiationResult{
		NegotiationID:       "neg-1",
		ProcessingStatus:    model.StatusCompleted,
		BillType:            model.BillTelecom,
		ConfidenceScore:     0.76,
		ExecutionMode:       model.ModeSupervised,
		Company:             "Verizon",
		Amount:              85,
		NegotiationStrategy: "Ask retention for a promotional rate.",
		NegotiationScript:   "Hi...",
		TargetSavings:       model.Savings{Percentage: 25, SavingsAmount: 21.25, FinalAmount: 63.75},
		CreatedAt:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSaveStrategy(t *testing.T) {
	d := &MockDriver{}
	s := NewStore(d, &MockEmbedder{Vector: []float32{0.1, 0.2}})

	require.NoError(t, s.SaveStrategy(context.Background(), completed()))

	assert.Equal(t, driver.SaveStrategyQuery, d.QueryExecuted)
	assert.Equal(t, "neg-1", d.QueryParams["uuid"])
	assert.Equal(t, "TELECOM", d.QueryParams["bill_type"])
	assert.Equal(t, 25.0, d.QueryParams["target_percentage"])
	assert.Equal(t, []float32{0.1, 0.2}, d.QueryParams["embedding"])
}

func TestSaveStrategy_EmbedderFailureStillSaves(t *testing.T) {
	d := &MockDriver{}
	s := NewStore(d, &MockEmbedder{Err: errors.New("no embeddings")})

	require.NoError(t, s.SaveStrategy(context.Background(), completed()))
	assert.Nil(t, d.QueryParams["embedding"])
}

func TestSaveStrategy_SkipsFailedRuns(t *testing.T) {
	d := &MockDriver{}
	s := NewStore(d, nil)

	require.NoError(t, s.Record(context.Background(), model.FailedResult(errors.New("boom"))))
	res := completed()
	res.NegotiationStrategy = ""
	require.NoError(t, s.Record(context.Background(), res))

	assert.Zero(t, d.Calls)
}

func TestSaveStrategy_DriverError(t *testing.T) {
	s := NewStore(&MockDriver{Err: errors.New("db down")}, nil)

	err := s.SaveStrategy(context.Background(), completed())
	assert.ErrorContains(t, err, "db down")
}

func TestSaveOutcome(t *testing.T) {
	d := &MockDriver{}
	s := NewStore(d, nil)

	err := s.SaveOutcome(context.Background(), Outcome{
		NegotiationID:  "neg-1",
		BillType:       model.BillUtility,
		Company:        "City Power",
		OriginalAmount: 200,
		FinalAmount:    170,
		Success:        true,
	})

	require.NoError(t, err)
	assert.Equal(t, driver.SaveOutcomeQuery, d.QueryExecuted)
	assert.Equal(t, 30.0, d.QueryParams["savings_amount"])
	assert.Equal(t, 15.0, d.QueryParams["savings_percentage"])

	assert.Error(t, s.SaveOutcome(context.Background(), Outcome{}))
}

func TestOutcome_SavingsPercentageZeroAmount(t *testing.T) {
	assert.Equal(t, 0.0, Outcome{}.SavingsPercentage())
}

func strategyKeys() []string {
	return []string{"uuid", "bill_type", "company", "amount", "confidence", "execution_mode",
		"strategy", "target_percentage", "created_at", "embedding"}
}

func TestSimilarStrategies_RanksByEmbedding(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record(strategyKeys(), "a", "TELECOM", "Verizon", 85.0, 0.7, "supervised", "recent, unrelated", 25.0, older.Add(time.Hour), []interface{}{0.0, 1.0}),
		record(strategyKeys(), "b", "TELECOM", "AT&T", 90.0, 0.8, "auto_execute", "older, relevant", 30.0, older, []interface{}{1.0, 0.0}),
		record(strategyKeys(), "c", "TELECOM", "Comcast", 120.0, 0.6, "supervised", "no embedding", 20.0, older, nil),
	}}}
	s := NewStore(d, &MockEmbedder{Vector: []float32{1, 0}})

	got, err := s.SimilarStrategies(context.Background(), "retention offer", model.BillTelecom, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "TELECOM", d.QueryParams["bill_type"])
	assert.Equal(t, model.BillTelecom, got[0].BillType)
	assert.Equal(t, older, got[0].CreatedAt)
}

func TestSimilarStrategies_RecencyWithoutEmbedder(t *testing.T) {
	d := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record(strategyKeys(), "newest", "UTILITY", "PG&E", 100.0, 0.5, "supervised", "s1", 5.0, nil, nil),
		record(strategyKeys(), "older", "UTILITY", "PG&E", 100.0, 0.5, "supervised", "s2", 5.0, nil, nil),
	}}}
	s := NewStore(d, nil)

	got, err := s.SimilarStrategies(context.Background(), "anything", "", 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "older"}, []string{got[0].ID, got[1].ID})
	assert.Equal(t, "", d.QueryParams["bill_type"])
}

func TestSimilarStrategies_ZeroK(t *testing.T) {
	d := &MockDriver{}
	got, err := NewStore(d, nil).SimilarStrategies(context.Background(), "q", "", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, d.Calls)
}

func TestCompanyProfile(t *testing.T) {
	d := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record([]string{"strategies", "outcomes", "avg_savings_percentage", "avg_final_amount"}, int64(4), int64(2), 17.25, 81.333),
	}}}

	p, err := NewStore(d, nil).CompanyProfile(context.Background(), "Verizon")

	require.NoError(t, err)
	assert.Equal(t, CompanyProfile{
		Company:                  "Verizon",
		Strategies:               4,
		Outcomes:                 2,
		AverageSavingsPercentage: 17.3,
		AverageFinalAmount:       81.33,
	}, p)
}

func TestCompanyProfile_NoOutcomes(t *testing.T) {
	d := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record([]string{"strategies", "outcomes", "avg_savings_percentage", "avg_final_amount"}, int64(1), int64(0), nil, nil),
	}}}

	p, err := NewStore(d, nil).CompanyProfile(context.Background(), "Netflix")

	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Strategies)
	assert.Zero(t, p.AverageSavingsPercentage)
}

func TestStats(t *testing.T) {
	d := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record([]string{"strategies", "outcomes", "companies"}, int64(10), int64(3), int64(5)),
	}}}

	st, err := NewStore(d, nil).Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Stats{Strategies: 10, Outcomes: 3, Companies: 5}, st)

	_, err = NewStore(&MockDriver{Err: errors.New("down")}, nil).Stats(context.Background())
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 2}))
}
