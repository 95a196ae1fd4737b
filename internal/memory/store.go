// Package memory keeps generated strategies and reported outcomes in
// Memgraph so later negotiations and research can draw on them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/driver"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// candidateLimit bounds the strategies pulled from the store before
// similarity ranking.
const candidateLimit = 50

type StrategyRecord struct {
	ID               string         `json:"id"`
	BillType         model.BillType `json:"bill_type"`
	Company          string         `json:"company"`
	Amount           float64        `json:"amount"`
	Confidence       float64        `json:"confidence"`
	ExecutionMode    string         `json:"execution_mode"`
	Strategy         string         `json:"strategy"`
	TargetPercentage float64        `json:"target_percentage"`
	CreatedAt        time.Time      `json:"created_at"`
	Score            float64        `json:"score,omitempty"`
	embedding        []float32
}

// Outcome is user feedback on how a negotiation went.
type Outcome struct {
	NegotiationID  string         `json:"negotiation_id"`
	BillType       model.BillType `json:"bill_type"`
	Company        string         `json:"company"`
	OriginalAmount float64        `json:"original_amount"`
	FinalAmount    float64        `json:"final_amount"`
	Success        bool           `json:"success"`
	Notes          string         `json:"notes,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
}

func (o Outcome) SavingsAmount() float64 {
	return model.Round2(o.OriginalAmount - o.FinalAmount)
}

func (o Outcome) SavingsPercentage() float64 {
	if o.OriginalAmount <= 0 {
		return 0
	}
	return model.Round1(o.SavingsAmount() / o.OriginalAmount * 100)
}

type CompanyProfile struct {
	Company                  string  `json:"company"`
	Strategies               int64   `json:"strategies"`
	Outcomes                 int64   `json:"outcomes"`
	AverageSavingsPercentage float64 `json:"average_savings_percentage"`
	AverageFinalAmount       float64 `json:"average_final_amount"`
}

type Stats struct {
	Strategies int64 `json:"strategies"`
	Outcomes   int64 `json:"outcomes"`
	Companies  int64 `json:"companies"`
}

type Store struct {
	Driver   driver.GraphDriver
	Embedder llm.EmbedderClient
	now      func() time.Time
}

// NewStore returns a store over d. embedder may be nil, in which case
// similarity search falls back to recency.
func NewStore(d driver.GraphDriver, embedder llm.EmbedderClient) *Store {
	return &Store{
		Driver:   d,
		Embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) BuildIndices(ctx context.Context) error {
	return s.Driver.BuildIndices(ctx)
}

// SaveStrategy stores the strategy of a completed negotiation. Failed runs
// and runs without a strategy are skipped.
func (s *Store) SaveStrategy(ctx context.Context, res model.NegotiationResult) error {
	if res.Failed() || res.NegotiationStrategy == "" {
		return nil
	}
	id := res.NegotiationID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	params := map[string]interface{}{
		"uuid":              id,
		"bill_type":         string(res.BillType),
		"company":           companyName(res.Company),
		"amount":            res.Amount,
		"confidence":        res.ConfidenceScore,
		"execution_mode":    string(res.ExecutionMode),
		"strategy":          res.NegotiationStrategy,
		"script":            res.NegotiationScript,
		"target_percentage": res.TargetSavings.Percentage,
		"target_savings":    res.TargetSavings.SavingsAmount,
		"user_id":           res.UserID,
		"created_at":        createdAt,
		"embedding":         nil,
	}
	if vec := s.embed(ctx, strategyText(res.BillType, res.Company, res.NegotiationStrategy)); len(vec) > 0 {
		params["embedding"] = vec
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveStrategyQuery, params); err != nil {
		return fmt.Errorf("failed to save strategy %s: %w", id, err)
	}
	return nil
}

// Record implements the orchestrator's recorder hook.
func (s *Store) Record(ctx context.Context, res model.NegotiationResult) error {
	return s.SaveStrategy(ctx, res)
}

func (s *Store) SaveOutcome(ctx context.Context, o Outcome) error {
	if o.NegotiationID == "" {
		return errors.New("outcome has no negotiation id")
	}
	params := map[string]interface{}{
		"uuid":               uuid.New().String(),
		"negotiation_id":     o.NegotiationID,
		"bill_type":          string(o.BillType),
		"company":            companyName(o.Company),
		"original_amount":    o.OriginalAmount,
		"final_amount":       o.FinalAmount,
		"savings_amount":     o.SavingsAmount(),
		"savings_percentage": o.SavingsPercentage(),
		"success":            o.Success,
		"notes":              o.Notes,
		"user_id":            o.UserID,
		"created_at":         s.now(),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveOutcomeQuery, params); err != nil {
		return fmt.Errorf("failed to save outcome for %s: %w", o.NegotiationID, err)
	}
	return nil
}

// SimilarStrategies returns up to k stored strategies of billType (any type
// if empty) ordered by embedding similarity to query, or by recency when no
// embeddings are available.
func (s *Store) SimilarStrategies(ctx context.Context, query string, billType model.BillType, k int) ([]StrategyRecord, error) {
	if k <= 0 {
		return nil, nil
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetStrategiesByBillTypeQuery, map[string]interface{}{
		"bill_type": string(billType),
		"limit":     candidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load strategies: %w", err)
	}

	records := make([]StrategyRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		records = append(records, strategyFromRecord(rec))
	}

	if qvec := s.embed(ctx, query); len(qvec) > 0 {
		for i := range records {
			records[i].Score = cosine(qvec, records[i].embedding)
		}
		sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
	}

	if len(records) > k {
		records = records[:k]
	}
	return records, nil
}

func (s *Store) CompanyProfile(ctx context.Context, company string) (CompanyProfile, error) {
	p := CompanyProfile{Company: company}
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetCompanyProfileQuery, map[string]interface{}{"company": company})
	if err != nil {
		return p, fmt.Errorf("failed to load company profile: %w", err)
	}
	if len(res.Records) == 0 {
		return p, nil
	}
	rec := res.Records[0]
	p.Strategies = intValue(rec, "strategies")
	p.Outcomes = intValue(rec, "outcomes")
	p.AverageSavingsPercentage = model.Round1(floatValue(rec, "avg_savings_percentage"))
	p.AverageFinalAmount = model.Round2(floatValue(rec, "avg_final_amount"))
	return p, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetStatsQuery, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	if len(res.Records) == 0 {
		return Stats{}, nil
	}
	rec := res.Records[0]
	return Stats{
		Strategies: intValue(rec, "strategies"),
		Outcomes:   intValue(rec, "outcomes"),
		Companies:  intValue(rec, "companies"),
	}, nil
}

func (s *Store) embed(ctx context.Context, text string) []float32 {
	if s.Embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("embedding failed", "error", err)
		return nil
	}
	return vec
}

func strategyText(bt model.BillType, company, strategy string) string {
	return fmt.Sprintf("%s %s\n%s", bt, company, strategy)
}

func companyName(c string) string {
	if strings.TrimSpace(c) == "" {
		return model.UnknownCompany
	}
	return c
}

func strategyFromRecord(rec *neo4j.Record) StrategyRecord {
	return StrategyRecord{
		ID:               stringValue(rec, "uuid"),
		BillType:         model.BillType(stringValue(rec, "bill_type")),
		Company:          stringValue(rec, "company"),
		Amount:           floatValue(rec, "amount"),
		Confidence:       floatValue(rec, "confidence"),
		ExecutionMode:    stringValue(rec, "execution_mode"),
		Strategy:         stringValue(rec, "strategy"),
		TargetPercentage: floatValue(rec, "target_percentage"),
		CreatedAt:        timeValue(rec, "created_at"),
		embedding:        vectorValue(rec, "embedding"),
	}
}

func stringValue(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func floatValue(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func intValue(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func timeValue(rec *neo4j.Record, key string) time.Time {
	v, _ := rec.Get(key)
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func vectorValue(rec *neo4j.Record, key string) []float32 {
	v, _ := rec.Get(key)
	switch vec := v.(type) {
	case []float32:
		return vec
	case []interface{}:
		out := make([]float32, 0, len(vec))
		for _, x := range vec {
			f, ok := x.(float64)
			if !ok {
				return nil
			}
			out = append(out, float32(f))
		}
		return out
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
