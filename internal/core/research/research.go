// Package research produces a negotiation brief for a company, grounded on
// strategies previously generated for it.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/agenthands/hagglz/internal/memory"
)

const (
	priorLimit   = 10
	priorInBrief = 3
)

// StrategySource returns stored strategies similar to a query.
type StrategySource interface {
	SimilarStrategies(ctx context.Context, query string, billType model.BillType, k int) ([]memory.StrategyRecord, error)
}

type Brief struct {
	Company          string                  `json:"company"`
	BillType         model.BillType          `json:"bill_type,omitempty"`
	Research         string                  `json:"research"`
	PriorStrategies  []memory.StrategyRecord `json:"prior_strategies"`
	ResearchComplete bool                    `json:"research_complete"`
}

type Researcher struct {
	LLM      llm.LLMClient
	Reranker llm.RerankerClient
	Memory   StrategySource
	prompts  config.ResearchPrompts
}

// New builds a researcher. The reranker and memory source are optional.
func New(client llm.LLMClient, reranker llm.RerankerClient, source StrategySource, prompts config.ResearchPrompts) *Researcher {
	return &Researcher{LLM: client, Reranker: reranker, Memory: source, prompts: prompts}
}

// Company researches company. A failed LLM call still returns the prior
// strategies with ResearchComplete unset.
func (r *Researcher) Company(ctx context.Context, company string, billType model.BillType) (Brief, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return Brief{}, fmt.Errorf("company name is required")
	}
	b := Brief{Company: company, BillType: billType, PriorStrategies: []memory.StrategyRecord{}}

	priors := r.priorStrategies(ctx, company, billType)
	b.PriorStrategies = priors

	var prior strings.Builder
	if len(priors) == 0 {
		prior.WriteString("None recorded.")
	}
	for i, p := range priors {
		fmt.Fprintf(&prior, "%d. (%s, confidence %.2f) %s\n", i+1, p.Company, p.Confidence, llm.Truncate(p.Strategy, 400))
	}

	label := "ANY"
	if billType != "" {
		label = string(billType)
	}
	out, err := r.LLM.Generate(ctx, fmt.Sprintf(r.prompts.Company, company, label, prior.String()))
	if err != nil {
		slog.Error("company research failed", "company", company, "error", err)
		b.Research = model.AnalysisUnavailable
		return b, nil
	}
	b.Research = out
	b.ResearchComplete = true
	return b, nil
}

func (r *Researcher) priorStrategies(ctx context.Context, company string, billType model.BillType) []memory.StrategyRecord {
	if r.Memory == nil {
		return []memory.StrategyRecord{}
	}
	found, err := r.Memory.SimilarStrategies(ctx, company, billType, priorLimit)
	if err != nil {
		slog.Warn("loading prior strategies failed", "company", company, "error", err)
		return []memory.StrategyRecord{}
	}
	if len(found) > 1 && r.Reranker != nil {
		docs := make([]string, len(found))
		for i, f := range found {
			docs[i] = f.Company + ": " + f.Strategy
		}
		order, err := r.Reranker.Rank(ctx, company, docs)
		if err == nil && len(order) == len(found) {
			ranked := make([]memory.StrategyRecord, 0, len(found))
			for _, idx := range order {
				ranked = append(ranked, found[idx])
			}
			found = ranked
		}
	}
	if len(found) > priorInBrief {
		found = found[:priorInBrief]
	}
	return found
}
