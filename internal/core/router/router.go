// Package router classifies raw bill text and extracts the company and
// amount before a specialist takes over.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/agenthands/hagglz/internal/workflow"
)

var amountPattern = regexp.MustCompile(`[\d,]+\.?\d*`)

type Router struct {
	llm     llm.LLMClient
	prompts config.RouterPrompts
	graph   *workflow.Graph[model.BillState]
}

func New(client llm.LLMClient, prompts config.RouterPrompts) (*Router, error) {
	if client == nil {
		return nil, errors.New("router: llm client is nil")
	}
	r := &Router{llm: client, prompts: prompts}
	g, err := workflow.Chain(
		workflow.NamedStage[model.BillState]{Name: "classify", Stage: r.classify},
		workflow.NamedStage[model.BillState]{Name: "extract", Stage: r.extract},
	)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	r.graph = g
	return r, nil
}

// Process classifies ocrText and extracts its company and amount.
// Failed LLM calls degrade to defaults and are recorded in Errors; an
// extraction reply without usable fields is only logged. Only a graph run
// error is returned.
func (r *Router) Process(ctx context.Context, ocrText string) (model.BillState, error) {
	state := model.NewBillState(model.BillRecord{OCRText: ocrText})
	if _, err := r.graph.Run(ctx, &state); err != nil {
		return state, err
	}
	return state, nil
}

func (r *Router) classify(ctx context.Context, s *model.BillState) {
	resp, err := r.llm.Generate(ctx, fmt.Sprintf(r.prompts.Classify, s.OCRText))
	if err != nil {
		slog.Error("bill classification failed", "error", err)
		s.BillType = model.BillUtility
		s.AddError(fmt.Sprintf("classification failed: %v", err))
		return
	}
	s.BillType = model.ParseBillType(resp)
	slog.Info("bill classified", "bill_type", s.BillType)
}

func (r *Router) extract(ctx context.Context, s *model.BillState) {
	resp, err := r.llm.Generate(ctx, fmt.Sprintf(r.prompts.Extract, s.OCRText))
	if err != nil {
		slog.Error("bill extraction failed", "error", err)
		s.Company = model.UnknownCompany
		s.Amount = 0
		s.AddError(fmt.Sprintf("extraction failed: %v", err))
		return
	}
	s.Company, s.Amount = ParseExtraction(resp)
	if s.Company == model.UnknownCompany || s.Amount == 0 {
		slog.Info("bill extraction incomplete", "company", s.Company, "amount", s.Amount)
	}
}

// ParseExtraction reads the "Company:" and "Amount:" lines of an extraction
// response. Missing values come back as "Unknown" and 0.
func ParseExtraction(resp string) (string, float64) {
	company := model.UnknownCompany
	amount := 0.0
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Company:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "Company:")); v != "" {
				company = v
			}
		case strings.HasPrefix(line, "Amount:"):
			amount = parseAmount(strings.TrimPrefix(line, "Amount:"))
		}
	}
	return company, amount
}

func parseAmount(s string) float64 {
	tok := amountPattern.FindString(s)
	if tok == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
