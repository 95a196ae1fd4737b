package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agenthands/hagglz/internal/cache"
	"github.com/agenthands/hagglz/internal/core/estimate"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/core/research"
	"github.com/agenthands/hagglz/internal/memory"
	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

type Negotiator interface {
	Negotiate(ctx context.Context, bill model.BillRecord) model.NegotiationResult
}

type ResultStore interface {
	Put(res model.NegotiationResult) error
	Get(id string) (model.NegotiationResult, error)
}

type MemoryStore interface {
	SaveOutcome(ctx context.Context, o memory.Outcome) error
	Stats(ctx context.Context) (memory.Stats, error)
	CompanyProfile(ctx context.Context, company string) (memory.CompanyProfile, error)
}

type CompanyResearcher interface {
	Company(ctx context.Context, company string, billType model.BillType) (research.Brief, error)
}

// Server serves the negotiation API. Memory and Research are optional;
// their endpoints answer 503 when unset.
type Server struct {
	Negotiator Negotiator
	Results    ResultStore
	Memory     MemoryStore
	Research   CompanyResearcher

	// async runs work that must outlive the request.
	async func(func())
	now   func() time.Time
}

func NewServer(n Negotiator, results ResultStore, mem MemoryStore, rs CompanyResearcher) *Server {
	return &Server{
		Negotiator: n,
		Results:    results,
		Memory:     mem,
		Research:   rs,
		async:      func(f func()) { go f() },
		now:        time.Now,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/negotiate", s.Negotiate)
	v1.GET("/negotiation/:id", s.GetNegotiation)
	v1.POST("/feedback", s.Feedback)
	v1.GET("/stats", s.Stats)
	v1.GET("/research/:company", s.ResearchCompany)
	v1.POST("/calculate-savings", s.CalculateSavings)
	v1.POST("/success-probability", s.SuccessProbability)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found", "path": c.Request.URL.Path})
	})
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// billType accepts only the four bill types, unlike model.ParseBillType
// which falls back to UTILITY.
func billType(s string) (model.BillType, bool) {
	t := model.BillType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

func active(ok bool) string {
	if ok {
		return "active"
	}
	return "inactive"
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"version":   Version,
		"components": gin.H{
			"orchestrator":  active(s.Negotiator != nil),
			"memory_system": active(s.Memory != nil),
			"research":      active(s.Research != nil),
		},
	})
}

type NegotiateRequest struct {
	BillText      string   `json:"bill_text" binding:"required"`
	UserID        string   `json:"user_id" binding:"required"`
	Company       string   `json:"company"`
	Amount        float64  `json:"amount"`
	TargetSavings *float64 `json:"target_savings"`
}

type NegotiateResponse struct {
	model.NegotiationResult
	EstimatedAnnualSavings float64               `json:"estimated_annual_savings"`
	TargetCalculation      *estimate.Calculation `json:"target_calculation,omitempty"`
}

func (s *Server) Negotiate(c *gin.Context) {
	var req NegotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	bill := model.BillRecord{
		OCRText: req.BillText,
		Company: strings.TrimSpace(req.Company),
		Amount:  req.Amount,
		UserID:  req.UserID,
	}

	slog.Info("starting negotiation", "user_id", req.UserID)
	res := s.Negotiator.Negotiate(c.Request.Context(), bill)
	if s.Results != nil {
		if err := s.Results.Put(res); err != nil {
			slog.Warn("caching negotiation failed", "negotiation_id", res.NegotiationID, "error", err)
		}
	}
	if res.Failed() {
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Error, "negotiation_id": res.NegotiationID})
		return
	}

	resp := NegotiateResponse{NegotiationResult: res, EstimatedAnnualSavings: res.TargetSavings.AnnualSavings}
	if req.TargetSavings != nil && res.Amount > 0 {
		if calc, err := estimate.Savings(res.Amount, nil, req.TargetSavings); err == nil {
			resp.TargetCalculation = &calc
		}
	}
	slog.Info("negotiation completed", "negotiation_id", res.NegotiationID, "confidence", res.ConfidenceScore, "mode", res.ExecutionMode)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetNegotiation(c *gin.Context) {
	id := c.Param("id")
	if s.Results == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found", "negotiation_id": id})
		return
	}
	res, err := s.Results.Get(id)
	if errors.Is(err, cache.ErrNotCached) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found", "negotiation_id": id})
		return
	}
	if err != nil {
		slog.Error("status lookup failed", "negotiation_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Status retrieval error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type FeedbackRequest struct {
	NegotiationID    string   `json:"negotiation_id" binding:"required"`
	Success          bool     `json:"success"`
	ActualSavings    *float64 `json:"actual_savings"`
	FinalAmount      *float64 `json:"final_amount"`
	Notes            string   `json:"notes"`
	DifficultyRating int      `json:"difficulty_rating" binding:"omitempty,min=1,max=5"`
}

func (s *Server) Feedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.Success && s.Memory != nil {
		o := s.outcome(req)
		mem := s.Memory
		s.async(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := mem.SaveOutcome(ctx, o); err != nil {
				slog.Error("storing negotiation feedback failed", "negotiation_id", o.NegotiationID, "error", err)
				return
			}
			slog.Info("stored negotiation feedback", "negotiation_id", o.NegotiationID)
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Feedback received successfully",
		"negotiation_id": req.NegotiationID,
		"timestamp":      s.now().UTC().Format(time.RFC3339),
	})
}

// outcome fills in the bill details from the cached negotiation when it is
// still available.
func (s *Server) outcome(req FeedbackRequest) memory.Outcome {
	o := memory.Outcome{NegotiationID: req.NegotiationID, Success: req.Success, Notes: req.Notes}
	if s.Results != nil {
		if res, err := s.Results.Get(req.NegotiationID); err == nil {
			o.BillType = res.BillType
			o.Company = res.Company
			o.OriginalAmount = res.Amount
			o.UserID = res.UserID
		}
	}
	switch {
	case req.FinalAmount != nil:
		o.FinalAmount = *req.FinalAmount
		if o.OriginalAmount == 0 && req.ActualSavings != nil {
			o.OriginalAmount = *req.FinalAmount + *req.ActualSavings
		}
	case req.ActualSavings != nil:
		o.FinalAmount = model.Round2(o.OriginalAmount - *req.ActualSavings)
	default:
		o.FinalAmount = o.OriginalAmount
	}
	return o
}

func (s *Server) Stats(c *gin.Context) {
	if s.Memory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Memory system not initialised"})
		return
	}
	stats, err := s.Memory.Stats(c.Request.Context())
	if err != nil {
		slog.Error("stats retrieval failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stats retrieval error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"memory_stats": stats,
		"system_info": gin.H{
			"version":   Version,
			"timestamp": s.now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) ResearchCompany(c *gin.Context) {
	if s.Research == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Research not initialised"})
		return
	}
	company := c.Param("company")
	var filter model.BillType
	if q := c.Query("bill_type"); q != "" {
		bt, ok := billType(q)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown bill type: " + q})
			return
		}
		filter = bt
	}

	brief, err := s.Research.Company(c.Request.Context(), company, filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out := gin.H{"company": brief.Company, "research": brief}
	if s.Memory != nil {
		if profile, err := s.Memory.CompanyProfile(c.Request.Context(), brief.Company); err == nil {
			out["profile"] = profile
		} else {
			slog.Warn("company profile lookup failed", "company", brief.Company, "error", err)
		}
	}
	c.JSON(http.StatusOK, out)
}

type SavingsRequest struct {
	OriginalAmount   float64  `json:"original_amount" binding:"required"`
	NegotiatedAmount *float64 `json:"negotiated_amount"`
	TargetPercentage *float64 `json:"target_percentage"`
}

func (s *Server) CalculateSavings(c *gin.Context) {
	var req SavingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	calc, err := estimate.Savings(req.OriginalAmount, req.NegotiatedAmount, req.TargetPercentage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calculations": calc})
}

func (s *Server) SuccessProbability(c *gin.Context) {
	var f estimate.Factors
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, estimate.SuccessProbability(f))
}
