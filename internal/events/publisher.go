// Package events announces completed negotiations on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/nats-io/nats.go"
)

const DefaultSubject = "negotiations.completed"

// Completed is the message published for every finished negotiation.
type Completed struct {
	NegotiationID    string              `json:"negotiation_id"`
	UserID           string              `json:"user_id,omitempty"`
	ProcessingStatus string              `json:"processing_status"`
	BillType         model.BillType      `json:"bill_type"`
	Company          string              `json:"company"`
	Amount           float64             `json:"amount"`
	ConfidenceScore  float64             `json:"confidence_score"`
	ExecutionMode    model.ExecutionMode `json:"execution_mode"`
	TargetSavings    model.Savings       `json:"target_savings"`
	CompletedAt      time.Time           `json:"completed_at"`
}

func NewCompleted(res model.NegotiationResult) Completed {
	return Completed{
		NegotiationID:    res.NegotiationID,
		UserID:           res.UserID,
		ProcessingStatus: res.ProcessingStatus,
		BillType:         res.BillType,
		Company:          res.Company,
		Amount:           res.Amount,
		ConfidenceScore:  res.ConfidenceScore,
		ExecutionMode:    res.ExecutionMode,
		TargetSavings:    res.TargetSavings,
		CompletedAt:      res.CreatedAt,
	}
}

// Publisher sends Completed events. The zero value, and a publisher built
// with an empty URL, drop every event.
type Publisher struct {
	subject string
	nc      *nats.Conn
	publish func(subject string, data []byte) error
}

// Connect dials url. An empty url yields a disabled publisher.
func Connect(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if url == "" {
		slog.Info("nats url not set, negotiation events disabled")
		return &Publisher{subject: subject}, nil
	}
	nc, err := nats.Connect(url, nats.Name("hagglz"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	slog.Info("nats connected", "url", url, "subject", subject)
	return &Publisher{subject: subject, nc: nc, publish: nc.Publish}, nil
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.publish != nil
}

// Record publishes res. It satisfies core.Recorder.
func (p *Publisher) Record(_ context.Context, res model.NegotiationResult) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(NewCompleted(res))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.publish(p.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
