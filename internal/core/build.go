package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core/router"
	"github.com/agenthands/hagglz/internal/core/specialist"
	"github.com/agenthands/hagglz/internal/llm"
)

// Clients are the LLM collaborators of every agent, resolved from the
// [llm] and [agents.*] configuration.
type Clients struct {
	Router       llm.LLMClient
	Utility      llm.LLMClient
	Medical      llm.LLMClient
	Subscription llm.LLMClient
	Telecom      llm.LLMClient
	Research     llm.LLMClient
	Embedder     llm.EmbedderClient

	closers []io.Closer
}

func NewClients(ctx context.Context, cfg *config.Config) (*Clients, error) {
	c := &Clients{}
	timeout := time.Duration(cfg.Workflow.LLMTimeoutSeconds) * time.Second

	build := func(agent string) (llm.LLMClient, error) {
		client, _, err := llm.NewClient(ctx, cfg.AgentLLM(agent))
		if err != nil {
			return nil, fmt.Errorf("%s llm: %w", agent, err)
		}
		if cl, ok := client.(io.Closer); ok {
			c.closers = append(c.closers, cl)
		}
		return llm.WithRetry(client, timeout, cfg.Workflow.LLMRetries), nil
	}

	var err error
	for _, slot := range []struct {
		agent string
		dst   *llm.LLMClient
	}{
		{config.AgentRouter, &c.Router},
		{config.AgentUtility, &c.Utility},
		{config.AgentMedical, &c.Medical},
		{config.AgentSubscription, &c.Subscription},
		{config.AgentTelecom, &c.Telecom},
		{config.AgentResearch, &c.Research},
	} {
		if *slot.dst, err = build(slot.agent); err != nil {
			c.Close()
			return nil, err
		}
	}

	_, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if cl, ok := embedder.(io.Closer); ok {
		c.closers = append(c.closers, cl)
	}
	c.Embedder = embedder
	return c, nil
}

func (c *Clients) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// Build assembles the router, the four specialists and the orchestrator.
func Build(cfg *config.Config, clients *Clients, opts ...Option) (*Orchestrator, error) {
	r, err := router.New(clients.Router, cfg.Prompts.Router)
	if err != nil {
		return nil, err
	}
	utility, err := specialist.NewUtility(clients.Utility, cfg.Prompts.Utility)
	if err != nil {
		return nil, err
	}
	medical, err := specialist.NewMedical(clients.Medical, cfg.Prompts.Medical)
	if err != nil {
		return nil, err
	}
	subscription, err := specialist.NewSubscription(clients.Subscription, cfg.Prompts.Subscription)
	if err != nil {
		return nil, err
	}
	telecom, err := specialist.NewTelecom(clients.Telecom, cfg.Prompts.Telecom)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithThresholds(Thresholds{
		Auto:       cfg.Workflow.AutoThreshold,
		Supervised: cfg.Workflow.SupervisedThreshold,
	})}, opts...)
	return NewOrchestrator(r, []specialist.Agent{utility, medical, subscription, telecom}, opts...)
}
