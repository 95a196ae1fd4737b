package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agenthands/hagglz/internal/cache"
	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core"
	"github.com/agenthands/hagglz/internal/core/research"
	"github.com/agenthands/hagglz/internal/driver"
	"github.com/agenthands/hagglz/internal/events"
	"github.com/agenthands/hagglz/internal/llm"
	"github.com/agenthands/hagglz/internal/memory"
)

// Bootstrap wires every component described by cfg. Memgraph and NATS are
// optional: an empty URI disables them, a failing connection is logged and
// the server runs without them. The returned func releases all resources.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Server, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("shutdown", "error", err)
			}
		}
	}

	clients, err := core.NewClients(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise llm clients: %w", err)
	}
	closers = append(closers, clients.Close)

	results, err := cache.New(cfg.Cache.MaxCostBytes, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	closers = append(closers, func() error { results.Close(); return nil })

	var recorders []core.Recorder

	var store *memory.Store
	if cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			slog.Warn("memgraph unavailable, memory disabled", "uri", cfg.Memgraph.URI, "error", err)
		} else {
			closers = append(closers, func() error { return d.Close(context.Background()) })
			store = memory.NewStore(d, clients.Embedder)
			if err := store.BuildIndices(ctx); err != nil {
				slog.Warn("failed to build indices", "error", err)
			}
			recorders = append(recorders, store)
		}
	}

	pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "url", cfg.NATS.URL, "error", err)
	} else {
		closers = append(closers, pub.Close)
		if pub.Enabled() {
			recorders = append(recorders, pub)
		}
	}

	orch, err := core.Build(cfg, clients, core.WithRecorders(recorders...))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	// typed nils must not leak into the optional interfaces
	var mem MemoryStore
	var source research.StrategySource
	if store != nil {
		mem, source = store, store
	}
	rs := research.New(clients.Research, llm.NewSimpleLLMReranker(clients.Research), source, cfg.Prompts.Research)

	return NewServer(orch, results, mem, rs), cleanup, nil
}
