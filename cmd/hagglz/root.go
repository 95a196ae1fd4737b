package main

import (
	"context"
	"fmt"
	"io"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/agenthands/hagglz/internal/logging"
	"github.com/spf13/cobra"
)

type negotiator interface {
	Negotiate(ctx context.Context, bill model.BillRecord) model.NegotiationResult
}

// buildNegotiator is replaced in tests so commands run without an LLM.
var buildNegotiator = func(ctx context.Context, cfg *config.Config) (negotiator, io.Closer, error) {
	clients, err := core.NewClients(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	orch, err := core.Build(cfg, clients)
	if err != nil {
		clients.Close()
		return nil, nil, err
	}
	return orch, clients, nil
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "hagglz",
		Short:         "hagglz - bill negotiation assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or config/config.toml)")

	load := func() (*config.Config, error) {
		path := configPath
		if path == "" {
			path = config.Path()
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newNegotiateCmd(load), newValidateCmd(load))
	return root
}
