package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/driver"
	"github.com/spf13/cobra"
)

var agentNames = []string{
	config.AgentRouter,
	config.AgentUtility,
	config.AgentMedical,
	config.AgentSubscription,
	config.AgentTelecom,
	config.AgentResearch,
}

func newValidateCmd(load func() (*config.Config, error)) *cobra.Command {
	var checkMemgraph bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print the LLM each agent resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tPROVIDER\tMODEL\tAPI KEY")
			for _, name := range agentNames {
				l := cfg.AgentLLM(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, l.Provider, l.Model, keyState(l))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thresholds: auto>=%.2f supervised>=%.2f\n",
				cfg.Workflow.AutoThreshold, cfg.Workflow.SupervisedThreshold)

			if !checkMemgraph {
				return nil
			}
			if cfg.Memgraph.URI == "" {
				return fmt.Errorf("memgraph check requested but memgraph.uri is empty")
			}
			d, err := driver.NewMemgraphDriver(cmd.Context(), cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
			if err != nil {
				return err
			}
			defer d.Close(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "memgraph: connected to %s\n", cfg.Memgraph.URI)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkMemgraph, "memgraph", false, "also verify Memgraph connectivity")
	return cmd
}

// keyState reports whether a key is configured without printing it.
func keyState(l config.LLMConfig) string {
	switch {
	case l.Provider == "ollama":
		return "n/a"
	case l.APIKey != "":
		return "set"
	default:
		return "MISSING"
	}
}
