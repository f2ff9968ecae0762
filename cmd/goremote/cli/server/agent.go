package server

import (
	"context"
	"fmt"

	"github.com/mwantia/goremote/internal/agent"
	"github.com/mwantia/goremote/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the GoRemote upload agent",
		Long: `Start the GoRemote upload agent.

The agent uploads the configured paths of the current profile every
interval until interrupted, and serves Prometheus metrics when
metrics.address is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			agent := agent.NewAgent(cfg)
			return agent.Serve(context.Background())
		},
	}

	cmd.Flags().String("interval", "", "upload interval (overrides agent.interval)")
	cmd.Flags().String("metrics-address", "", "metrics listen address (overrides metrics.address)")

	viper.BindPFlag("agent.interval", cmd.Flags().Lookup("interval"))
	viper.BindPFlag("metrics.address", cmd.Flags().Lookup("metrics-address"))

	return cmd
}
