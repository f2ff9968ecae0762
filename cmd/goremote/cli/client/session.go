package client

import (
	"context"
	"fmt"

	"github.com/mwantia/goremote/internal/agent"
	"github.com/mwantia/goremote/internal/config"
)

// openAgent loads the configuration and opens the profile store. The caller
// closes the returned agent.
func openAgent(ctx context.Context) (*agent.GoRemoteAgent, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	gra := agent.NewAgent(cfg)
	if err := gra.Setup(ctx); err != nil {
		return nil, err
	}
	return gra, nil
}

// withAgent runs fn against an opened agent and closes it afterwards.
func withAgent(ctx context.Context, fn func(*agent.GoRemoteAgent) error) error {
	gra, err := openAgent(ctx)
	if err != nil {
		return err
	}
	defer gra.Close(context.Background())

	return fn(gra)
}
