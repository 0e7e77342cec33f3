package testutil

import (
	"context"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/model"
)

// StubAgent implements core.Agent with scriptable execution. The zero
// ExecuteFn returns an empty output.
type StubAgent struct {
	AgentID   string
	Role      string
	Vaults    []string
	ExecuteFn func(ctx context.Context, query string, slices []core.Slice) (string, error)
}

// ID implements core.Agent.
func (a *StubAgent) ID() string { return a.AgentID }

// RolePrompt implements core.Agent.
func (a *StubAgent) RolePrompt() string { return a.Role }

// VaultIDs implements core.Agent.
func (a *StubAgent) VaultIDs() []string { return a.Vaults }

// Execute implements core.Agent.
func (a *StubAgent) Execute(ctx context.Context, query string, slices []core.Slice) (string, error) {
	if a.ExecuteFn == nil {
		return "", nil
	}
	return a.ExecuteFn(ctx, query, slices)
}

// BlockingModel blocks every Invoke until the context is done and then
// returns its error. Used to exercise per-agent timeouts.
type BlockingModel struct{}

// Invoke implements model.Model.
func (BlockingModel) Invoke(ctx context.Context, _ model.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// Info implements model.Model.
func (BlockingModel) Info() model.Info {
	return model.Info{Name: "blocking", Provider: "test"}
}
