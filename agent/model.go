package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/model"
)

// Compile-time assertion.
var _ core.Agent = (*ModelAgent)(nil)

// Options configures a ModelAgent.
type Options struct {
	// RolePrompt is the full behavioral contract handed to the model as its
	// system instruction.
	RolePrompt string

	// VaultIDs declares which vaults the agent may read from. The ids are
	// resolved against the fabric's vault registry at request time; ids that
	// do not resolve contribute an empty slice.
	VaultIDs []string
}

// ModelAgent implements core.Agent by delegating execution to a language
// model. It holds no mutable per-request state and is safe to share across
// concurrent requests.
type ModelAgent struct {
	id         string
	rolePrompt string
	vaultIDs   []string
	model      model.Model
}

// NewModelAgent creates an agent with the given id backed by m.
func NewModelAgent(id string, m model.Model, optFns ...func(o *Options)) *ModelAgent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		id:         id,
		rolePrompt: opts.RolePrompt,
		vaultIDs:   append([]string(nil), opts.VaultIDs...),
		model:      m,
	}
}

// ID implements core.Agent.
func (a *ModelAgent) ID() string { return a.id }

// RolePrompt implements core.Agent.
func (a *ModelAgent) RolePrompt() string { return a.rolePrompt }

// VaultIDs implements core.Agent.
func (a *ModelAgent) VaultIDs() []string {
	return append([]string(nil), a.vaultIDs...)
}

// Execute implements core.Agent. The retrieved slices are serialized into
// per-vault context sections and the model's text output is returned
// unmodified. Model failures (including context deadline expiry) are wrapped
// into an *core.AgentExecutionError for the orchestrator to handle.
func (a *ModelAgent) Execute(ctx context.Context, query string, slices []core.Slice) (string, error) {
	req := model.Request{
		RolePrompt: a.rolePrompt,
		Query:      query,
		Context:    RenderContext(slices),
	}

	out, err := a.model.Invoke(ctx, req)
	if err != nil {
		return "", &core.AgentExecutionError{AgentID: a.id, Err: err}
	}
	return out, nil
}

// RenderContext serializes context slices into the prompt's context block:
// one titled section per contributing vault, one line per claim. Slices with
// no claims are omitted; if nothing contributed, a fixed marker line tells
// the model that memory came up empty.
func RenderContext(slices []core.Slice) string {
	var sb strings.Builder
	for _, s := range slices {
		if len(s.Claims) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "--- Context from %s ---\n", s.VaultID)
		for _, claim := range s.Claims {
			fmt.Fprintf(&sb, "- %s\n", claim.Content)
		}
	}
	if sb.Len() == 0 {
		return "--- No relevant information found in memory vaults. ---\n"
	}
	return sb.String()
}
