package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/model"
)

func TestModelAgent_Accessors(t *testing.T) {
	a := NewModelAgent("triage", model.NewMock("m"), func(o *Options) {
		o.RolePrompt = "You are a triage specialist."
		o.VaultIDs = []string{"tickets", "runbooks"}
	})

	assert.Equal(t, "triage", a.ID())
	assert.Equal(t, "You are a triage specialist.", a.RolePrompt())
	assert.Equal(t, []string{"tickets", "runbooks"}, a.VaultIDs())

	// The returned vault list must not alias internal state.
	a.VaultIDs()[0] = "mutated"
	assert.Equal(t, []string{"tickets", "runbooks"}, a.VaultIDs())
}

func TestModelAgent_Execute(t *testing.T) {
	m := model.NewMock("m")
	m.AddResponse("why is T-1 failing?", "T-1 is a login failure.")

	a := NewModelAgent("triage", m, func(o *Options) {
		o.RolePrompt = "You are a triage specialist."
	})

	slices := []core.Slice{
		{VaultID: "tickets", Claims: []core.Claim{
			core.NewClaim("T-1 failing", core.Beacons{"ticket": "T-1"}),
		}},
		{VaultID: "runbooks"}, // empty contribution, omitted from context
	}

	out, err := a.Execute(context.Background(), "why is T-1 failing?", slices)
	require.NoError(t, err)
	assert.Equal(t, "T-1 is a login failure.", out)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "You are a triage specialist.", calls[0].RolePrompt)
	assert.Contains(t, calls[0].Context, "--- Context from tickets ---")
	assert.Contains(t, calls[0].Context, "- T-1 failing")
	assert.NotContains(t, calls[0].Context, "runbooks")
}

func TestModelAgent_Execute_WrapsFailure(t *testing.T) {
	m := model.NewMock("m")
	cause := errors.New("quota exceeded")
	m.FailWith(cause)

	a := NewModelAgent("triage", m)

	_, err := a.Execute(context.Background(), "anything", nil)
	require.Error(t, err)

	var execErr *core.AgentExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "triage", execErr.AgentID)
	assert.ErrorIs(t, err, cause)
}

func TestRenderContext(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "--- No relevant information found in memory vaults. ---\n", RenderContext(nil))
	})

	t.Run("sections in declaration order", func(t *testing.T) {
		out := RenderContext([]core.Slice{
			{VaultID: "b", Claims: []core.Claim{core.NewClaim("beta", nil)}},
			{VaultID: "a", Claims: []core.Claim{core.NewClaim("alpha", nil)}},
		})
		assert.Less(t, strings.Index(out, "Context from b"), strings.Index(out, "Context from a"))
	})
}
