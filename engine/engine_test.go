package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfabric/agent"
	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/testutil"
	"github.com/hupe1980/agentfabric/model"
	"github.com/hupe1980/agentfabric/vault"
)

// selectByID returns a gatekeeper activating the given ids in order,
// fabricating stubs for ids missing from the registry so the defensive
// filtering path can be exercised.
func selectByID(ids ...string) core.GatekeeperFunc {
	return func(_ context.Context, _ string, agents map[string]core.Agent) ([]core.Agent, error) {
		var out []core.Agent
		for _, id := range ids {
			if a, ok := agents[id]; ok {
				out = append(out, a)
				continue
			}
			out = append(out, &testutil.StubAgent{AgentID: id})
		}
		return out, nil
	}
}

func staticBeacons(b core.Beacons) core.BeaconExtractorFunc {
	return func(context.Context, string) (core.Beacons, error) {
		return b.Clone(), nil
	}
}

func identityAugmenter() core.SliceAugmenterFunc {
	return func(_ context.Context, _ core.Agent, base core.Beacons) (core.Beacons, error) {
		return base, nil
	}
}

// newTicketEngine builds the concrete scenario from the design notes: vault
// V with claims T-1 and T-2, agent A reading V, extractor pinned to T-1 and
// an identity augmenter.
func newTicketEngine(t *testing.T, m model.Model) (*Engine, core.Claim) {
	t.Helper()

	v := vault.NewInMemory("V")
	first, err := v.AddClaim(context.Background(), "T-1 failing", core.Beacons{"ticket": "T-1"})
	require.NoError(t, err)
	_, err = v.AddClaim(context.Background(), "T-2 failing", core.Beacons{"ticket": "T-2"})
	require.NoError(t, err)

	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("A")
		o.BeaconExtractor = staticBeacons(core.Beacons{"ticket": "T-1"})
		o.SliceAugmenter = identityAugmenter()
	})
	e.RegisterVault(v)
	e.RegisterAgent(agent.NewModelAgent("A", m, func(o *agent.Options) {
		o.RolePrompt = "You are agent A."
		o.VaultIDs = []string{"V"}
	}))

	return e, first
}

func TestHandleRequest_TicketScenario(t *testing.T) {
	m := model.NewMock("m")
	m.AddResponse("what about T-1?", "T-1 needs a fix.")

	e, first := newTicketEngine(t, m)

	resp, trace, err := e.HandleRequest(context.Background(), "what about T-1?")
	require.NoError(t, err)

	assert.Equal(t, "--- Contribution from A ---\nT-1 needs a fix.", resp)
	assert.Equal(t, []string{"A"}, trace.Activated)

	entry := trace.PerAgent["A"]
	require.Equal(t, []string{first.ID}, entry.RetrievedClaimIDs(),
		"context slice must hold exactly the matching claim")
	assert.Equal(t, core.Beacons{"ticket": "T-1"}, entry.AugmentedBeacons)
	assert.Equal(t, "T-1 needs a fix.", entry.Output)
	assert.False(t, entry.Failed())

	// The model saw only the matching claim.
	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Context, "T-1 failing")
	assert.NotContains(t, calls[0].Context, "T-2 failing")
}

func TestHandleRequest_NoAgentsActivated(t *testing.T) {
	m := model.NewMock("m")
	e := New(func(o *Options) {
		o.Gatekeeper = core.GatekeeperFunc(func(context.Context, string, map[string]core.Agent) ([]core.Agent, error) {
			return nil, nil
		})
	})
	e.RegisterAgent(agent.NewModelAgent("A", m))

	resp, trace, err := e.HandleRequest(context.Background(), "nothing relevant")
	require.NoError(t, err, "an unmatched query is a legitimate outcome, not an error")

	assert.Equal(t, DefaultConfig.FallbackResponse, resp)
	assert.Equal(t, core.KindNoAgentsActivated, trace.Annotation)
	assert.Empty(t, trace.Activated)
	assert.Empty(t, m.Calls(), "no agent execution may occur")
}

func TestHandleRequest_UnknownAgentFiltered(t *testing.T) {
	m := model.NewMock("m")
	m.AddResponse("q", "answer from A")

	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("ghost", "A")
	})
	e.RegisterAgent(agent.NewModelAgent("A", m))

	resp, trace, err := e.HandleRequest(context.Background(), "q")
	require.NoError(t, err, "a misbehaving gatekeeper degrades gracefully")

	assert.Equal(t, []string{"A"}, trace.Activated)
	assert.Equal(t, []string{"ghost"}, trace.Dropped)
	assert.Contains(t, resp, "answer from A")
}

func TestHandleRequest_UnresolvedVault(t *testing.T) {
	m := model.NewMock("m")
	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("A")
	})
	e.RegisterAgent(agent.NewModelAgent("A", m, func(o *agent.Options) {
		o.VaultIDs = []string{"missing"}
	}))

	_, trace, err := e.HandleRequest(context.Background(), "q")
	require.NoError(t, err, "unresolved vault ids yield empty slices, never errors")

	entry := trace.PerAgent["A"]
	require.Len(t, entry.Slices, 1)
	assert.True(t, entry.Slices[0].Unresolved)
	assert.Empty(t, entry.RetrievedClaimIDs())

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Context, "No relevant information found")
}

func TestHandleRequest_PartialFailure(t *testing.T) {
	good := model.NewMock("good")
	good.AddResponse("q", "survivor output")
	bad := model.NewMock("bad")
	bad.FailWith(errors.New("provider unavailable"))

	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("ok", "broken")
	})
	e.RegisterAgent(agent.NewModelAgent("ok", good))
	e.RegisterAgent(agent.NewModelAgent("broken", bad))

	resp, trace, err := e.HandleRequest(context.Background(), "q")
	require.NoError(t, err, "partial success must not raise AllAgentsFailed")

	assert.Contains(t, resp, "survivor output")
	assert.NotContains(t, resp, "broken")

	okEntry := trace.PerAgent["ok"]
	assert.False(t, okEntry.Failed())

	brokenEntry := trace.PerAgent["broken"]
	assert.True(t, brokenEntry.Failed())
	assert.Contains(t, brokenEntry.Err, "provider unavailable")
}

func TestHandleRequest_AllAgentsFailed(t *testing.T) {
	bad := model.NewMock("bad")
	bad.FailWith(errors.New("provider unavailable"))

	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("a", "b")
	})
	e.RegisterAgent(agent.NewModelAgent("a", bad))
	e.RegisterAgent(agent.NewModelAgent("b", bad))

	_, trace, err := e.HandleRequest(context.Background(), "q")
	require.Error(t, err)

	var reqErr *core.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, core.KindAllAgentsFailed, reqErr.Kind)
	require.Len(t, reqErr.AgentErrors, 2)
	assert.Equal(t, core.KindAllAgentsFailed, trace.Annotation)
}

func TestHandleRequest_StrategyFailure(t *testing.T) {
	cause := errors.New("extractor blew up")
	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("A")
		o.BeaconExtractor = core.BeaconExtractorFunc(func(context.Context, string) (core.Beacons, error) {
			return nil, cause
		})
	})
	m := model.NewMock("m")
	e.RegisterAgent(agent.NewModelAgent("A", m))

	_, trace, err := e.HandleRequest(context.Background(), "q")
	require.Error(t, err)

	var reqErr *core.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, core.KindStrategyFailure, reqErr.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, m.Calls(), "a fatal strategy failure aborts before execution")
	assert.Equal(t, core.KindStrategyFailure, trace.Annotation)
}

func TestHandleRequest_AugmenterFailureIsFatal(t *testing.T) {
	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("A")
		o.SliceAugmenter = core.SliceAugmenterFunc(func(context.Context, core.Agent, core.Beacons) (core.Beacons, error) {
			return nil, errors.New("augmenter blew up")
		})
	})
	e.RegisterAgent(agent.NewModelAgent("A", model.NewMock("m")))

	_, _, err := e.HandleRequest(context.Background(), "q")

	var reqErr *core.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, core.KindStrategyFailure, reqErr.Kind)
}

func TestHandleRequest_DeterministicTrace(t *testing.T) {
	run := func() *core.RequestTrace {
		m := model.NewMock("m")
		m.AddResponse("what about T-1?", "T-1 needs a fix.")
		e, _ := newTicketEngine(t, m)
		_, trace, err := e.HandleRequest(context.Background(), "what about T-1?")
		require.NoError(t, err)
		return trace
	}

	first, second := run(), run()

	assert.Equal(t, first.Activated, second.Activated)
	assert.Equal(t, first.BaseBeacons, second.BaseBeacons)
	assert.Equal(t, first.PerAgent["A"].AugmentedBeacons, second.PerAgent["A"].AugmentedBeacons)
	assert.Equal(t, len(first.PerAgent["A"].RetrievedClaimIDs()), len(second.PerAgent["A"].RetrievedClaimIDs()))
	assert.Equal(t, first.FinalResponse, second.FinalResponse)
}

func TestHandleRequest_AssemblyOrder(t *testing.T) {
	// Agents complete in arbitrary order under the fan-out; assembly must
	// still follow activation order.
	e := New(func(o *Options) {
		o.Config.MaxConcurrentAgents = 3
		o.Gatekeeper = selectByID("c", "a", "b")
	})
	for _, id := range []string{"a", "b", "c"} {
		m := model.NewMock(id)
		m.AddResponse("q", "output "+id)
		e.RegisterAgent(agent.NewModelAgent(id, m))
	}

	resp, trace, err := e.HandleRequest(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a", "b"}, trace.Activated)
	posC := strings.Index(resp, "Contribution from c")
	posA := strings.Index(resp, "Contribution from a")
	posB := strings.Index(resp, "Contribution from b")
	assert.True(t, posC < posA && posA < posB, "assembly must follow activation order: %q", resp)
}

func TestHandleRequest_DuplicateActivationCollapses(t *testing.T) {
	m := model.NewMock("m")
	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("A", "A")
	})
	e.RegisterAgent(agent.NewModelAgent("A", m))

	_, trace, err := e.HandleRequest(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, trace.Activated)
	assert.Len(t, m.Calls(), 1)
}

func TestHandleRequest_Timeout(t *testing.T) {
	fast := model.NewMock("fast")
	fast.AddResponse("q", "fast answer")

	e := New(func(o *Options) {
		o.Config.AgentTimeout = 20 * time.Millisecond
		o.Gatekeeper = selectByID("slow", "fast")
	})
	e.RegisterAgent(agent.NewModelAgent("slow", testutil.BlockingModel{}))
	e.RegisterAgent(agent.NewModelAgent("fast", fast))

	resp, trace, err := e.HandleRequest(context.Background(), "q")
	require.NoError(t, err, "a timed-out agent is isolated like any other failure")

	assert.Contains(t, resp, "fast answer")

	slowEntry := trace.PerAgent["slow"]
	assert.True(t, slowEntry.Failed())
	assert.Contains(t, slowEntry.Err, context.DeadlineExceeded.Error())
}

func TestRegister_LastWriteWins(t *testing.T) {
	e := New()

	e.RegisterAgent(&testutil.StubAgent{AgentID: "A", Role: "old"})
	e.RegisterAgent(&testutil.StubAgent{AgentID: "A", Role: "new"})

	a, ok := e.Agent("A")
	require.True(t, ok)
	assert.Equal(t, "new", a.RolePrompt())

	e.RegisterVault(vault.NewInMemory("V"))
	replacement := vault.NewInMemory("V")
	e.RegisterVault(replacement)

	v, ok := e.Vault("V")
	require.True(t, ok)
	assert.Same(t, core.Vault(replacement), v)
}

func TestLastTrace_ReflectsLatestRequest(t *testing.T) {
	m := model.NewMock("m")
	e, _ := newTicketEngine(t, m)

	require.Nil(t, e.LastTrace())

	_, first, err := e.HandleRequest(context.Background(), "first query")
	require.NoError(t, err)
	assert.Same(t, first, e.LastTrace())

	_, second, err := e.HandleRequest(context.Background(), "second query")
	require.NoError(t, err)
	assert.Same(t, second, e.LastTrace(), "each request replaces, never merges, the last trace")
	assert.Equal(t, "second query", e.LastTrace().Query)
}

func TestHandleRequest_VaultDeclarationOrder(t *testing.T) {
	ctx := context.Background()

	v1 := vault.NewInMemory("first")
	_, err := v1.AddClaim(ctx, "claim in first", core.Beacons{"k": "v"})
	require.NoError(t, err)
	v2 := vault.NewInMemory("second")
	_, err = v2.AddClaim(ctx, "claim in second", core.Beacons{"k": "v"})
	require.NoError(t, err)

	m := model.NewMock("m")
	e := New(func(o *Options) {
		o.Gatekeeper = selectByID("A")
		o.BeaconExtractor = staticBeacons(core.Beacons{"k": "v"})
	})
	e.RegisterVault(v1)
	e.RegisterVault(v2)
	// Declaration order deliberately differs from registration/sort order.
	e.RegisterAgent(agent.NewModelAgent("A", m, func(o *agent.Options) {
		o.VaultIDs = []string{"second", "first"}
	}))

	_, trace, err := e.HandleRequest(ctx, "q")
	require.NoError(t, err)

	entry := trace.PerAgent["A"]
	require.Len(t, entry.Slices, 2)
	assert.Equal(t, "second", entry.Slices[0].VaultID)
	assert.Equal(t, "first", entry.Slices[1].VaultID)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Less(t,
		strings.Index(calls[0].Context, "Context from second"),
		strings.Index(calls[0].Context, "Context from first"),
		"context sections must follow declaration order")
}

func TestConcurrentRegistrationAndRequests(t *testing.T) {
	m := model.NewMock("m")
	e, _ := newTicketEngine(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.RegisterAgent(agent.NewModelAgent(fmt.Sprintf("extra-%d", i), m))
			e.RegisterVault(vault.NewInMemory(fmt.Sprintf("extra-%d", i)))
		}()
		go func() {
			defer wg.Done()
			_, _, err := e.HandleRequest(context.Background(), "what about T-1?")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, trace, err := e.HandleRequest(context.Background(), "what about T-1?")
	require.NoError(t, err)
	assert.Len(t, trace.Registered, 9, "all concurrent registrations must land")
}

func TestHandleRequest_SliceLimit(t *testing.T) {
	ctx := context.Background()

	v := vault.NewInMemory("V")
	for i := 0; i < 5; i++ {
		_, err := v.AddClaim(ctx, fmt.Sprintf("entry %d", i), core.Beacons{"k": "v"})
		require.NoError(t, err)
	}

	e := New(func(o *Options) {
		o.Config.DefaultSliceLimit = 2
		o.Gatekeeper = selectByID("A")
		o.BeaconExtractor = staticBeacons(core.Beacons{"k": "v"})
	})
	e.RegisterVault(v)
	e.RegisterAgent(agent.NewModelAgent("A", model.NewMock("m"), func(o *agent.Options) {
		o.VaultIDs = []string{"V"}
	}))

	_, trace, err := e.HandleRequest(ctx, "q")
	require.NoError(t, err)
	assert.Len(t, trace.PerAgent["A"].RetrievedClaimIDs(), 2)
}
