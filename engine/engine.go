package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
	"github.com/hupe1980/agentfabric/metrics"
	"github.com/hupe1980/agentfabric/strategy"
)

// Config defines tuning parameters for the engine's per-request behavior.
type Config struct {
	// MaxConcurrentAgents bounds the fan-out of the execution stage. Set to
	// 0 or less for unbounded execution. Ordering of the assembled response
	// never depends on this value.
	MaxConcurrentAgents int

	// AgentTimeout bounds each agent's model call so one slow agent cannot
	// stall the whole request. A timeout is treated exactly like any other
	// execution failure of that agent. Zero disables the bound.
	AgentTimeout time.Duration

	// DefaultSliceLimit truncates each vault retrieval to the first N
	// matches. Zero means unlimited.
	DefaultSliceLimit int

	// FallbackResponse is returned when the gatekeeper activates no agents.
	FallbackResponse string
}

// DefaultConfig provides sensible defaults: a small execution fan-out, a
// generous model-call timeout, unlimited slices and the stock fallback text.
var DefaultConfig = Config{
	MaxConcurrentAgents: 4,
	AgentTimeout:        2 * time.Minute,
	DefaultSliceLimit:   0,
	FallbackResponse:    "No relevant agent could be found to handle this request.",
}

// Options configures an Engine instance using the functional options pattern.
// The three strategies carry all request-level judgment and should be
// supplied by the caller; the defaults (activate every agent, extract no
// beacons, pass beacons through) make an unconfigured engine total but not
// selective.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	Config Config

	// Gatekeeper decides which agents activate per query.
	Gatekeeper core.Gatekeeper

	// BeaconExtractor derives the base beacons from the query.
	BeaconExtractor core.BeaconExtractor

	// SliceAugmenter refines the base beacons per agent.
	SliceAugmenter core.SliceAugmenter

	// Logger defaults to the NoOp logger if nil.
	Logger logging.Logger

	// Metrics defaults to the NoOp recorder if nil.
	Metrics metrics.Recorder
}

// Engine is the orchestrator at the heart of AgentFabric. It owns the agent
// and vault registries, drives the per-request pipeline
// (gate, extract, contextualize, execute, assemble, trace) and isolates
// per-agent execution failures from each other and from the request.
//
// Concurrency model:
//   - Registration is safe under concurrent registration and request
//     handling; each request works against a registry snapshot taken when
//     its relevant stage starts.
//   - The execution stage fans out with bounded parallelism; results are
//     reassembled in activation order regardless of completion order.
//   - Each request owns its trace until the final atomic replace of
//     lastTrace, so concurrent requests never corrupt each other's record.
type Engine struct {
	config    Config
	gatekeep  core.Gatekeeper
	extractor core.BeaconExtractor
	augmenter core.SliceAugmenter
	logger    logging.Logger
	metrics   metrics.Recorder

	registry *registry

	lastTrace atomic.Pointer[core.RequestTrace]
}

// New creates an Engine. Strategies, logger and metrics default to the
// permissive built-ins when not supplied.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:          DefaultConfig,
		Gatekeeper:      strategy.NewActivateAll(),
		BeaconExtractor: strategy.NewStaticBeacons(nil),
		SliceAugmenter:  strategy.NewIdentityAugmenter(),
		Logger:          logging.NoOpLogger{},
		Metrics:         metrics.NoOp{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}

	return &Engine{
		config:    opts.Config,
		gatekeep:  opts.Gatekeeper,
		extractor: opts.BeaconExtractor,
		augmenter: opts.SliceAugmenter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		registry:  newRegistry(),
	}
}

// RegisterAgent upserts an agent into the registry keyed by its id. The
// write wins over any prior registration under the same id; subsequent
// lookups see only the latest entry.
func (e *Engine) RegisterAgent(a core.Agent) { e.registry.putAgent(a) }

// RegisterVault upserts a vault into the registry keyed by its id, with the
// same last-write-wins contract as RegisterAgent.
func (e *Engine) RegisterVault(v core.Vault) { e.registry.putVault(v) }

// Agent returns a registered agent by id.
func (e *Engine) Agent(id string) (core.Agent, bool) { return e.registry.agent(id) }

// Vault returns a registered vault by id.
func (e *Engine) Vault(id string) (core.Vault, bool) { return e.registry.vault(id) }

// Agents returns the registered agents sorted by id.
func (e *Engine) Agents() []core.Agent { return e.registry.agentList() }

// Vaults returns the registered vaults sorted by id.
func (e *Engine) Vaults() []core.Vault { return e.registry.vaultList() }

// LastTrace returns the trace of the most recently completed request, or nil
// if none has been handled yet. The returned trace is read-only.
func (e *Engine) LastTrace() *core.RequestTrace { return e.lastTrace.Load() }

// execUnit carries one activated agent through contextualization, execution
// and assembly. Fields written by the execution goroutine are only read
// after the fan-out has been awaited.
type execUnit struct {
	agent  core.Agent
	entry  core.AgentTraceEntry
	slices []core.Slice
	output string
	err    *core.AgentExecutionError
}

// HandleRequest drives the full pipeline for one query and returns the
// assembled response together with its trace. The pipeline is strictly
// linear; only the execution stage fans out internally.
//
// Fatal outcomes (strategy failure, all agents failed) return a
// *core.RequestError; the trace still records every decision made up to the
// failure and becomes the engine's last trace.
func (e *Engine) HandleRequest(ctx context.Context, query string) (string, *core.RequestTrace, error) {
	started := time.Now()

	agents, vaults := e.registry.snapshot()

	trace := &core.RequestTrace{
		RequestID:   uuid.NewString(),
		Query:       query,
		Registered:  sortedIDs(agents),
		BaseBeacons: core.Beacons{},
		PerAgent:    make(map[string]core.AgentTraceEntry),
		StartedAt:   started,
	}

	finish := func(outcome, response string, err error) (string, *core.RequestTrace, error) {
		trace.FinalResponse = response
		trace.Duration = time.Since(started)
		e.lastTrace.Store(trace)
		e.metrics.ObserveRequest(outcome, trace.Duration)
		return response, trace, err
	}

	// Gate.
	selected, err := e.gatekeep.SelectAgents(ctx, query, agents)
	if err != nil {
		trace.Annotation = core.KindStrategyFailure
		return finish("strategy_failure", "", &core.RequestError{
			Kind: core.KindStrategyFailure,
			Err:  fmt.Errorf("gatekeeper failed: %w", err),
		})
	}

	activated := e.filterActivated(selected, agents, trace)
	e.metrics.ObserveActivation(len(activated))

	if len(activated) == 0 {
		trace.Annotation = core.KindNoAgentsActivated
		e.logger.Info("no agents activated", "request_id", trace.RequestID)
		return finish("fallback", e.config.FallbackResponse, nil)
	}

	// Extract.
	base, err := e.extractor.ExtractBeacons(ctx, query)
	if err != nil {
		trace.Annotation = core.KindStrategyFailure
		return finish("strategy_failure", "", &core.RequestError{
			Kind: core.KindStrategyFailure,
			Err:  fmt.Errorf("beacon extraction failed: %w", err),
		})
	}
	trace.BaseBeacons = base.Clone()

	// Contextualize.
	units := make([]*execUnit, 0, len(activated))
	for _, a := range activated {
		unit, err := e.contextualize(ctx, a, base, vaults)
		if err != nil {
			trace.Annotation = core.KindStrategyFailure
			return finish("strategy_failure", "", &core.RequestError{
				Kind: core.KindStrategyFailure,
				Err:  fmt.Errorf("slice augmentation failed for agent %s: %w", a.ID(), err),
			})
		}
		units = append(units, unit)
	}

	// Execute.
	e.execute(ctx, query, units)

	// Assemble.
	var parts []string
	var agentErrs []*core.AgentExecutionError
	for _, u := range units {
		entry := u.entry
		if u.err != nil {
			entry.Err = u.err.Error()
			agentErrs = append(agentErrs, u.err)
			e.metrics.IncAgentFailure(u.agent.ID())
			e.logger.Error("agent execution failed",
				"request_id", trace.RequestID, "agent_id", u.agent.ID(), "error", u.err.Err)
		} else {
			entry.Output = u.output
			parts = append(parts, fmt.Sprintf("--- Contribution from %s ---\n%s", u.agent.ID(), u.output))
		}
		trace.PerAgent[u.agent.ID()] = entry
	}

	if len(agentErrs) == len(units) {
		trace.Annotation = core.KindAllAgentsFailed
		return finish("all_agents_failed", "", &core.RequestError{
			Kind:        core.KindAllAgentsFailed,
			Err:         errors.New("every activated agent failed"),
			AgentErrors: agentErrs,
		})
	}

	e.logger.Info("request handled",
		"request_id", trace.RequestID, "activated", len(units), "failed", len(agentErrs))

	return finish("ok", strings.Join(parts, "\n\n"), nil)
}

// filterActivated drops gatekeeper selections unknown to the registry and
// duplicate activations of the same agent, recording both decisions in the
// trace. The trace keeps exactly one entry per activated agent, in
// activation order.
func (e *Engine) filterActivated(selected []core.Agent, agents map[string]core.Agent, trace *core.RequestTrace) []core.Agent {
	seen := make(map[string]bool, len(selected))

	var activated []core.Agent
	for _, a := range selected {
		if a == nil {
			continue
		}
		id := a.ID()
		if _, ok := agents[id]; !ok {
			trace.Dropped = append(trace.Dropped, id)
			e.logger.Warn("dropping unknown agent from gatekeeper selection",
				"request_id", trace.RequestID, "agent_id", id)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		activated = append(activated, a)
		trace.Activated = append(trace.Activated, id)
	}
	return activated
}

// contextualize refines the base beacons for one agent and gathers its
// context slices. Vault ids that do not resolve contribute an empty,
// unresolved-marked slice; a failing vault read is charged to the agent as
// an execution failure so siblings stay unaffected.
func (e *Engine) contextualize(ctx context.Context, a core.Agent, base core.Beacons, vaults map[string]core.Vault) (*execUnit, error) {
	beacons, err := e.augmenter.AugmentBeacons(ctx, a, base.Clone())
	if err != nil {
		return nil, err
	}

	unit := &execUnit{
		agent: a,
		entry: core.AgentTraceEntry{
			AgentID:          a.ID(),
			AugmentedBeacons: beacons.Clone(),
		},
	}

	retrieved := 0
	for _, vaultID := range a.VaultIDs() {
		v, ok := vaults[vaultID]
		if !ok {
			unit.entry.Slices = append(unit.entry.Slices, core.SliceTrace{VaultID: vaultID, Unresolved: true})
			e.logger.Debug("agent references unregistered vault",
				"agent_id", a.ID(), "vault_id", vaultID)
			continue
		}

		claims, err := v.RetrieveSlice(ctx, beacons, e.config.DefaultSliceLimit)
		if err != nil {
			unit.err = &core.AgentExecutionError{
				AgentID: a.ID(),
				Err:     fmt.Errorf("vault %s retrieval failed: %w", vaultID, err),
			}
			return unit, nil
		}

		ids := make([]string, len(claims))
		for i, c := range claims {
			ids[i] = c.ID
		}
		unit.slices = append(unit.slices, core.Slice{VaultID: vaultID, Claims: claims})
		unit.entry.Slices = append(unit.entry.Slices, core.SliceTrace{VaultID: vaultID, ClaimIDs: ids})
		retrieved += len(claims)
	}
	e.metrics.ObserveRetrieval(retrieved)

	return unit, nil
}

// execute fans the prepared units out to the model with bounded parallelism.
// Each unit's failure is captured on the unit itself so one agent can never
// cancel a sibling; callers read the units only after Wait returns.
func (e *Engine) execute(ctx context.Context, query string, units []*execUnit) {
	g, gctx := errgroup.WithContext(ctx)
	if n := e.config.MaxConcurrentAgents; n > 0 {
		g.SetLimit(n)
	}

	for _, u := range units {
		if u.err != nil {
			continue // contextualization already failed this agent
		}
		g.Go(func() error {
			callCtx := gctx
			if e.config.AgentTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, e.config.AgentTimeout)
				defer cancel()
			}

			out, err := u.agent.Execute(callCtx, query, u.slices)
			if err != nil {
				var execErr *core.AgentExecutionError
				if !errors.As(err, &execErr) {
					execErr = &core.AgentExecutionError{AgentID: u.agent.ID(), Err: err}
				}
				u.err = execErr
				return nil
			}
			u.output = out
			return nil
		})
	}

	// Goroutines never return errors; Wait only synchronizes the fan-out.
	_ = g.Wait()
}

func sortedIDs(agents map[string]core.Agent) []string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
