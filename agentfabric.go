// Package agentfabric provides a high-level façade over the core engine,
// enabling rapid construction of selectively-activated multi-agent systems.
// Most applications interact with this package by:
//  1. Creating an AgentFabric via New() with the three decision strategies
//  2. Registering memory vaults and agents
//  3. Handling queries via HandleRequest and auditing them via LastTrace
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply selective strategies,
// a structured logger and a metrics recorder.
package agentfabric

import (
	"context"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/engine"
	"github.com/hupe1980/agentfabric/logging"
	"github.com/hupe1980/agentfabric/metrics"
)

// Options configures the AgentFabric instance.
type Options struct {
	// EngineConfig tunes fan-out, timeouts, slice limits and the fallback
	// response.
	EngineConfig engine.Config

	// Gatekeeper decides which registered agents activate for a query.
	// Defaults to activating every agent in sorted id order.
	Gatekeeper core.Gatekeeper

	// BeaconExtractor derives the base beacons from the query. Defaults to
	// an empty beacon set.
	BeaconExtractor core.BeaconExtractor

	// SliceAugmenter refines the base beacons per agent. Defaults to the
	// identity.
	SliceAugmenter core.SliceAugmenter

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics (defaults to NoOp recorder if nil).
	Metrics metrics.Recorder
}

// AgentFabric is the high-level façade aggregating the underlying engine.
type AgentFabric struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new AgentFabric instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentFabric {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
		Metrics:      metrics.NoOp{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		if opts.Gatekeeper != nil {
			o.Gatekeeper = opts.Gatekeeper
		}
		if opts.BeaconExtractor != nil {
			o.BeaconExtractor = opts.BeaconExtractor
		}
		if opts.SliceAugmenter != nil {
			o.SliceAugmenter = opts.SliceAugmenter
		}
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &AgentFabric{opts: opts, engine: e}
}

// RegisterAgent upserts an agent into the fabric's registry (last write
// wins per id).
func (f *AgentFabric) RegisterAgent(a core.Agent) { f.engine.RegisterAgent(a) }

// RegisterVault upserts a vault into the fabric's registry (last write wins
// per id).
func (f *AgentFabric) RegisterVault(v core.Vault) { f.engine.RegisterVault(v) }

// HandleRequest routes one query through the pipeline and returns the
// assembled response with its trace.
func (f *AgentFabric) HandleRequest(ctx context.Context, query string) (string, *core.RequestTrace, error) {
	return f.engine.HandleRequest(ctx, query)
}

// LastTrace returns the trace of the most recently completed request, or
// nil if none has been handled yet.
func (f *AgentFabric) LastTrace() *core.RequestTrace { return f.engine.LastTrace() }

// Agents returns the registered agents sorted by id.
func (f *AgentFabric) Agents() []core.Agent { return f.engine.Agents() }

// Vaults returns the registered vaults sorted by id.
func (f *AgentFabric) Vaults() []core.Vault { return f.engine.Vaults() }
