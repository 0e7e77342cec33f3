package core

import "context"

// The three strategy ports below carry all request-level judgment. They are
// caller-supplied, bound to a fabric at construction and invariant for its
// lifetime. The fabric consumes them but never owns them: implementations
// should be pure functions of their inputs so that identical queries against
// identical registries produce identical traces.

// Gatekeeper decides which registered agents activate for a query, in
// activation order. The agents map is a snapshot of the registry taken at the
// start of the request; returned agents unknown to the registry are dropped
// by the fabric rather than failing the request.
type Gatekeeper interface {
	SelectAgents(ctx context.Context, query string, agents map[string]Agent) ([]Agent, error)
}

// GatekeeperFunc adapts an ordinary function to the Gatekeeper interface.
type GatekeeperFunc func(ctx context.Context, query string, agents map[string]Agent) ([]Agent, error)

// SelectAgents calls f.
func (f GatekeeperFunc) SelectAgents(ctx context.Context, query string, agents map[string]Agent) ([]Agent, error) {
	return f(ctx, query, agents)
}

// BeaconExtractor derives the base beacon set from the raw query. An error
// here is fatal to the request.
type BeaconExtractor interface {
	ExtractBeacons(ctx context.Context, query string) (Beacons, error)
}

// BeaconExtractorFunc adapts an ordinary function to the BeaconExtractor interface.
type BeaconExtractorFunc func(ctx context.Context, query string) (Beacons, error)

// ExtractBeacons calls f.
func (f BeaconExtractorFunc) ExtractBeacons(ctx context.Context, query string) (Beacons, error) {
	return f(ctx, query)
}

// SliceAugmenter refines the base beacons for one agent. It may add, override
// or drop keys; the base set it receives is a private copy, so mutating it in
// place is safe.
type SliceAugmenter interface {
	AugmentBeacons(ctx context.Context, agent Agent, base Beacons) (Beacons, error)
}

// SliceAugmenterFunc adapts an ordinary function to the SliceAugmenter interface.
type SliceAugmenterFunc func(ctx context.Context, agent Agent, base Beacons) (Beacons, error)

// AugmentBeacons calls f.
func (f SliceAugmenterFunc) AugmentBeacons(ctx context.Context, agent Agent, base Beacons) (Beacons, error) {
	return f(ctx, agent, base)
}
