// Package core provides the foundational domain types and ports used by
// AgentFabric. It defines the core abstractions for:
//
//   - Claims (immutable, beacon-tagged facts) and Beacons (tag sets)
//   - Vaults (named, append-only claim stores with beacon retrieval)
//   - Agents (stateless behavioral profiles backed by a language model)
//   - Strategy ports (Gatekeeper, BeaconExtractor, SliceAugmenter)
//   - RequestTrace (the immutable audit record of one orchestrated request)
//   - Error kinds and typed errors shared across the pipeline
//
// The package intentionally keeps implementation concerns (persistence,
// engine orchestration, model providers) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
