// Package engine implements the orchestration pipeline at the core of
// AgentFabric.
//
// One request flows through six strictly linear stages:
//
//	Received -> Gated -> Contextualized -> Executed -> Assembled -> Traced
//
// The gatekeeper selects agents against a registry snapshot, the beacon
// extractor derives the base tag set from the query, each activated agent
// gets its beacons refined and its declared vaults filtered into a context
// slice, and the model calls fan out with bounded parallelism. Failures of
// individual agents are isolated and recorded; only strategy failures and
// the loss of every activated agent abort a request. Every decision lands in
// an immutable RequestTrace that replaces the engine's last trace atomically
// on completion.
package engine
