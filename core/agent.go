package core

import "context"

// Agent is a named behavioral profile backed by an external language model.
//
// Agents hold no per-request state; "activated" is a property of a request,
// recorded in its RequestTrace, which keeps a single agent instance safely
// shareable across concurrent requests. VaultIDs declares capability, not
// ownership: the ids are weak references resolved against the fabric's vault
// registry at request time, and ids that do not resolve simply contribute an
// empty slice.
type Agent interface {
	// ID returns the agent identifier, unique within a fabric.
	ID() string

	// RolePrompt returns the full behavioral contract handed to the model.
	RolePrompt() string

	// VaultIDs returns the vault ids this agent may read from.
	VaultIDs() []string

	// Execute runs the agent against the query and its retrieved context
	// slices and returns the model's text output unmodified. Failures
	// (timeout, quota, malformed response) surface as an
	// *AgentExecutionError carrying the agent id and underlying cause; the
	// orchestrator, not the agent, decides how to handle them.
	Execute(ctx context.Context, query string, slices []Slice) (string, error)
}
