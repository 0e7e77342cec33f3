package core

import "time"

// SliceTrace records one vault's contribution to an agent's context slice.
// Unresolved marks vault ids that did not resolve against the registry; such
// entries stay in the trace so the leniency is auditable, never silent.
type SliceTrace struct {
	VaultID    string   `json:"vault_id"`
	ClaimIDs   []string `json:"claim_ids"`
	Unresolved bool     `json:"unresolved,omitempty"`
}

// AgentTraceEntry records the per-agent decisions and outcome of one request.
// Err is empty when the agent succeeded.
type AgentTraceEntry struct {
	AgentID          string       `json:"agent_id"`
	AugmentedBeacons Beacons      `json:"augmented_beacons"`
	Slices           []SliceTrace `json:"slices"`
	Output           string       `json:"output,omitempty"`
	Err              string       `json:"error,omitempty"`
}

// RetrievedClaimIDs flattens the per-vault claim ids in declaration order.
func (e AgentTraceEntry) RetrievedClaimIDs() []string {
	var ids []string
	for _, s := range e.Slices {
		ids = append(ids, s.ClaimIDs...)
	}
	return ids
}

// Failed reports whether the agent's execution failed.
func (e AgentTraceEntry) Failed() bool { return e.Err != "" }

// RequestTrace is the immutable audit record of one request: which agents
// the gatekeeper activated, which beacons were extracted and how they were
// refined per agent, which claims each agent saw and how each execution
// ended. The fabric constructs one trace per request and replaces (never
// merges) the previous one; consumers must treat it as read-only.
type RequestTrace struct {
	RequestID     string                     `json:"request_id"`
	Query         string                     `json:"query"`
	Registered    []string                   `json:"registered"`
	Activated     []string                   `json:"activated"`
	Dropped       []string                   `json:"dropped,omitempty"`
	BaseBeacons   Beacons                    `json:"base_beacons"`
	PerAgent      map[string]AgentTraceEntry `json:"per_agent"`
	FinalResponse string                     `json:"final_response"`
	Annotation    ErrorKind                  `json:"annotation,omitempty"`
	StartedAt     time.Time                  `json:"started_at"`
	Duration      time.Duration              `json:"duration"`
}

// Entries returns the per-agent entries in activation order. The trace holds
// exactly one entry per activated agent.
func (t *RequestTrace) Entries() []AgentTraceEntry {
	entries := make([]AgentTraceEntry, 0, len(t.Activated))
	for _, id := range t.Activated {
		entries = append(entries, t.PerAgent[id])
	}
	return entries
}
