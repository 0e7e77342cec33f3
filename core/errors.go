package core

import (
	"fmt"
	"strings"
)

// ErrorKind classifies the outcomes a request can take beyond plain success.
// Fatal kinds surface as a *RequestError returned to the caller; non-fatal
// kinds surface as annotations on the RequestTrace.
type ErrorKind int

const (
	// KindNone marks a request with no annotation.
	KindNone ErrorKind = iota
	// KindStrategyFailure marks a caller-supplied strategy returning an
	// error. Fatal: strategies are trusted to be total.
	KindStrategyFailure
	// KindUnknownAgentReference marks a gatekeeper selection that named an
	// agent absent from the registry. Non-fatal, the entry is filtered.
	KindUnknownAgentReference
	// KindUnresolvedVault marks an agent vault declaration absent from the
	// registry. Non-fatal, the vault contributes an empty slice.
	KindUnresolvedVault
	// KindAgentExecutionFailure marks a failed model call for one agent.
	// Isolated to that agent, recorded in the trace.
	KindAgentExecutionFailure
	// KindNoAgentsActivated marks an empty gatekeeper selection. Non-fatal:
	// "no relevant agent" is a legitimate outcome for an unmatched query,
	// answered with the configured fallback response.
	KindNoAgentsActivated
	// KindAllAgentsFailed marks a request in which every activated agent
	// failed. Fatal, aggregating the individual causes.
	KindAllAgentsFailed
)

// String returns the canonical name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindStrategyFailure:
		return "StrategyFailure"
	case KindUnknownAgentReference:
		return "UnknownAgentReference"
	case KindUnresolvedVault:
		return "UnresolvedVault"
	case KindAgentExecutionFailure:
		return "AgentExecutionFailure"
	case KindNoAgentsActivated:
		return "NoAgentsActivated"
	case KindAllAgentsFailed:
		return "AllAgentsFailed"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the kind by name so exported traces stay readable.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// AgentExecutionError reports a failed model call for a single agent. The
// fabric isolates it to that agent; it never aborts siblings on its own.
type AgentExecutionError struct {
	AgentID string
	Err     error
}

// Error implements the error interface.
func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s execution failed: %v", e.AgentID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AgentExecutionError) Unwrap() error { return e.Err }

// RequestError is the fatal outcome of a request. Kind identifies the
// failure class; AgentErrors carries the individual causes when Kind is
// KindAllAgentsFailed.
type RequestError struct {
	Kind        ErrorKind
	Err         error
	AgentErrors []*AgentExecutionError
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if len(e.AgentErrors) == 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	ids := make([]string, len(e.AgentErrors))
	for i, ae := range e.AgentErrors {
		ids[i] = ae.AgentID
	}
	return fmt.Sprintf("%s: %v (agents: %s)", e.Kind, e.Err, strings.Join(ids, ", "))
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error { return e.Err }
