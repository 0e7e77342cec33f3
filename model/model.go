package model

import (
	"context"
	"fmt"
	"sync"
)

// Request captures the three inputs of one language-model call: the agent's
// behavioral contract, the raw user query and the serialized context slice.
type Request struct {
	RolePrompt string `json:"role_prompt"`
	Query      string `json:"query"`
	Context    string `json:"context"`
}

// UserPrompt renders the query and retrieved context into the user-facing
// portion of the prompt. Providers send RolePrompt separately as the system
// instruction.
func (r Request) UserPrompt() string {
	return fmt.Sprintf(
		"User's query: %q\n\nRelevant information:\n%s\nBased on your role and the provided information, generate a concise, partial response.",
		r.Query, r.Context,
	)
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "gemini", "anthropic", "openai", "mock", ...
}

// Model is the single capability the fabric consumes: map a role prompt, a
// query and a context slice to text. Provider credentials and endpoint
// selection belong to the implementation's constructor; the fabric never
// reads environment state.
type Model interface {
	Invoke(ctx context.Context, req Request) (string, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Mock is a lightweight in-memory Model useful for tests & examples. It
// replays canned completions keyed by query and records every request it
// receives.
type Mock struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     []Request
}

// NewMock constructs a Mock with the given identity.
func NewMock(name string) *Mock {
	return &Mock{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a query.
func (m *Mock) AddResponse(query, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[query] = response
}

// FailWith makes every subsequent Invoke return err. Pass nil to recover.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Invoke implements Model.
func (m *Mock) Invoke(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return "", m.err
	}
	if resp, ok := m.responses[req.Query]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", req.Query), nil
}

// Calls returns a copy of every request seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }
