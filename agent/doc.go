// Package agent provides the model-backed core.Agent implementation. A
// ModelAgent pairs an identity and role prompt with a model.Model and a set
// of declared vault ids; everything request-scoped (activation, retrieved
// slices, outcome) lives in the engine's RequestTrace instead.
package agent
