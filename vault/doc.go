// Package vault contains concrete core.Vault implementations. The vault
// interface and Claim type reside in the core package; depend on core.Vault
// in your code and select an implementation (the in-memory vault below, or
// the Redis-backed vault in the redis subpackage) at wiring time.
//
// Rationale: keeps domain contracts centralized while allowing pluggable
// backends to be added without introducing dependency cycles.
package vault
