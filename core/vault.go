package core

import "context"

// Vault is a named, append-only collection of claims with beacon-based
// retrieval. Implementations must preserve insertion order across retrievals
// and must never merge, deduplicate, edit or remove claims.
type Vault interface {
	// ID returns the vault identifier, unique within a fabric.
	ID() string

	// AddClaim appends a new immutable claim and returns it. Identical
	// content is stored again, not deduplicated. Concurrent appends on the
	// same vault must serialize without losing claims.
	AddClaim(ctx context.Context, content string, beacons Beacons) (Claim, error)

	// RetrieveSlice returns every stored claim whose beacon set shares at
	// least one key with an equal value with query, in insertion order. A
	// limit > 0 truncates to the first limit matches; this is a stable cut,
	// not a ranking. An empty query yields an empty slice unless the vault
	// is explicitly configured otherwise. Pure read, no side effects.
	RetrieveSlice(ctx context.Context, query Beacons, limit int) ([]Claim, error)
}

// Slice is one vault's contribution to an agent's request context. Slices
// appear in the agent's vault declaration order; claims within a slice keep
// the vault's insertion order.
type Slice struct {
	VaultID string
	Claims  []Claim
}
