package vault

import (
	"context"
	"sync"

	"github.com/hupe1980/agentfabric/core"
)

// Options configures an in-memory vault.
type Options struct {
	// EmptyQueryMatchesAll makes a retrieval with an empty beacon set return
	// every stored claim instead of none. Off by default: an empty query
	// normally selects nothing.
	EmptyQueryMatchesAll bool
}

// InMemory is a process-local core.Vault backed by an append-only slice.
//
// Concurrency: appends serialize behind a mutex so no claim is lost;
// retrievals take a read lock and see a consistent snapshot. Claims are
// never edited or removed, so retrieval order equals insertion order for
// the lifetime of the vault.
type InMemory struct {
	id                   string
	emptyQueryMatchesAll bool

	mu     sync.RWMutex
	claims []core.Claim
}

// NewInMemory creates an empty in-memory vault with the given id.
func NewInMemory(id string, optFns ...func(o *Options)) *InMemory {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemory{id: id, emptyQueryMatchesAll: opts.EmptyQueryMatchesAll}
}

// ID implements core.Vault.
func (v *InMemory) ID() string { return v.id }

// AddClaim implements core.Vault. Identical content is appended again, not
// deduplicated.
func (v *InMemory) AddClaim(_ context.Context, content string, beacons core.Beacons) (core.Claim, error) {
	claim := core.NewClaim(content, beacons)
	v.mu.Lock()
	v.claims = append(v.claims, claim)
	v.mu.Unlock()
	return claim, nil
}

// RetrieveSlice implements core.Vault. Matches are returned in insertion
// order; limit > 0 truncates to the first limit matches.
func (v *InMemory) RetrieveSlice(_ context.Context, query core.Beacons, limit int) ([]core.Claim, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	matches := []core.Claim{}
	for _, claim := range v.claims {
		if !v.matches(claim, query) {
			continue
		}
		matches = append(matches, claim)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

// Len returns the number of stored claims.
func (v *InMemory) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.claims)
}

func (v *InMemory) matches(claim core.Claim, query core.Beacons) bool {
	if len(query) == 0 {
		return v.emptyQueryMatchesAll
	}
	return claim.Beacons.MatchesAny(query)
}
