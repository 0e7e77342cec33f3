package core

import "github.com/google/uuid"

// Beacons is a set of tag key/value pairs. Claims carry beacons to describe
// what they are about; queries carry beacons to select claims at retrieval
// time.
type Beacons map[string]string

// Clone returns an independent copy of the beacon set. A nil receiver yields
// an empty, non-nil set so callers can mutate the result safely.
func (b Beacons) Clone() Beacons {
	c := make(Beacons, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// MatchesAny reports whether the receiver shares at least one key with an
// equal value with query. An empty query never matches; vaults that want
// empty queries to mean "everything" opt into that behavior explicitly.
func (b Beacons) MatchesAny(query Beacons) bool {
	for k, v := range query {
		if own, ok := b[k]; ok && own == v {
			return true
		}
	}
	return false
}

// Claim is an atomic fact stored in a vault. Claims are immutable after
// creation: NewClaim copies the supplied beacon set, and consumers must treat
// the Beacons field as read-only.
type Claim struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Beacons Beacons `json:"beacons"`
}

// NewClaim creates a claim with a fresh opaque identifier and a private copy
// of the beacon set.
func NewClaim(content string, beacons Beacons) Claim {
	return Claim{
		ID:      uuid.NewString(),
		Content: content,
		Beacons: beacons.Clone(),
	}
}
