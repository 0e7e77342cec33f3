// Package redis implements core.Vault on top of Redis. Claims are stored as
// JSON entries of a Redis list, so insertion order survives restarts and is
// shared between processes; RPUSH serializes concurrent appends on the
// server. Beacon filtering happens client-side to keep the matching rule in
// one place.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentfabric/core"
)

// Option configures a Vault.
type Option func(*Vault)

// WithPrefix sets the key prefix for vault data. Defaults to "agentfabric:vault:".
func WithPrefix(prefix string) Option {
	return func(v *Vault) {
		v.prefix = prefix
	}
}

// WithEmptyQueryMatchesAll makes an empty beacon query return every stored
// claim instead of none.
func WithEmptyQueryMatchesAll() Option {
	return func(v *Vault) {
		v.emptyQueryMatchesAll = true
	}
}

// Vault implements core.Vault using Redis.
type Vault struct {
	id                   string
	client               *backend.Client
	prefix               string
	emptyQueryMatchesAll bool
}

// New creates a Redis vault with its own client.
func New(id, address, password string, db int, opts ...Option) *Vault {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(id, client, opts...)
}

// NewFromClient creates a Redis vault from an existing client.
func NewFromClient(id string, client *backend.Client, opts ...Option) *Vault {
	v := &Vault{
		id:     id,
		client: client,
		prefix: "agentfabric:vault:",
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vault) key() string {
	return v.prefix + v.id + ":claims"
}

// ID implements core.Vault.
func (v *Vault) ID() string { return v.id }

// AddClaim implements core.Vault.
func (v *Vault) AddClaim(ctx context.Context, content string, beacons core.Beacons) (core.Claim, error) {
	claim := core.NewClaim(content, beacons)

	data, err := json.Marshal(claim)
	if err != nil {
		return core.Claim{}, fmt.Errorf("failed to marshal claim: %w", err)
	}

	if err := v.client.RPush(ctx, v.key(), data).Err(); err != nil {
		return core.Claim{}, fmt.Errorf("failed to append claim: %w", err)
	}

	return claim, nil
}

// RetrieveSlice implements core.Vault. The full list is read and filtered
// client-side; list order is the append order, so retrieval keeps the same
// guarantees as the in-memory vault.
func (v *Vault) RetrieveSlice(ctx context.Context, query core.Beacons, limit int) ([]core.Claim, error) {
	raw, err := v.client.LRange(ctx, v.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read claims: %w", err)
	}

	matches := []core.Claim{}
	for _, entry := range raw {
		var claim core.Claim
		if err := json.Unmarshal([]byte(entry), &claim); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claim: %w", err)
		}
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

func (v *Vault) matches(claim core.Claim, query core.Beacons) bool {
	if len(query) == 0 {
		return v.emptyQueryMatchesAll
	}
	return claim.Beacons.MatchesAny(query)
}
