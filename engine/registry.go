package engine

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentfabric/core"
)

// registry holds the fabric's shared agent and vault maps. Writers replace
// entries atomically under the lock; readers either look up single entries or
// take a full snapshot so a request never observes a half-applied update.
type registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	vaults map[string]core.Vault
}

func newRegistry() *registry {
	return &registry{
		agents: make(map[string]core.Agent),
		vaults: make(map[string]core.Vault),
	}
}

func (r *registry) putAgent(a core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID()] = a
}

func (r *registry) putVault(v core.Vault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vaults[v.ID()] = v
}

func (r *registry) agent(id string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

func (r *registry) vault(id string) (core.Vault, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vaults[id]
	return v, ok
}

// snapshot returns copies of both maps for one request's lifetime.
// Registrations landing after the snapshot affect later requests only.
func (r *registry) snapshot() (map[string]core.Agent, map[string]core.Vault) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make(map[string]core.Agent, len(r.agents))
	for id, a := range r.agents {
		agents[id] = a
	}
	vaults := make(map[string]core.Vault, len(r.vaults))
	for id, v := range r.vaults {
		vaults[id] = v
	}
	return agents, vaults
}

func (r *registry) agentList() []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]core.Agent, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.agents[id])
	}
	return out
}

func (r *registry) vaultList() []core.Vault {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.vaults))
	for id := range r.vaults {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]core.Vault, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.vaults[id])
	}
	return out
}
