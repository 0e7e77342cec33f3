// Package config loads a declarative fabric definition (vaults with seed
// claims, agents with role prompts and vault grants, engine tuning) from
// YAML and applies it against a fabric. Provider credentials are not part of
// the definition; they belong to the model constructor alone.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfabric/agent"
	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/engine"
	"github.com/hupe1980/agentfabric/model"
	"github.com/hupe1980/agentfabric/vault"
)

// Registry is the subset of the fabric the definition registers into. Both
// agentfabric.AgentFabric and engine.Engine satisfy it.
type Registry interface {
	RegisterAgent(core.Agent)
	RegisterVault(core.Vault)
}

// ClaimDef seeds one claim into a vault.
type ClaimDef struct {
	Content string            `yaml:"content"`
	Beacons map[string]string `yaml:"beacons"`
}

// VaultDef declares one in-memory vault and its seed claims.
type VaultDef struct {
	ID                   string     `yaml:"id"`
	EmptyQueryMatchesAll bool       `yaml:"empty_query_matches_all"`
	Claims               []ClaimDef `yaml:"claims"`
}

// AgentDef declares one model-backed agent.
type AgentDef struct {
	ID         string   `yaml:"id"`
	RolePrompt string   `yaml:"role_prompt"`
	Vaults     []string `yaml:"vaults"`
}

// EngineDef overlays tuning values onto an engine.Config. Zero values leave
// the base untouched; AgentTimeout uses Go duration syntax ("30s", "2m").
type EngineDef struct {
	MaxConcurrentAgents int    `yaml:"max_concurrent_agents"`
	AgentTimeout        string `yaml:"agent_timeout"`
	DefaultSliceLimit   int    `yaml:"default_slice_limit"`
	FallbackResponse    string `yaml:"fallback_response"`
}

// Definition is the root of a fabric configuration file.
type Definition struct {
	Vaults []VaultDef `yaml:"vaults"`
	Agents []AgentDef `yaml:"agents"`
	Engine EngineDef  `yaml:"engine"`
}

// Load parses and validates a definition. Unknown fields are rejected so
// typos fail loudly.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to decode fabric definition: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a definition from path.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fabric definition: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (d *Definition) validate() error {
	vaultIDs := make(map[string]bool, len(d.Vaults))
	for _, v := range d.Vaults {
		if v.ID == "" {
			return fmt.Errorf("vault with empty id")
		}
		if vaultIDs[v.ID] {
			return fmt.Errorf("duplicate vault id %q", v.ID)
		}
		vaultIDs[v.ID] = true
	}

	agentIDs := make(map[string]bool, len(d.Agents))
	for _, a := range d.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if agentIDs[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		agentIDs[a.ID] = true
		if a.RolePrompt == "" {
			return fmt.Errorf("agent %q has no role_prompt", a.ID)
		}
		// Vault grants may reference ids outside this file; unresolved ids
		// degrade to empty slices at request time, so only duplicates within
		// the grant list are rejected.
		granted := make(map[string]bool, len(a.Vaults))
		for _, vid := range a.Vaults {
			if granted[vid] {
				return fmt.Errorf("agent %q grants vault %q twice", a.ID, vid)
			}
			granted[vid] = true
		}
	}

	if d.Engine.AgentTimeout != "" {
		if _, err := time.ParseDuration(d.Engine.AgentTimeout); err != nil {
			return fmt.Errorf("invalid agent_timeout: %w", err)
		}
	}
	return nil
}

// EngineConfig overlays the definition's engine tuning onto base.
func (d *Definition) EngineConfig(base engine.Config) engine.Config {
	cfg := base
	if d.Engine.MaxConcurrentAgents > 0 {
		cfg.MaxConcurrentAgents = d.Engine.MaxConcurrentAgents
	}
	if d.Engine.AgentTimeout != "" {
		// Validity checked in Load.
		if timeout, err := time.ParseDuration(d.Engine.AgentTimeout); err == nil {
			cfg.AgentTimeout = timeout
		}
	}
	if d.Engine.DefaultSliceLimit > 0 {
		cfg.DefaultSliceLimit = d.Engine.DefaultSliceLimit
	}
	if d.Engine.FallbackResponse != "" {
		cfg.FallbackResponse = d.Engine.FallbackResponse
	}
	return cfg
}

// Apply builds the declared vaults (seeded with their claims) and agents
// backed by m, and registers everything into reg.
func (d *Definition) Apply(ctx context.Context, reg Registry, m model.Model) error {
	for _, vd := range d.Vaults {
		v := vault.NewInMemory(vd.ID, func(o *vault.Options) {
			o.EmptyQueryMatchesAll = vd.EmptyQueryMatchesAll
		})
		for _, cd := range vd.Claims {
			if _, err := v.AddClaim(ctx, cd.Content, core.Beacons(cd.Beacons)); err != nil {
				return fmt.Errorf("failed to seed vault %q: %w", vd.ID, err)
			}
		}
		reg.RegisterVault(v)
	}

	for _, ad := range d.Agents {
		reg.RegisterAgent(agent.NewModelAgent(ad.ID, m, func(o *agent.Options) {
			o.RolePrompt = ad.RolePrompt
			o.VaultIDs = ad.Vaults
		}))
	}
	return nil
}
