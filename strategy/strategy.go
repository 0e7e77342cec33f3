// Package strategy ships reference implementations of the three decision
// ports (Gatekeeper, BeaconExtractor, SliceAugmenter). Strategies remain a
// caller concern at the fabric boundary; the implementations here cover the
// common deterministic cases used by the examples and tests, and double as
// templates for custom policies.
package strategy

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hupe1980/agentfabric/core"
)

// ActivateAll activates every registered agent, sorted by id so activation
// order stays deterministic.
type ActivateAll struct{}

// NewActivateAll creates the permissive gatekeeper.
func NewActivateAll() *ActivateAll { return &ActivateAll{} }

// SelectAgents implements core.Gatekeeper.
func (*ActivateAll) SelectAgents(_ context.Context, _ string, agents map[string]core.Agent) ([]core.Agent, error) {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	selected := make([]core.Agent, 0, len(ids))
	for _, id := range ids {
		selected = append(selected, agents[id])
	}
	return selected, nil
}

// KeywordGatekeeper activates an agent when any of its configured keywords
// occurs in the query (case-insensitive substring). Agents are considered in
// sorted id order so results are deterministic regardless of map iteration.
type KeywordGatekeeper struct {
	keywords map[string][]string
	order    []string
}

// NewKeywordGatekeeper builds a gatekeeper from an agent-id to keyword-list
// mapping.
func NewKeywordGatekeeper(keywords map[string][]string) *KeywordGatekeeper {
	order := make([]string, 0, len(keywords))
	for id := range keywords {
		order = append(order, id)
	}
	sort.Strings(order)
	return &KeywordGatekeeper{keywords: keywords, order: order}
}

// SelectAgents implements core.Gatekeeper.
func (g *KeywordGatekeeper) SelectAgents(_ context.Context, query string, agents map[string]core.Agent) ([]core.Agent, error) {
	lowered := strings.ToLower(query)

	var selected []core.Agent
	for _, id := range g.order {
		a, ok := agents[id]
		if !ok {
			continue
		}
		for _, kw := range g.keywords[id] {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				selected = append(selected, a)
				break
			}
		}
	}
	return selected, nil
}

// RegexExtractor derives beacons by matching one pattern per beacon key
// against the query. The first match of each pattern becomes the value; keys
// whose pattern does not match are absent from the result.
type RegexExtractor struct {
	patterns map[string]*regexp.Regexp
	keys     []string
}

// NewRegexExtractor compiles the key to pattern mapping up front so a broken
// pattern fails at construction rather than mid-request.
func NewRegexExtractor(patterns map[string]string) (*RegexExtractor, error) {
	compiled := make(map[string]*regexp.Regexp, len(patterns))
	keys := make([]string, 0, len(patterns))
	for key, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for beacon %q: %w", key, err)
		}
		compiled[key] = re
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &RegexExtractor{patterns: compiled, keys: keys}, nil
}

// ExtractBeacons implements core.BeaconExtractor.
func (e *RegexExtractor) ExtractBeacons(_ context.Context, query string) (core.Beacons, error) {
	beacons := core.Beacons{}
	for _, key := range e.keys {
		if match := e.patterns[key].FindString(query); match != "" {
			beacons[key] = match
		}
	}
	return beacons, nil
}

// StaticBeacons returns a fixed beacon set for every query.
type StaticBeacons struct {
	beacons core.Beacons
}

// NewStaticBeacons creates the constant extractor.
func NewStaticBeacons(beacons core.Beacons) *StaticBeacons {
	return &StaticBeacons{beacons: beacons.Clone()}
}

// ExtractBeacons implements core.BeaconExtractor.
func (s *StaticBeacons) ExtractBeacons(context.Context, string) (core.Beacons, error) {
	return s.beacons.Clone(), nil
}

// IdentityAugmenter passes the base beacons through unchanged.
type IdentityAugmenter struct{}

// NewIdentityAugmenter creates the pass-through augmenter.
func NewIdentityAugmenter() *IdentityAugmenter { return &IdentityAugmenter{} }

// AugmentBeacons implements core.SliceAugmenter.
func (*IdentityAugmenter) AugmentBeacons(_ context.Context, _ core.Agent, base core.Beacons) (core.Beacons, error) {
	return base, nil
}

// OverlayAugmenter merges a per-agent beacon overlay onto the base set.
// Overlay values win on key collisions; agents without an overlay get the
// base set unchanged.
type OverlayAugmenter struct {
	overlays map[string]core.Beacons
}

// NewOverlayAugmenter builds an augmenter from an agent-id to overlay mapping.
func NewOverlayAugmenter(overlays map[string]core.Beacons) *OverlayAugmenter {
	return &OverlayAugmenter{overlays: overlays}
}

// AugmentBeacons implements core.SliceAugmenter.
func (a *OverlayAugmenter) AugmentBeacons(_ context.Context, agent core.Agent, base core.Beacons) (core.Beacons, error) {
	merged := base.Clone()
	for k, v := range a.overlays[agent.ID()] {
		merged[k] = v
	}
	return merged, nil
}
