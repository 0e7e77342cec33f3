// Package viz exports a finalized RequestTrace for after-the-fact auditing.
// It renders Graphviz DOT (agents, vaults, activation and slice edges) and
// plain JSON; both are pure functions over already-immutable data, so the
// fabric itself never depends on this package.
package viz

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hupe1980/agentfabric/core"
)

const claimPreviewLimit = 3

// WriteJSON writes the trace as indented JSON.
func WriteJSON(w io.Writer, trace *core.RequestTrace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(trace); err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	return nil
}

// WriteDOT renders the request as a Graphviz digraph: the full registered
// agent set (activated agents highlighted, dormant ones greyed out), the
// vault set, static "can access" edges from each agent's declarations, the
// orchestrator's activation edges and the slice edges that actually carried
// claims. Agents supplies the static structure; the trace supplies the
// decisions.
func WriteDOT(w io.Writer, trace *core.RequestTrace, agents []core.Agent) error {
	activated := make(map[string]bool, len(trace.Activated))
	for _, id := range trace.Activated {
		activated[id] = true
	}

	var b strings.Builder
	b.WriteString("digraph fabric {\n")
	fmt.Fprintf(&b, "  rankdir=LR;\n  label=%s;\n  labelloc=t;\n\n", quote("Query: "+trace.Query))

	// Agent cluster.
	b.WriteString("  subgraph cluster_agents {\n    label=\"Agents\";\n    style=filled;\n    color=lightgrey;\n")
	for _, a := range agents {
		style := "style=filled, fillcolor=whitesmoke"
		if activated[a.ID()] {
			style = "style=filled, fillcolor=lightblue, penwidth=2"
		}
		fmt.Fprintf(&b, "    %s [shape=box, %s];\n", quote(agentNode(a.ID())), style)
	}
	b.WriteString("  }\n\n")

	// Vault cluster, from declarations plus the trace.
	b.WriteString("  subgraph cluster_vaults {\n    label=\"Memory Vaults\";\n    style=filled;\n    color=lightgrey;\n")
	for _, id := range vaultIDs(trace, agents) {
		fmt.Fprintf(&b, "    %s [shape=cylinder];\n", quote(vaultNode(id)))
	}
	b.WriteString("  }\n\n")

	// Static agent to vault attachments.
	for _, a := range agents {
		for _, vid := range a.VaultIDs() {
			fmt.Fprintf(&b, "  %s -> %s [style=dashed, arrowhead=none, label=\"can access\"];\n",
				quote(agentNode(a.ID())), quote(vaultNode(vid)))
		}
	}

	fmt.Fprintf(&b, "\n  %s [shape=doublecircle, style=filled, fillcolor=gold];\n", quote("AgentFabric"))

	// Activation edges.
	for _, id := range trace.Activated {
		fmt.Fprintf(&b, "  %s -> %s [label=\"activates\", color=green, penwidth=2];\n",
			quote("AgentFabric"), quote(agentNode(id)))
	}

	// Slice edges for vault contributions that carried claims.
	for _, entry := range trace.Entries() {
		for _, s := range entry.Slices {
			if len(s.ClaimIDs) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s -> %s [label=%s, color=blue, fontcolor=blue];\n",
				quote(vaultNode(s.VaultID)), quote(agentNode(entry.AgentID)), quote(sliceLabel(s)))
		}
	}

	b.WriteString("}\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write dot: %w", err)
	}
	return nil
}

func agentNode(id string) string { return "agent_" + id }

func vaultNode(id string) string { return "vault_" + id }

// vaultIDs collects every vault id visible in the diagram: static
// declarations first, then any additional ids the trace touched.
func vaultIDs(trace *core.RequestTrace, agents []core.Agent) []string {
	seen := map[string]bool{}
	for _, a := range agents {
		for _, vid := range a.VaultIDs() {
			seen[vid] = true
		}
	}
	for _, entry := range trace.Entries() {
		for _, s := range entry.Slices {
			seen[s.VaultID] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sliceLabel(s core.SliceTrace) string {
	label := fmt.Sprintf("%d claims", len(s.ClaimIDs))
	preview := s.ClaimIDs
	if len(preview) > claimPreviewLimit {
		preview = preview[:claimPreviewLimit]
	}
	for _, id := range preview {
		label += "\n- " + shorten(id, 12)
	}
	return label
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}
