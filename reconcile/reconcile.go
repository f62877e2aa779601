// Package reconcile renames temporary ids in a working graph to the ids
// the backend issued for them.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/handle"
)

// Submitted lists the temporary ids a save sent to the backend.
type Submitted struct {
	NodeIDs []string
	EdgeIDs []string
}

// Mapping is the backend's temporary → persisted id answer.
type Mapping struct {
	Nodes map[string]string
	Edges map[string]string
}

// Gaps returns the submitted ids the mapping does not cover.
func Gaps(s Submitted, m Mapping) (nodes, edges []string) {
	for _, id := range s.NodeIDs {
		if _, ok := m.Nodes[id]; !ok {
			nodes = append(nodes, id)
		}
	}
	for _, id := range s.EdgeIDs {
		if _, ok := m.Edges[id]; !ok {
			edges = append(edges, id)
		}
	}
	return nodes, edges
}

// Reconcile applies m to g. If m misses any submitted id, g is left
// untouched and the error wraps flow.ErrReconciliationGap. Otherwise the
// renames are computed on a copy and swapped in as a whole.
func Reconcile(g *flow.Graph, s Submitted, m Mapping) error {
	if nodes, edges := Gaps(s, m); len(nodes) > 0 || len(edges) > 0 {
		return fmt.Errorf("%w: nodes %v edges %v", flow.ErrReconciliationGap, nodes, edges)
	}

	work := g.Clone()
	p := NewPass(work, m)
	p.Nodes()
	p.Edges()

	if dangling := work.DanglingEdges(); len(dangling) > 0 {
		return fmt.Errorf("reconcile: %d edge(s) left dangling, first %q", len(dangling), dangling[0].ID)
	}
	g.Nodes = work.Nodes
	g.Edges = work.Edges
	return nil
}

// Pass holds the state shared by the node and edge passes. The node pass
// records which node renames it applied, and the edge pass rewrites edges
// from that record, so Nodes must run before Edges.
type Pass struct {
	g       *flow.Graph
	m       Mapping
	renamed map[string]string
}

func NewPass(g *flow.Graph, m Mapping) *Pass {
	return &Pass{g: g, m: m, renamed: map[string]string{}}
}

// Nodes renames every node the mapping covers.
func (p *Pass) Nodes() {
	for i := range p.g.Nodes {
		n := &p.g.Nodes[i]
		if to, ok := p.m.Nodes[n.ID]; ok && to != n.ID {
			p.renamed[n.ID] = to
			n.ID = to
		}
	}
	for i := range p.g.Nodes {
		flow.RemapBranchTargets(p.g.Nodes[i].Data.BranchNodes, p.renamed)
	}
}

// Edges rewrites endpoints, handle ids and edge ids. An edge whose
// original id is in the edge mapping takes the mapped id. Other temporary
// edge ids have embedded renamed node ids replaced. Persisted edge ids are
// never touched here: node and edge ids come from separate sequences, so a
// renamed node id can equal an unrelated edge id.
func (p *Pass) Edges() {
	olds := make([]string, 0, len(p.renamed))
	for old := range p.renamed {
		olds = append(olds, old)
	}
	// longest first so "tmp-42" is replaced before "tmp-4"
	sort.Slice(olds, func(i, j int) bool {
		if len(olds[i]) != len(olds[j]) {
			return len(olds[i]) > len(olds[j])
		}
		return olds[i] < olds[j]
	})

	for i := range p.g.Edges {
		e := &p.g.Edges[i]
		original := e.ID

		if to, ok := p.renamed[e.Source]; ok {
			e.Source = to
		}
		if to, ok := p.renamed[e.Target]; ok {
			e.Target = to
		}
		e.SourceHandle = p.rehandle(e.SourceHandle)
		e.TargetHandle = p.rehandle(e.TargetHandle)

		if to, ok := p.m.Edges[original]; ok {
			e.ID = to
			continue
		}
		if flow.IsTemporaryID(original) {
			e.ID = replaceTokens(e.ID, olds, p.renamed)
		}
	}
}

func (p *Pass) rehandle(s string) string {
	id, err := handle.Parse(s)
	if err != nil {
		return s
	}
	if to, ok := p.renamed[id.NodeID]; ok {
		return id.WithNode(to).String()
	}
	return s
}

// replaceTokens replaces every occurrence of the olds in s in one pass,
// so replaced text is not scanned again. Earlier olds win at the same
// position, so longer ids must come first.
func replaceTokens(s string, olds []string, renamed map[string]string) string {
	pairs := make([]string, 0, 2*len(olds))
	for _, old := range olds {
		if old != "" {
			pairs = append(pairs, old, renamed[old])
		}
	}
	if len(pairs) == 0 {
		return s
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
