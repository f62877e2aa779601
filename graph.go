package flow

import (
	"fmt"
	"maps"
)

// Graph is the in-memory working graph of one application.
type Graph struct {
	ApplicationID string    `json:"applicationId,omitempty"`
	Nodes         []Node    `json:"nodes"`
	Edges         []Edge    `json:"edges"`
	Viewport      *Viewport `json:"viewport,omitempty"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(id string) *Edge {
	for i := range g.Edges {
		if g.Edges[i].ID == id {
			return &g.Edges[i]
		}
	}
	return nil
}

// AddNode appends n. The id must be set and unused.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("flow: add node: empty id")
	}
	if g.Node(n.ID) != nil {
		return fmt.Errorf("flow: add node %q: %w", n.ID, ErrDuplicateID)
	}
	g.Nodes = append(g.Nodes, n)
	return nil
}

// AddEdge appends e. Both endpoints must already be in the graph.
func (g *Graph) AddEdge(e Edge) error {
	if e.ID == "" {
		return fmt.Errorf("flow: add edge: empty id")
	}
	if g.Edge(e.ID) != nil {
		return fmt.Errorf("flow: add edge %q: %w", e.ID, ErrDuplicateID)
	}
	if g.Node(e.Source) == nil {
		return fmt.Errorf("flow: add edge source %q: %w", e.Source, ErrNodeNotFound)
	}
	if g.Node(e.Target) == nil {
		return fmt.Errorf("flow: add edge target %q: %w", e.Target, ErrNodeNotFound)
	}
	g.Edges = append(g.Edges, e)
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	idx := -1
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNodeNotFound
	}
	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)

	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	return nil
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id string) error {
	for i := range g.Edges {
		if g.Edges[i].ID == id {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return nil
		}
	}
	return ErrEdgeNotFound
}

// Replace swaps the whole content of g, keeping the application id.
func (g *Graph) Replace(nodes []Node, edges []Edge) {
	g.Nodes = CloneNodes(nodes)
	g.Edges = CloneEdges(edges)
}

// DanglingEdges returns edges whose source or target is not a node of g.
func (g *Graph) DanglingEdges() []Edge {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}
	var out []Edge
	for _, e := range g.Edges {
		_, okS := ids[e.Source]
		_, okT := ids[e.Target]
		if !okS || !okT {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		ApplicationID: g.ApplicationID,
		Nodes:         CloneNodes(g.Nodes),
		Edges:         CloneEdges(g.Edges),
	}
	if g.Viewport != nil {
		vp := *g.Viewport
		c.Viewport = &vp
	}
	return c
}

func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	d := n.Data
	d.Config = cloneMap(d.Config)
	d.APIConfig = cloneMap(d.APIConfig)
	if d.ParallelConfig != nil {
		pc := *d.ParallelConfig
		d.ParallelConfig = &pc
	}
	if d.BranchNodes != nil {
		d.BranchNodes = maps.Clone(d.BranchNodes)
	}
	if d.ParallelChildren != nil {
		d.ParallelChildren = append([]ParallelChild(nil), d.ParallelChildren...)
	}
	n.Data = d
	return n
}

// Clone returns a deep copy of e.
func (e Edge) Clone() Edge {
	e.Style = cloneMap(e.Style)
	return e
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
