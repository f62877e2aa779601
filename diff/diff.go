package diff

import (
	"bytes"
	"encoding/json"

	"github.com/meikuraledutech/flow"
)

// FieldChange is one changed business field and its new value.
type FieldChange struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type NodeChange struct {
	Node    flow.Node     `json:"node"`
	Changes []FieldChange `json:"changes"`
}

// Paths lists the changed field paths in reporting order.
func (c NodeChange) Paths() []string { return paths(c.Changes) }

type EdgeChange struct {
	Edge    flow.Edge     `json:"edge"`
	Changes []FieldChange `json:"changes"`
}

func (c EdgeChange) Paths() []string { return paths(c.Changes) }

type NodeChanges struct {
	Created []flow.Node  `json:"created"`
	Updated []NodeChange `json:"updated"`
	Deleted []string     `json:"deleted"`
}

type EdgeChanges struct {
	Created []flow.Edge  `json:"created"`
	Updated []EdgeChange `json:"updated"`
	Deleted []string     `json:"deleted"`
}

// Result is the set of edits between a snapshot and the live graph.
type Result struct {
	Nodes NodeChanges `json:"nodes"`
	Edges EdgeChanges `json:"edges"`
}

// Empty reports whether there is nothing to save.
func (r Result) Empty() bool {
	return len(r.Nodes.Created) == 0 && len(r.Nodes.Updated) == 0 && len(r.Nodes.Deleted) == 0 &&
		len(r.Edges.Created) == 0 && len(r.Edges.Updated) == 0 && len(r.Edges.Deleted) == 0
}

// Summary holds the counts of a Result.
type Summary struct {
	NodesCreated int `json:"nodesCreated"`
	NodesUpdated int `json:"nodesUpdated"`
	NodesDeleted int `json:"nodesDeleted"`
	EdgesCreated int `json:"edgesCreated"`
	EdgesUpdated int `json:"edgesUpdated"`
	EdgesDeleted int `json:"edgesDeleted"`
}

func (r Result) Summary() Summary {
	return Summary{
		NodesCreated: len(r.Nodes.Created),
		NodesUpdated: len(r.Nodes.Updated),
		NodesDeleted: len(r.Nodes.Deleted),
		EdgesCreated: len(r.Edges.Created),
		EdgesUpdated: len(r.Edges.Updated),
		EdgesDeleted: len(r.Edges.Deleted),
	}
}

// Compute classifies every node and edge of the live graph against snap.
//
// A temporary id, or a persisted id the snapshot does not know, is created.
// A known id whose hash differs is updated when at least one business
// field differs. Snapshot ids missing from the live graph are deleted, in
// snapshot order. Compute never fails and never mutates its inputs.
func Compute(nodes []flow.Node, edges []flow.Edge, snap *Snapshot) Result {
	if snap == nil {
		snap = Empty()
	}
	var r Result

	liveNodes := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		liveNodes[n.ID] = struct{}{}
		old, known := snap.Node(n.ID)
		if flow.IsTemporaryID(n.ID) || !known {
			r.Nodes.Created = append(r.Nodes.Created, n.Clone())
			continue
		}
		if NodeHash(n, edges) == snap.NodeHashes[n.ID] {
			continue
		}
		if changes := NodeFieldChanges(n, edges, old); len(changes) > 0 {
			r.Nodes.Updated = append(r.Nodes.Updated, NodeChange{Node: n.Clone(), Changes: changes})
		}
	}
	for _, n := range snap.Nodes {
		if _, ok := liveNodes[n.ID]; !ok {
			r.Nodes.Deleted = append(r.Nodes.Deleted, n.ID)
		}
	}

	liveEdges := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		liveEdges[e.ID] = struct{}{}
		old, known := snap.Edge(e.ID)
		if flow.IsTemporaryID(e.ID) || !known {
			r.Edges.Created = append(r.Edges.Created, e.Clone())
			continue
		}
		if EdgeHash(e) == snap.EdgeHashes[e.ID] {
			continue
		}
		if changes := EdgeFieldChanges(e, old); len(changes) > 0 {
			r.Edges.Updated = append(r.Edges.Updated, EdgeChange{Edge: e.Clone(), Changes: changes})
		}
	}
	for _, e := range snap.Edges {
		if _, ok := liveEdges[e.ID]; !ok {
			r.Edges.Deleted = append(r.Edges.Deleted, e.ID)
		}
	}

	return r
}

// NodeFieldChanges compares n with its snapshot copy old. For condition
// nodes the branch map derived from edges is compared with the one the
// snapshot recorded.
func NodeFieldChanges(n flow.Node, edges []flow.Edge, old flow.Node) []FieldChange {
	var changes []FieldChange
	for _, f := range flow.NodeFields() {
		cur := f.Value(n)
		if !sameJSON(cur, f.Value(old)) {
			changes = append(changes, FieldChange{Path: f.Path, Value: cur})
		}
	}
	if n.Type == flow.NodeCondition {
		cur := flow.BranchMap(n, edges, nil)
		if !sameJSON(cur, old.Data.BranchNodes) {
			changes = append(changes, FieldChange{Path: flow.PathBranchNodes, Value: cur})
		}
	}
	return changes
}

// EdgeFieldChanges compares e with its snapshot copy old.
func EdgeFieldChanges(e flow.Edge, old flow.Edge) []FieldChange {
	var changes []FieldChange
	for _, f := range flow.EdgeFields() {
		cur := f.Value(e)
		if !sameJSON(cur, f.Value(old)) {
			changes = append(changes, FieldChange{Path: f.Path, Value: cur})
		}
	}
	return changes
}

func sameJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func paths(changes []FieldChange) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}
