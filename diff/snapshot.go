package diff

import "github.com/meikuraledutech/flow"

// Snapshot is the last-persisted state the live graph is compared with.
// Condition nodes hold the branch map derived when the snapshot was taken.
// A snapshot is never modified; saving replaces it with a new one.
type Snapshot struct {
	Nodes      []flow.Node       `json:"nodes"`
	Edges      []flow.Edge       `json:"edges"`
	NodeHashes map[string]string `json:"nodeHashes"`
	EdgeHashes map[string]string `json:"edgeHashes"`
	Viewport   *flow.Viewport    `json:"viewport,omitempty"`

	nodeIdx map[string]int
	edgeIdx map[string]int
}

// NewSnapshot deep-copies the graph and records the hash of every node and edge.
func NewSnapshot(nodes []flow.Node, edges []flow.Edge, vp *flow.Viewport) *Snapshot {
	s := &Snapshot{
		Nodes:      flow.CloneNodes(nodes),
		Edges:      flow.CloneEdges(edges),
		NodeHashes: make(map[string]string, len(nodes)),
		EdgeHashes: make(map[string]string, len(edges)),
		nodeIdx:    make(map[string]int, len(nodes)),
		edgeIdx:    make(map[string]int, len(edges)),
	}
	if s.Nodes == nil {
		s.Nodes = []flow.Node{}
	}
	if s.Edges == nil {
		s.Edges = []flow.Edge{}
	}
	for i := range s.Nodes {
		n := &s.Nodes[i]
		if n.Type == flow.NodeCondition {
			n.Data.BranchNodes = flow.BranchMap(*n, s.Edges, nil)
		}
		s.NodeHashes[n.ID] = NodeHash(*n, s.Edges)
		s.nodeIdx[n.ID] = i
	}
	for i, e := range s.Edges {
		s.EdgeHashes[e.ID] = EdgeHash(e)
		s.edgeIdx[e.ID] = i
	}
	if vp != nil {
		v := *vp
		s.Viewport = &v
	}
	return s
}

// Empty returns the snapshot of a graph that has never been saved.
func Empty() *Snapshot { return NewSnapshot(nil, nil, nil) }

// Node returns the snapshot copy of a node.
func (s *Snapshot) Node(id string) (flow.Node, bool) {
	i, ok := s.nodeIdx[id]
	if !ok {
		return flow.Node{}, false
	}
	return s.Nodes[i], true
}

// Edge returns the snapshot copy of an edge.
func (s *Snapshot) Edge(id string) (flow.Edge, bool) {
	i, ok := s.edgeIdx[id]
	if !ok {
		return flow.Edge{}, false
	}
	return s.Edges[i], true
}

// Hash fingerprints the snapshot's graph; see GraphHash.
func (s *Snapshot) Hash() string { return GraphHash(s.Nodes, s.Edges) }
