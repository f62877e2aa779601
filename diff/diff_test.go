package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meikuraledutech/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseGraph() ([]flow.Node, []flow.Edge) {
	nodes := []flow.Node{
		{ID: "1", Type: flow.NodeInput, Position: flow.Position{X: 0, Y: 0}, Data: flow.NodeData{Label: "Start"}},
		{ID: "2", Type: flow.NodeCondition, Position: flow.Position{X: 200, Y: 0}, Data: flow.NodeData{
			Label: "Check",
			BranchNodes: map[string]flow.BranchConfig{
				"yes": {Name: "yes", Condition: "score > 5"},
				"no":  {Name: "no", Condition: "score <= 5"},
			},
		}},
		{ID: "3", Type: flow.NodeModelCall, Position: flow.Position{X: 400, Y: -100}, Data: flow.NodeData{Label: "Answer", Prompt: "hi"}},
		{ID: "4", Type: flow.NodeTerminal, Position: flow.Position{X: 600, Y: 0}, Data: flow.NodeData{Label: "Done"}},
	}
	edges := []flow.Edge{
		{ID: "10", Source: "1", Target: "2", SourceHandle: "1:start-output", TargetHandle: "2:condition-input", Type: "smoothstep"},
		{ID: "11", Source: "2", Target: "3", SourceHandle: "2:branch:yes", TargetHandle: "3:llm-input", Type: "smoothstep",
			Data: flow.EdgeData{BranchName: "yes"}},
		{ID: "12", Source: "3", Target: "4", SourceHandle: "3:llm-output", TargetHandle: "4:end-input", Type: "smoothstep"},
	}
	return nodes, edges
}

func TestCompute_NoChanges(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	r := Compute(nodes, edges, snap)
	assert.True(t, r.Empty())
}

func TestCompute_DisplayStateIgnored(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	nodes[0].Selected = true
	nodes[2].Data.Loading = true
	nodes[2].Data.ParallelChildren = []flow.ParallelChild{{ID: "c1"}}
	edges[0].Selected = true

	assert.True(t, Compute(nodes, edges, snap).Empty())
}

func TestCompute_UpdatedLabel(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	nodes[2].Data.Label = "Reply"
	r := Compute(nodes, edges, snap)

	require.Len(t, r.Nodes.Updated, 1)
	assert.Equal(t, "3", r.Nodes.Updated[0].Node.ID)
	assert.Equal(t, []FieldChange{{Path: "data.label", Value: "Reply"}}, r.Nodes.Updated[0].Changes)
	assert.Empty(t, r.Nodes.Created)
	assert.Empty(t, r.Nodes.Deleted)
	assert.Empty(t, r.Edges.Updated)
}

func TestCompute_PositionAndType(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	nodes[2].Position = flow.Position{X: 410, Y: -90}
	nodes[2].Type = flow.NodeTaskGenerator
	r := Compute(nodes, edges, snap)

	require.Len(t, r.Nodes.Updated, 1)
	assert.Equal(t, []string{"position", "type"}, r.Nodes.Updated[0].Paths())
	assert.Equal(t, flow.Position{X: 410, Y: -90}, r.Nodes.Updated[0].Changes[0].Value)
}

func TestCompute_CreatedAndDeleted(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	// drop node 4 and its edge, add a temporary node and a node
	// with a persisted id the snapshot never saw
	nodes = nodes[:3]
	edges = edges[:2]
	nodes = append(nodes,
		flow.Node{ID: "tmp-1", Type: flow.NodeTerminal},
		flow.Node{ID: "77", Type: flow.NodeTerminal},
	)
	edges = append(edges, flow.Edge{ID: "tmp-e", Source: "3", Target: "tmp-1", SourceHandle: "3:llm-output", TargetHandle: "tmp-1:end-input"})

	r := Compute(nodes, edges, snap)

	require.Len(t, r.Nodes.Created, 2)
	assert.Equal(t, "tmp-1", r.Nodes.Created[0].ID)
	assert.Equal(t, "77", r.Nodes.Created[1].ID)
	assert.Equal(t, []string{"4"}, r.Nodes.Deleted)
	require.Len(t, r.Edges.Created, 1)
	assert.Equal(t, "tmp-e", r.Edges.Created[0].ID)
	assert.Equal(t, []string{"12"}, r.Edges.Deleted)
	assert.Empty(t, r.Nodes.Updated)

	assert.Equal(t, Summary{NodesCreated: 2, NodesDeleted: 1, EdgesCreated: 1, EdgesDeleted: 1}, r.Summary())
}

func TestCompute_BranchRewire(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	// "yes" now leads straight to the end node
	edges[1].Target = "4"
	edges[1].TargetHandle = "4:end-input"

	r := Compute(nodes, edges, snap)

	require.Len(t, r.Nodes.Updated, 1)
	cond := r.Nodes.Updated[0]
	assert.Equal(t, "2", cond.Node.ID)
	assert.Equal(t, []string{"data.branchNodes"}, cond.Paths())
	branches := cond.Changes[0].Value.(map[string]flow.BranchConfig)
	assert.Equal(t, "4", branches["yes"].TargetNodeID)
	assert.Equal(t, "", branches["no"].TargetNodeID)

	require.Len(t, r.Edges.Updated, 1)
	assert.Equal(t, []string{"target", "targetHandle"}, r.Edges.Updated[0].Paths())
}

func TestCompute_CachedBranchMapIgnored(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	// a stale cached target on the live node must not register as a change
	b := nodes[1].Data.BranchNodes["no"]
	b.TargetNodeID = "3"
	nodes[1].Data.BranchNodes["no"] = b

	assert.True(t, Compute(nodes, edges, snap).Empty())
}

func TestCompute_EdgeFields(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	edges[2].Type = "bezier"
	edges[2].Label = "final"
	edges[2].Animated = true

	r := Compute(nodes, edges, snap)
	require.Len(t, r.Edges.Updated, 1)
	assert.Equal(t, []string{"label", "animated", "data.renderType"}, r.Edges.Updated[0].Paths())
	assert.Empty(t, r.Nodes.Updated)
}

func TestCompute_ParallelKind(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	edges[0].Data.IsParallelChild = true
	r := Compute(nodes, edges, snap)

	require.Len(t, r.Edges.Updated, 1)
	want := []FieldChange{
		{Path: "type", Value: flow.EdgeParallel},
		{Path: "data", Value: true},
	}
	if d := cmp.Diff(want, r.Edges.Updated[0].Changes); d != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", d)
	}
}

func TestCompute_DoesNotMutateInputs(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)
	nodes[0].Data.Label = "Begin"

	beforeNodes := flow.CloneNodes(nodes)
	beforeEdges := flow.CloneEdges(edges)
	beforeSnap := snap.Hash()

	_ = Compute(nodes, edges, snap)

	assert.Equal(t, beforeNodes, nodes)
	assert.Equal(t, beforeEdges, edges)
	assert.Equal(t, beforeSnap, snap.Hash())
}

func TestCompute_NilSnapshot(t *testing.T) {
	nodes, edges := baseGraph()
	r := Compute(nodes, edges, nil)
	assert.Len(t, r.Nodes.Created, 4)
	assert.Len(t, r.Edges.Created, 3)
}

func TestNodeHash(t *testing.T) {
	nodes, edges := baseGraph()
	n := nodes[2]

	h := NodeHash(n, edges)
	assert.Len(t, h, 64)
	assert.Equal(t, h, NodeHash(n.Clone(), edges))

	n.Selected = true
	assert.Equal(t, h, NodeHash(n, edges), "display state must not change the hash")

	n.Data.Config = map[string]any{"temperature": 0.2}
	assert.NotEqual(t, h, NodeHash(n, edges))

	renamed := nodes[2]
	renamed.ID = "999"
	assert.Equal(t, h, NodeHash(renamed, edges), "ids are not business fields")
}

func TestNodeHash_EmptyConfigEqualsNil(t *testing.T) {
	n := flow.Node{ID: "1", Type: flow.NodeTaskGenerator}
	m := n
	m.Data.Config = map[string]any{}
	assert.Equal(t, NodeHash(n, nil), NodeHash(m, nil))
}

func TestEdgeHash_DiffersFromNodeDomain(t *testing.T) {
	assert.NotEqual(t, NodeHash(flow.Node{}, nil), EdgeHash(flow.Edge{}))
}

func TestGraphHash(t *testing.T) {
	nodes, edges := baseGraph()
	h := GraphHash(nodes, edges)

	reordered := []flow.Node{nodes[3], nodes[2], nodes[1], nodes[0]}
	assert.Equal(t, h, GraphHash(reordered, edges))

	nodes[0].ID = "100"
	assert.NotEqual(t, h, GraphHash(nodes, edges))
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, &flow.Viewport{X: 1, Y: 2, Zoom: 1})

	nodes[2].Data.Label = "changed"
	edges[0].Label = "changed"

	n, ok := snap.Node("3")
	require.True(t, ok)
	assert.Equal(t, "Answer", n.Data.Label)
	e, ok := snap.Edge("10")
	require.True(t, ok)
	assert.Equal(t, "", e.Label)
	assert.Equal(t, 1.0, snap.Viewport.Zoom)

	_, ok = snap.Node("nope")
	assert.False(t, ok)
}

func TestSnapshot_StoresDerivedBranchMap(t *testing.T) {
	nodes, edges := baseGraph()
	snap := NewSnapshot(nodes, edges, nil)

	cond, ok := snap.Node("2")
	require.True(t, ok)
	assert.Equal(t, "3", cond.Data.BranchNodes["yes"].TargetNodeID)
	assert.Equal(t, "", cond.Data.BranchNodes["no"].TargetNodeID)
	assert.Len(t, cond.Data.BranchNodes, 2)
}
