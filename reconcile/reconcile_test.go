package reconcile

import (
	"sort"
	"testing"

	"github.com/meikuraledutech/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedGraph() *flow.Graph {
	return &flow.Graph{
		Nodes: []flow.Node{
			{ID: "tmp-42", Type: flow.NodeCondition, Data: flow.NodeData{BranchNodes: map[string]flow.BranchConfig{
				"yes": {Name: "yes", TargetNodeID: "tmp-7"},
			}}},
			{ID: "tmp-7", Type: flow.NodeTerminal},
			{ID: "3", Type: flow.NodeInput},
		},
		Edges: []flow.Edge{
			{ID: "tmp-42-tmp-7", Source: "tmp-42", Target: "tmp-7", SourceHandle: "tmp-42:branch:yes", TargetHandle: "tmp-7:end-input"},
			{ID: "8", Source: "3", Target: "tmp-42", SourceHandle: "3:start-output", TargetHandle: "tmp-42:condition-input"},
		},
	}
}

func TestReconcile(t *testing.T) {
	g := savedGraph()
	err := Reconcile(g,
		Submitted{NodeIDs: []string{"tmp-42", "tmp-7"}, EdgeIDs: []string{"tmp-42-tmp-7"}},
		Mapping{
			Nodes: map[string]string{"tmp-42": "501", "tmp-7": "502"},
			Edges: map[string]string{"tmp-42-tmp-7": "9001"},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "501", g.Nodes[0].ID)
	assert.Equal(t, "502", g.Nodes[1].ID)
	assert.Equal(t, "502", g.Nodes[0].Data.BranchNodes["yes"].TargetNodeID)

	e := g.Edges[0]
	assert.Equal(t, "9001", e.ID)
	assert.Equal(t, "501", e.Source)
	assert.Equal(t, "502", e.Target)
	assert.Equal(t, "501:branch:yes", e.SourceHandle)
	assert.Equal(t, "502:end-input", e.TargetHandle)

	assert.Equal(t, "8", g.Edges[1].ID)
	assert.Equal(t, "501", g.Edges[1].Target)
	assert.Equal(t, "501:condition-input", g.Edges[1].TargetHandle)
	assert.Empty(t, g.DanglingEdges())
}

func TestReconcile_SingleNodeMapping(t *testing.T) {
	g := &flow.Graph{
		Nodes: []flow.Node{{ID: "tmp-42"}, {ID: "tmp-7"}},
		Edges: []flow.Edge{{ID: "tmp-42-tmp-7", Source: "tmp-42", Target: "tmp-7"}},
	}
	err := Reconcile(g,
		Submitted{NodeIDs: []string{"tmp-42"}, EdgeIDs: []string{"tmp-42-tmp-7"}},
		Mapping{
			Nodes: map[string]string{"tmp-42": "501"},
			Edges: map[string]string{"tmp-42-tmp-7": "9001"},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "501", g.Edges[0].Source)
	assert.Equal(t, "9001", g.Edges[0].ID)
}

func TestReconcile_EmbeddedIDs(t *testing.T) {
	g := &flow.Graph{
		Nodes: []flow.Node{{ID: "tmp-4"}, {ID: "tmp-42"}},
		Edges: []flow.Edge{{ID: "e-tmp-42-tmp-4", Source: "tmp-42", Target: "tmp-4"}},
	}
	err := Reconcile(g,
		Submitted{NodeIDs: []string{"tmp-4", "tmp-42"}},
		Mapping{Nodes: map[string]string{"tmp-4": "10", "tmp-42": "11"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "e-11-10", g.Edges[0].ID)
}

func TestReconcile_PersistedEdgeIDsKept(t *testing.T) {
	// Node "3" came back through an undo and was saved again as "6". Edge
	// "3" is an unrelated persisted edge.
	g := &flow.Graph{
		Nodes: []flow.Node{{ID: "1"}, {ID: "3"}, {ID: "4"}, {ID: "tmp-9"}},
		Edges: []flow.Edge{
			{ID: "3", Source: "4", Target: "1", SourceHandle: "4:task-output", TargetHandle: "1:task-input"},
			{ID: "e-3-tmp-9", Source: "3", Target: "tmp-9", SourceHandle: "3:task-output", TargetHandle: "tmp-9:task-input"},
		},
	}
	err := Reconcile(g,
		Submitted{NodeIDs: []string{"3", "tmp-9"}, EdgeIDs: []string{"e-3-tmp-9"}},
		Mapping{
			Nodes: map[string]string{"3": "6", "tmp-9": "7"},
			Edges: map[string]string{"e-3-tmp-9": "4"},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "3", g.Edges[0].ID)
	assert.Equal(t, "4:task-output", g.Edges[0].SourceHandle)
	assert.Equal(t, "4", g.Edges[1].ID)
	assert.Equal(t, "6", g.Edges[1].Source)
	assert.Equal(t, "6:task-output", g.Edges[1].SourceHandle)
}

func TestReconcile_TemporaryEdgeWithoutMapping(t *testing.T) {
	g := &flow.Graph{
		Nodes: []flow.Node{{ID: "tmp-42"}, {ID: "5"}},
		Edges: []flow.Edge{{ID: "xy-edge__tmp-42tmp-42:task-output-55:task-input", Source: "tmp-42", Target: "5"}},
	}
	err := Reconcile(g,
		Submitted{NodeIDs: []string{"tmp-42"}},
		Mapping{Nodes: map[string]string{"tmp-42": "501"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "xy-edge__501501:task-output-55:task-input", g.Edges[0].ID)
}

func TestReconcile_Gap(t *testing.T) {
	g := savedGraph()
	before := g.Clone()

	err := Reconcile(g,
		Submitted{NodeIDs: []string{"tmp-42", "tmp-7"}, EdgeIDs: []string{"tmp-42-tmp-7"}},
		Mapping{
			Nodes: map[string]string{"tmp-42": "501"},
			Edges: map[string]string{"tmp-42-tmp-7": "9001"},
		},
	)
	require.ErrorIs(t, err, flow.ErrReconciliationGap)
	assert.Contains(t, err.Error(), "tmp-7")
	assert.Equal(t, before, g, "a gap must not rename anything")
}

func TestGaps(t *testing.T) {
	nodes, edges := Gaps(
		Submitted{NodeIDs: []string{"a", "b"}, EdgeIDs: []string{"x"}},
		Mapping{Nodes: map[string]string{"a": "1"}},
	)
	assert.Equal(t, []string{"b"}, nodes)
	assert.Equal(t, []string{"x"}, edges)
}

func TestPass_EdgesBeforeNodesLeavesDanglingEdges(t *testing.T) {
	g := savedGraph()
	p := NewPass(g, Mapping{
		Nodes: map[string]string{"tmp-42": "501", "tmp-7": "502"},
		Edges: map[string]string{"tmp-42-tmp-7": "9001"},
	})

	p.Edges()
	p.Nodes()

	dangling := g.DanglingEdges()
	require.Len(t, dangling, 2)
	assert.Equal(t, "tmp-42", dangling[0].Source)
	assert.Equal(t, "tmp-42", dangling[1].Target)
}

func TestReplaceTokens(t *testing.T) {
	testCases := []struct {
		name    string
		s       string
		renamed map[string]string
		want    string
	}{
		{"leading id", "tmp-42-tmp-7", map[string]string{"tmp-42": "501"}, "501-tmp-7"},
		{"longer id wins", "tmp-42-tmp-4", map[string]string{"tmp-4": "9", "tmp-42": "501"}, "501-9"},
		{"whole string", "tmp-7", map[string]string{"tmp-7": "1"}, "1"},
		{"inside identifier", "x_tmp-7", map[string]string{"tmp-7": "1"}, "x_1"},
		{"followed by handle", "xy-edge__tmp-42tmp-42:common-output-tmp-7tmp-7:task-input",
			map[string]string{"tmp-42": "501", "tmp-7": "502"}, "xy-edge__501501:common-output-502502:task-input"},
		{"repeated", "a-a-a", map[string]string{"a": "b"}, "b-b-b"},
		{"no chaining", "e-5-12", map[string]string{"5": "12", "12": "20"}, "e-12-20"},
		{"nothing renamed", "abc", map[string]string{}, "abc"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			olds := make([]string, 0, len(tc.renamed))
			for k := range tc.renamed {
				olds = append(olds, k)
			}
			sort.Slice(olds, func(i, j int) bool {
				if len(olds[i]) != len(olds[j]) {
					return len(olds[i]) > len(olds[j])
				}
				return olds[i] < olds[j]
			})
			assert.Equal(t, tc.want, replaceTokens(tc.s, olds, tc.renamed))
		})
	}
}
