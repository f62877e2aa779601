// Package storetest is a conformance suite for flow.Store implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/meikuraledutech/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. The store must start empty; the schema is created by Run.
func Run(t *testing.T, s flow.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSchema(ctx))

	t.Run("unknown application", func(t *testing.T) {
		rec, err := s.LoadGraph(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, rec)

		latest, err := s.LatestVersion(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, 0, latest)

		v, err := s.GetVersion(ctx, "nobody", 1)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("application id required", func(t *testing.T) {
		_, err := s.BatchSave(ctx, &flow.BatchSaveRequest{})
		assert.ErrorIs(t, err, flow.ErrApplicationRequired)
	})

	t.Run("lifecycle", func(t *testing.T) { lifecycle(t, s) })
	t.Run("failed batch changes nothing", func(t *testing.T) { atomic(t, s) })
	t.Run("viewport", func(t *testing.T) { viewport(t, s) })
}

func createRequest(appID string) *flow.BatchSaveRequest {
	return &flow.BatchSaveRequest{
		ApplicationID: appID,
		NodesToCreate: []flow.NodeRecord{
			{Name: "Start", Type: flow.NodeInput, Config: map[string]any{}, PositionX: 0, PositionY: 0},
			{Name: "Check", Type: flow.NodeCondition, Config: map[string]any{"mode": "strict"}, PositionX: 100, PositionY: 0,
				BranchNodes: map[string]flow.BranchConfig{
					"yes": {Name: "yes", Condition: "ok", TargetNodeID: "tmp-end"},
					"no":  {Name: "no", Condition: "!ok"},
				}},
			{Name: "Done", Type: flow.NodeTerminal, Config: map[string]any{}, PositionX: 200, PositionY: 0},
		},
		NodeTempIDs: []string{"tmp-start", "tmp-check", "tmp-end"},
		EdgesToCreate: []flow.EdgeRecord{
			{Source: "tmp-start", Target: "tmp-check", SourceHandle: "tmp-start:start-output", TargetHandle: "tmp-check:condition-input",
				Type: flow.EdgeDefault, Data: flow.EdgeData{RenderType: "smoothstep"}},
			{Source: "tmp-check", Target: "tmp-end", SourceHandle: "tmp-check:branch:yes", TargetHandle: "tmp-end:end-input",
				Type: flow.EdgeBranch, BranchName: "yes", Data: flow.EdgeData{RenderType: "smoothstep"}},
		},
		EdgeTempIDs: []string{"tmp-e1", "tmp-e2"},
	}
}

func lifecycle(t *testing.T, s flow.Store) {
	ctx := context.Background()
	const app = "app-lifecycle"

	resp, err := s.BatchSave(ctx, createRequest(app))
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Version)
	assert.Equal(t, flow.BatchStats{NodesCreated: 3, EdgesCreated: 2}, resp.Stats)
	require.Len(t, resp.NodeIDMapping, 3)
	require.Len(t, resp.EdgeIDMapping, 2)
	for tmp, id := range resp.NodeIDMapping {
		assert.True(t, flow.IsPersistedID(id), "%s mapped to %q", tmp, id)
	}
	start := resp.NodeIDMapping["tmp-start"]
	check := resp.NodeIDMapping["tmp-check"]
	end := resp.NodeIDMapping["tmp-end"]
	e1 := resp.EdgeIDMapping["tmp-e1"]
	e2 := resp.EdgeIDMapping["tmp-e2"]

	g, err := s.LoadGraph(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, g)
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)

	nodes := map[string]flow.NodeRecord{}
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}
	assert.Equal(t, "Check", nodes[check].Name)
	assert.Equal(t, "strict", nodes[check].Config["mode"])
	assert.Equal(t, end, nodes[check].BranchNodes["yes"].TargetNodeID)
	assert.Equal(t, "", nodes[check].BranchNodes["no"].TargetNodeID)

	edges := map[string]flow.EdgeRecord{}
	for _, e := range g.Edges {
		edges[e.ID] = e
	}
	assert.Equal(t, start, edges[e1].Source)
	assert.Equal(t, check, edges[e1].Target)
	assert.Equal(t, start+":start-output", edges[e1].SourceHandle)
	assert.Equal(t, check+":branch:yes", edges[e2].SourceHandle)
	assert.Equal(t, flow.EdgeBranch, edges[e2].Type)
	assert.Equal(t, "yes", edges[e2].BranchName)

	// update a node and an edge
	resp, err = s.BatchSave(ctx, &flow.BatchSaveRequest{
		ApplicationID: app,
		NodesToUpdate: []flow.NodeUpdate{{
			ID:            start,
			ChangedFields: []string{"data.label", "position"},
			Data:          map[string]any{"name": "Begin", "positionX": 5.0, "positionY": 7.0},
		}},
		EdgesToUpdate: []flow.EdgeUpdate{{
			ID:            e1,
			ChangedFields: []string{"label"},
			Data:          map[string]any{"label": "go"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Version)
	assert.Equal(t, flow.BatchStats{NodesUpdated: 1, EdgesUpdated: 1}, resp.Stats)

	g, err = s.LoadGraph(ctx, app)
	require.NoError(t, err)
	for _, n := range g.Nodes {
		if n.ID == start {
			assert.Equal(t, "Begin", n.Name)
			assert.Equal(t, 5.0, n.PositionX)
			assert.Equal(t, 7.0, n.PositionY)
			assert.Equal(t, flow.NodeInput, n.Type)
		}
	}
	for _, e := range g.Edges {
		if e.ID == e1 {
			assert.Equal(t, "go", e.Label)
			assert.Equal(t, start, e.Source)
		}
	}

	// deleting a node takes its edges with it
	resp, err = s.BatchSave(ctx, &flow.BatchSaveRequest{
		ApplicationID:   app,
		NodeIDsToDelete: []string{end},
		EdgeIDsToDelete: []string{e2},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Version)

	g, err = s.LoadGraph(ctx, app)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)

	// versions
	latest, err := s.LatestVersion(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	v1, err := s.GetVersion(ctx, app, 1)
	require.NoError(t, err)
	require.NotNil(t, v1)
	assert.Equal(t, 1, v1.Version)
	assert.Len(t, v1.Snapshot.Nodes, 3)
	assert.Len(t, v1.Snapshot.Edges, 2)
	assert.False(t, v1.CreatedAt.IsZero())

	missing, err := s.GetVersion(ctx, app, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	desc, err := s.ListVersions(ctx, app, 1, 2, flow.Descending)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, 3, desc[0].Version)
	assert.Equal(t, 2, desc[1].Version)

	page2, err := s.ListVersions(ctx, app, 2, 2, flow.Ascending)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, 3, page2[0].Version)

	require.NoError(t, s.DeleteApplication(ctx, app))
	g, err = s.LoadGraph(ctx, app)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func atomic(t *testing.T, s flow.Store) {
	ctx := context.Background()
	const app = "app-atomic"

	_, err := s.BatchSave(ctx, createRequest(app))
	require.NoError(t, err)
	before, err := s.LoadGraph(ctx, app)
	require.NoError(t, err)

	bad := createRequest(app)
	bad.EdgesToCreate[1].Target = "tmp-nowhere"
	_, err = s.BatchSave(ctx, bad)
	require.ErrorIs(t, err, flow.ErrUnknownReference)

	after, err := s.LoadGraph(ctx, app)
	require.NoError(t, err)
	assert.Len(t, after.Nodes, len(before.Nodes))
	assert.Len(t, after.Edges, len(before.Edges))

	latest, err := s.LatestVersion(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, 1, latest)

	_, err = s.BatchSave(ctx, &flow.BatchSaveRequest{
		ApplicationID: app,
		NodesToUpdate: []flow.NodeUpdate{{ID: "987654", Data: map[string]any{"name": "x"}}},
	})
	assert.ErrorIs(t, err, flow.ErrNodeNotFound)
}

func viewport(t *testing.T, s flow.Store) {
	ctx := context.Background()
	const app = "app-viewport"

	_, err := s.BatchSave(ctx, createRequest(app))
	require.NoError(t, err)
	require.NoError(t, s.SaveViewport(ctx, app, flow.Viewport{X: 10, Y: -4, Zoom: 1.5}))

	g, err := s.LoadGraph(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, g.Viewport)
	assert.Equal(t, flow.Viewport{X: 10, Y: -4, Zoom: 1.5}, *g.Viewport)
}
