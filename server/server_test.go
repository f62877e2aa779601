package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/memstore"
	"github.com/meikuraledutech/flow/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	mu     sync.Mutex
	topics []string
}

func (p *published) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func testApp(t *testing.T) (*fiber.App, *published) {
	t.Helper()
	pub := &published{}
	s := &server{
		store:     memstore.New(),
		validator: validate.New(),
		publisher: pub,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   newMetrics(),
	}
	return newApp(s), pub
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func createBody() flow.BatchSaveRequest {
	return flow.BatchSaveRequest{
		NodesToCreate: []flow.NodeRecord{
			{Name: "Start", Type: flow.NodeInput, Config: map[string]any{}},
			{Name: "Plan", Type: flow.NodeTaskGenerator, Config: map[string]any{}, PositionX: 200},
		},
		NodeTempIDs: []string{"tmp-a", "tmp-b"},
		EdgesToCreate: []flow.EdgeRecord{{
			Source: "tmp-a", Target: "tmp-b",
			SourceHandle: "tmp-a:start-output", TargetHandle: "tmp-b:task-input",
			Type: flow.EdgeDefault, Data: flow.EdgeData{RenderType: flow.DefaultRenderType},
		}},
		EdgeTempIDs: []string{"tmp-e"},
	}
}

func TestBatchSaveAndLoad(t *testing.T) {
	app, pub := testApp(t)

	resp, body := do(t, app, http.MethodGet, "/apps/a1", nil)
	assert.Equal(t, 404, resp.StatusCode)

	resp, body = do(t, app, http.MethodPost, "/apps/a1/batch", createBody())
	require.Equal(t, 200, resp.StatusCode, string(body))
	var saved flow.BatchSaveResponse
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.True(t, saved.Success)
	assert.Equal(t, 1, saved.Version)
	assert.Len(t, saved.NodeIDMapping, 2)
	assert.Equal(t, []string{"workflow/a1/saved"}, pub.topics)

	resp, body = do(t, app, http.MethodGet, "/apps/a1", nil)
	require.Equal(t, 200, resp.StatusCode)
	var g flow.GraphRecord
	require.NoError(t, json.Unmarshal(body, &g))
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, saved.NodeIDMapping["tmp-a"], g.Edges[0].Source)

	resp, body = do(t, app, http.MethodGet, "/apps/a1/versions/latest", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"version":1}`, string(body))

	resp, _ = do(t, app, http.MethodGet, "/apps/a1/versions/1", nil)
	assert.Equal(t, 200, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/apps/a1/versions/7", nil)
	assert.Equal(t, 404, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/apps/a1/versions/x", nil)
	assert.Equal(t, 400, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/apps/a1/versions?order=asc", nil)
	require.Equal(t, 200, resp.StatusCode)
	var versions []flow.Version
	require.NoError(t, json.Unmarshal(body, &versions))
	assert.Len(t, versions, 1)

	resp, _ = do(t, app, http.MethodDelete, "/apps/a1", nil)
	assert.Equal(t, 204, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/apps/a1", nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestBatchSave_UnknownReference(t *testing.T) {
	app, pub := testApp(t)
	req := createBody()
	req.EdgesToCreate[0].Target = "tmp-missing"

	resp, body := do(t, app, http.MethodPost, "/apps/a1/batch", req)
	assert.Equal(t, 422, resp.StatusCode)
	var out flow.BatchSaveResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "unknown")
	assert.Empty(t, pub.topics)

	resp, _ = do(t, app, http.MethodGet, "/apps/a1", nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestDiff(t *testing.T) {
	app, _ := testApp(t)
	nodes := []flow.Node{{ID: "tmp-1", Type: flow.NodeInput, Data: flow.NodeData{Label: "Start"}}}

	resp, body := do(t, app, http.MethodPost, "/apps/a1/diff", map[string]any{"nodes": nodes, "edges": []flow.Edge{}})
	require.Equal(t, 200, resp.StatusCode, string(body))
	var out diffResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Summary.NodesCreated)
	require.NotNil(t, out.Request)
	assert.Equal(t, []string{"tmp-1"}, out.Request.NodeTempIDs)
	assert.Equal(t, "a1", out.Request.ApplicationID)
}

func TestValidateConnection(t *testing.T) {
	app, _ := testApp(t)
	nodes := []flow.Node{
		{ID: "1", Type: flow.NodeInput, Data: flow.NodeData{Label: "Start"}},
		{ID: "2", Type: flow.NodeTaskGenerator, Data: flow.NodeData{Label: "Plan"}},
	}
	edges := []flow.Edge{{ID: "10", Source: "1", Target: "2", SourceHandle: "1:start-output", TargetHandle: "2:task-input"}}

	tests := []struct {
		name    string
		conn    flow.Connection
		status  int
		allowed bool
	}{
		{"duplicate", flow.Connection{Source: "1", Target: "2", SourceHandle: "1:start-output", TargetHandle: "2:task-input"}, 200, false},
		{"self loop", flow.Connection{Source: "2", Target: "2", SourceHandle: "2:task-output", TargetHandle: "2:task-input"}, 200, false},
		{"malformed", flow.Connection{Source: "2", Target: "1", SourceHandle: "2", TargetHandle: "1:common-input"}, 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/validate/connection", connectionRequest{Connection: tt.conn, Nodes: nodes, Edges: edges})
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.status != 200 {
				return
			}
			var res validate.Result
			require.NoError(t, json.Unmarshal(body, &res))
			assert.Equal(t, tt.allowed, res.Allowed)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestMatrixAndMetrics(t *testing.T) {
	app, _ := testApp(t)

	resp, body := do(t, app, http.MethodGet, "/handles/matrix", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "# Handle compatibility"))

	do(t, app, http.MethodPost, "/apps/m/batch", createBody())
	resp, body = do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), `flow_batch_saves_total{result="ok"} 1`)
	assert.Contains(t, string(body), `flow_batch_changes_total{entity="node",op="create"} 2`)
}

func TestViewport(t *testing.T) {
	app, _ := testApp(t)
	do(t, app, http.MethodPost, "/apps/v/batch", createBody())

	resp, _ := do(t, app, http.MethodPut, "/apps/v/viewport", flow.Viewport{X: 1, Y: 2, Zoom: 0.5})
	require.Equal(t, 204, resp.StatusCode)

	_, body := do(t, app, http.MethodGet, "/apps/v", nil)
	var g flow.GraphRecord
	require.NoError(t, json.Unmarshal(body, &g))
	require.NotNil(t, g.Viewport)
	assert.Equal(t, 0.5, g.Viewport.Zoom)
}
