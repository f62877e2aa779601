package validate

import (
	"testing"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/handle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureNodes() map[string]*flow.Node {
	mk := func(id string, t flow.NodeType, label string) *flow.Node {
		return &flow.Node{ID: id, Type: t, Data: flow.NodeData{Label: label}}
	}
	return map[string]*flow.Node{
		"1":  mk("1", flow.NodeInput, "Start"),
		"2":  mk("2", flow.NodeTaskGenerator, "Plan"),
		"3":  mk("3", flow.NodeCondition, "Check"),
		"4":  mk("4", flow.NodeParallel, "Fan out"),
		"5":  mk("5", flow.NodeTerminal, ""),
		"6":  mk("6", flow.NodeLoop, "Loop"),
		"7":  mk("7", flow.NodeInput, "Second start"),
		"8":  mk("8", flow.NodeTaskGenerator, "Child"),
		"9":  mk("9", flow.NodeLoop, "Inner loop"),
		"10": mk("10", flow.NodeLoop, "Other loop"),
	}
}

func edge(id, src, tgt, sh, th string) flow.Edge {
	e := flow.Edge{ID: id, Source: src, Target: tgt, SourceHandle: sh, TargetHandle: th}
	if hid, err := handle.Parse(sh); err == nil {
		switch hid.Kind {
		case handle.Branch:
			e.Data.BranchName = hid.Discriminator
		case handle.Thread:
			e.Data.IsParallelChild = true
		}
	}
	return e
}

func fixtureEdges() []flow.Edge {
	return []flow.Edge{
		edge("e1", "1", "2", "1:start-output", "2:task-input"),
		edge("e2", "3", "2", "3:branch:true", "2:task-input"),
		edge("e3", "6", "2", "6:loop-body", "2:task-input"),
		edge("e4", "4", "8", "4:thread:a", "8:parallel-child-input"),
		edge("e5", "9", "10", "9:loop-body", "10:loop-feedback"),
	}
}

func TestValidateConnection(t *testing.T) {
	nodes := fixtureNodes()
	v := New()

	testCases := []struct {
		name    string
		conn    flow.Connection
		allowed bool
		reason  string
	}{
		{
			name:    "task to condition",
			conn:    flow.Connection{Source: "8", Target: "3", SourceHandle: "8:task-output", TargetHandle: "3:condition-input"},
			allowed: true,
		},
		{
			name:   "missing target",
			conn:   flow.Connection{Source: "1", Target: "99", SourceHandle: "1:start-output", TargetHandle: "99:task-input"},
			reason: `target node "99" does not exist`,
		},
		{
			name:   "self loop",
			conn:   flow.Connection{Source: "2", Target: "2", SourceHandle: "2:task-output", TargetHandle: "2:task-input"},
			reason: "a node cannot connect to itself",
		},
		{
			name:   "duplicate",
			conn:   flow.Connection{Source: "1", Target: "2", SourceHandle: "1:start-output", TargetHandle: "2:task-input"},
			reason: "connection already exists",
		},
		{
			name:   "incompatible handles",
			conn:   flow.Connection{Source: "4", Target: "2", SourceHandle: "4:thread:b", TargetHandle: "2:task-input"},
			reason: "Parallel thread output cannot connect to Task generator input",
		},
		{
			name:   "input to input",
			conn:   flow.Connection{Source: "1", Target: "7", SourceHandle: "1:start-output", TargetHandle: "7:common-input"},
			reason: "an input node cannot connect to another input node",
		},
		{
			name:   "non targetable node",
			conn:   flow.Connection{Source: "2", Target: "7", SourceHandle: "2:task-output", TargetHandle: "7:common-input"},
			reason: "Second start cannot be a connection target",
		},
		{
			name:    "second branch of a condition",
			conn:    flow.Connection{Source: "3", Target: "5", SourceHandle: "3:branch:false", TargetHandle: "5:end-input"},
			allowed: true,
		},
		{
			name:   "source handle already used",
			conn:   flow.Connection{Source: "6", Target: "3", SourceHandle: "6:loop-body", TargetHandle: "3:condition-input"},
			reason: "Loop body output of Loop allows at most 1 outgoing connection(s)",
		},
		{
			name:   "parallel child input takes one edge",
			conn:   flow.Connection{Source: "4", Target: "8", SourceHandle: "4:thread:b", TargetHandle: "8:parallel-child-input"},
			reason: "Parallel child input of Child allows at most 1 incoming connection(s)",
		},
		{
			name:   "used loop body is rejected before the feedback limit",
			conn:   flow.Connection{Source: "6", Target: "10", SourceHandle: "6:loop-body", TargetHandle: "10:loop-feedback"},
			reason: "Loop body output of Loop allows at most 1 outgoing connection(s)",
		},
		{
			name:   "terminal has no outputs",
			conn:   flow.Connection{Source: "5", Target: "2", SourceHandle: "5:common-output", TargetHandle: "2:task-input"},
			reason: "end_node cannot have default outputs",
		},
		{
			name:   "start already has its output",
			conn:   flow.Connection{Source: "1", Target: "3", SourceHandle: "1:common-output", TargetHandle: "3:condition-input"},
			reason: "Start allows at most 1 default output(s)",
		},
		{
			name:    "unknown source kind degrades to common output",
			conn:    flow.Connection{Source: "8", Target: "5", SourceHandle: "8:mystery", TargetHandle: "5:end-input"},
			allowed: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			edges := fixtureEdges()
			res, err := v.ValidateConnection(tc.conn, nodes[tc.conn.Source], nodes[tc.conn.Target], edges)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, res.Allowed)
			assert.Equal(t, tc.reason, res.Reason)
		})
	}
}

func TestValidateConnection_FeedbackLimit(t *testing.T) {
	nodes := fixtureNodes()
	nodes["11"] = &flow.Node{ID: "11", Type: flow.NodeLoop, Data: flow.NodeData{Label: "Third loop"}}

	res, err := New().ValidateConnection(
		flow.Connection{Source: "11", Target: "10", SourceHandle: "11:loop-body", TargetHandle: "10:loop-feedback"},
		nodes["11"], nodes["10"], fixtureEdges(),
	)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "Loop feedback input of Other loop allows at most 1 incoming connection(s)", res.Reason)
}

func TestValidateConnection_MissingSource(t *testing.T) {
	nodes := fixtureNodes()
	res, err := New().ValidateConnection(
		flow.Connection{Source: "x", Target: "2", SourceHandle: "x:task-output", TargetHandle: "2:task-input"},
		nil, nodes["2"], nil,
	)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "source node")
}

func TestValidateConnection_MalformedHandle(t *testing.T) {
	nodes := fixtureNodes()
	_, err := New().ValidateConnection(
		flow.Connection{Source: "1", Target: "2", SourceHandle: "garbage", TargetHandle: "2:task-input"},
		nodes["1"], nodes["2"], nil,
	)
	assert.ErrorIs(t, err, handle.ErrMalformed)
}

func TestValidateConnection_StrictRegistry(t *testing.T) {
	nodes := fixtureNodes()
	v := New(WithRegistry(handle.NewRegistry(handle.WithStrictKinds())))
	_, err := v.ValidateConnection(
		flow.Connection{Source: "8", Target: "5", SourceHandle: "8:mystery", TargetHandle: "5:end-input"},
		nodes["8"], nodes["5"], nil,
	)
	assert.ErrorIs(t, err, handle.ErrUnknownKind)
}

func TestValidateConnection_DoesNotMutate(t *testing.T) {
	nodes := fixtureNodes()
	edges := fixtureEdges()
	before := flow.CloneEdges(edges)
	src := *nodes["1"]

	_, err := New().ValidateConnection(
		flow.Connection{Source: "1", Target: "3", SourceHandle: "1:start-output", TargetHandle: "3:condition-input"},
		nodes["1"], nodes["3"], edges,
	)
	require.NoError(t, err)
	assert.Equal(t, before, edges)
	assert.Equal(t, src, *nodes["1"])
}

func TestValidateConnection_ExtraRule(t *testing.T) {
	nodes := fixtureNodes()
	lockTerminal := func(c Candidate) (Result, bool) {
		if c.Target.Type == flow.NodeTerminal {
			return reject("terminal nodes are locked"), true
		}
		return Result{}, false
	}
	v := New(WithRule(lockTerminal))

	res, err := v.ValidateConnection(
		flow.Connection{Source: "3", Target: "5", SourceHandle: "3:branch:false", TargetHandle: "5:end-input"},
		nodes["3"], nodes["5"], fixtureEdges(),
	)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "terminal nodes are locked", res.Reason)
}

func TestValidateConnection_NodeRuleOverride(t *testing.T) {
	nodes := fixtureNodes()
	v := New(WithNodeRule(flow.NodeTerminal, NodeRule{CanBeTarget: true, MaxInputs: 1}))

	edges := []flow.Edge{edge("e1", "2", "5", "2:task-output", "5:end-input")}
	res, err := v.ValidateConnection(
		flow.Connection{Source: "3", Target: "5", SourceHandle: "3:branch:true", TargetHandle: "5:end-input"},
		nodes["3"], nodes["5"], edges,
	)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "end_node accepts at most 1 incoming connection(s)", res.Reason)
}

func TestValidateConnection_IncompatiblePairs(t *testing.T) {
	nodes := fixtureNodes()
	v := New()
	r := v.Registry()

	rejected := 0
	for _, src := range r.Kinds() {
		for _, tgt := range r.Kinds() {
			if r.Compatible(src, tgt) {
				continue
			}
			conn := flow.Connection{
				Source: "2", Target: "8",
				SourceHandle: handle.ID{NodeID: "2", Kind: src, Discriminator: "x"}.String(),
				TargetHandle: handle.ID{NodeID: "8", Kind: tgt}.String(),
			}
			res, err := v.ValidateConnection(conn, nodes["2"], nodes["8"], nil)
			require.NoError(t, err, "%s -> %s", src, tgt)
			assert.False(t, res.Allowed, "%s -> %s", src, tgt)
			assert.Equal(t, r.Label(src)+" cannot connect to "+r.Label(tgt), res.Reason)
			rejected++
		}
	}
	assert.Positive(t, rejected)
}

func TestValidateDeletion(t *testing.T) {
	nodes := fixtureNodes()
	e := fixtureEdges()[0]

	assert.True(t, New().ValidateDeletion(e, nodes["1"], nodes["2"]).Allowed)

	v := New(WithDeletionRule(func(e flow.Edge, source, _ *flow.Node) (Result, bool) {
		if source != nil && source.Type == flow.NodeInput {
			return reject("the start edge is required"), true
		}
		return Result{}, false
	}))
	res := v.ValidateDeletion(e, nodes["1"], nodes["2"])
	assert.False(t, res.Allowed)
	assert.Equal(t, "the start edge is required", res.Reason)
}
