package handle

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Compatible(t *testing.T) {
	r := NewRegistry()

	testCases := []struct {
		name     string
		src, tgt Kind
		expected bool
	}{
		{"start to task", StartOutput, TaskInput, true},
		{"task to end", TaskOutput, EndInput, true},
		{"branch to llm", Branch, ModelInput, true},
		{"branch to parallel child", Branch, ParallelChildInput, false},
		{"thread to parallel child", Thread, ParallelChildInput, true},
		{"thread to task", Thread, TaskInput, false},
		{"loop body to feedback", LoopBody, LoopFeedback, true},
		{"loop body to end", LoopBody, EndInput, false},
		{"loop body to workflow", LoopBody, WorkflowInput, false},
		{"loop continue to end", LoopContinue, EndInput, true},
		{"continue to feedback", LoopContinue, LoopFeedback, false},
		{"workflow output to workflow input", WorkflowOutput, WorkflowInput, true},
		{"input as source", TaskInput, TaskInput, false},
		{"output as target", TaskOutput, TaskOutput, false},
		{"unknown pair", Kind("x"), TaskInput, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, r.Compatible(tc.src, tc.tgt))
		})
	}
}

func TestRegistry_InputsHaveNoTargets(t *testing.T) {
	r := NewRegistry()
	for _, k := range r.Kinds() {
		if r.IsInput(k) {
			assert.Empty(t, r.Targets(k), "input kind %s", k)
		}
	}
}

func TestRegistry_TargetsMatchCompatible(t *testing.T) {
	r := NewRegistry()
	for _, src := range r.Kinds() {
		targets := r.Targets(src)
		for _, tgt := range r.Kinds() {
			assert.Equal(t, r.Compatible(src, tgt), contains(targets, tgt), "%s -> %s", src, tgt)
			if r.Compatible(src, tgt) {
				assert.False(t, r.IsInput(src), "input kind %s as source", src)
				assert.True(t, r.IsInput(tgt), "output kind %s as target", tgt)
			}
		}
	}
}

func contains(ks []Kind, k Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

func TestRegistry_Limits(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, Limits{MaxIncoming: 0, MaxOutgoing: 1}, r.Limits(TaskOutput))
	assert.Equal(t, Limits{MaxIncoming: Unlimited, MaxOutgoing: 0}, r.Limits(TaskInput))
	assert.Equal(t, Limits{MaxIncoming: 1, MaxOutgoing: 0}, r.Limits(ParallelChildInput))
	assert.Equal(t, Limits{MaxIncoming: 1, MaxOutgoing: 0}, r.Limits(LoopFeedback))
	assert.True(t, r.IsInput(LoopFeedback))
	assert.False(t, r.IsInput(LoopBody))
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(Unlimited, 1000))
	assert.True(t, Allows(1, 0))
	assert.False(t, Allows(1, 1))
	assert.False(t, Allows(0, 0))
}

func TestRegistry_ResolveUnknownDegrades(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRegistry(WithLogger(logger))

	k, err := r.Resolve("mystery")
	require.NoError(t, err)
	assert.Equal(t, CommonOutput, k)
	assert.Contains(t, buf.String(), "unknown handle kind")
	assert.Contains(t, buf.String(), "mystery")
}

func TestRegistry_ResolveStrict(t *testing.T) {
	r := NewRegistry(WithStrictKinds())

	_, err := r.Resolve("mystery")
	assert.ErrorIs(t, err, ErrUnknownKind)

	k, err := r.Resolve(Branch)
	require.NoError(t, err)
	assert.Equal(t, Branch, k)
}

func TestRegistry_ResolveID(t *testing.T) {
	r := NewRegistry()

	id, k, err := r.ResolveID("3:branch:no")
	require.NoError(t, err)
	assert.Equal(t, "3", id.NodeID)
	assert.Equal(t, Branch, k)

	_, _, err = r.ResolveID("broken")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRegistry_Markdown(t *testing.T) {
	md := NewRegistry().Markdown()

	assert.True(t, strings.HasPrefix(md, "# Handle compatibility"))
	assert.Contains(t, md, "| Parallel thread output |")
	assert.Contains(t, md, "| Loop feedback input | `loop-feedback` | input | 1 | 0 |")
	assert.Contains(t, md, "| Task generator input | `task-input` | input | unlimited | 0 |")
}
