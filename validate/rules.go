package validate

import (
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/handle"
)

// NodeRule is the per-node-type cardinality policy.
// MaxInputs counts edges into the node across all of its handles.
// Outputs bounds edges leaving the node per edge kind; a missing kind
// is forbidden.
type NodeRule struct {
	CanBeTarget bool
	MaxInputs   int
	Outputs     map[flow.EdgeKind]int
}

var defaultRule = NodeRule{
	CanBeTarget: true,
	MaxInputs:   handle.Unlimited,
	Outputs:     map[flow.EdgeKind]int{flow.EdgeDefault: 1},
}

// DefaultNodeRules returns the built-in rule set.
func DefaultNodeRules() map[flow.NodeType]NodeRule {
	single := map[flow.EdgeKind]int{flow.EdgeDefault: 1}
	open := func() NodeRule {
		return NodeRule{CanBeTarget: true, MaxInputs: handle.Unlimited, Outputs: single}
	}
	rules := map[flow.NodeType]NodeRule{
		flow.NodeInput: {CanBeTarget: false, MaxInputs: 0, Outputs: single},
		flow.NodeTerminal: {
			CanBeTarget: true, MaxInputs: handle.Unlimited, Outputs: map[flow.EdgeKind]int{},
		},
		flow.NodeTaskGenerator: open(),
		flow.NodeCondition: {
			CanBeTarget: true, MaxInputs: handle.Unlimited,
			Outputs: map[flow.EdgeKind]int{flow.EdgeBranch: handle.Unlimited},
		},
		flow.NodeParallel: {
			CanBeTarget: true, MaxInputs: handle.Unlimited,
			Outputs: map[flow.EdgeKind]int{flow.EdgeDefault: 1, flow.EdgeParallel: handle.Unlimited},
		},
		flow.NodeAPICall:       open(),
		flow.NodeDataTransform: open(),
		// body and continue are both default edges, each capped per handle
		flow.NodeLoop: {
			CanBeTarget: true, MaxInputs: handle.Unlimited,
			Outputs: map[flow.EdgeKind]int{flow.EdgeDefault: handle.Unlimited},
		},
		flow.NodeModelCall:   open(),
		flow.NodeSubWorkflow: open(),
	}
	return rules
}

// edgeKindOf classifies the edge a source handle would produce.
func edgeKindOf(k handle.Kind) flow.EdgeKind {
	switch k {
	case handle.Branch:
		return flow.EdgeBranch
	case handle.Thread:
		return flow.EdgeParallel
	default:
		return flow.EdgeDefault
	}
}
