package validate

import (
	"fmt"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/handle"
)

// Result is the verdict on a proposed edit. A rejection carries a reason
// suitable for showing to the user.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Result { return Result{Allowed: true} }

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Candidate is a connection under review, with everything a rule may need.
type Candidate struct {
	Conn       flow.Connection
	Source     *flow.Node
	Target     *flow.Node
	SourceKind handle.Kind
	TargetKind handle.Kind
	Edges      []flow.Edge
}

// Rule is an extra business rule. It returns a rejection and true to stop
// the connection, or false to let it through.
type Rule func(c Candidate) (Result, bool)

// DeletionRule vetoes an edge deletion by returning a rejection and true.
type DeletionRule func(e flow.Edge, source, target *flow.Node) (Result, bool)

// Validator decides whether a proposed connection or deletion is allowed.
// It never mutates its arguments.
type Validator struct {
	registry      *handle.Registry
	nodeRules     map[flow.NodeType]NodeRule
	rules         []Rule
	deletionRules []DeletionRule
}

type Option func(*Validator)

func WithRegistry(r *handle.Registry) Option {
	return func(v *Validator) { v.registry = r }
}

// WithNodeRule overrides the rule for one node type.
func WithNodeRule(t flow.NodeType, r NodeRule) Option {
	return func(v *Validator) { v.nodeRules[t] = r }
}

// WithRule appends a business rule, run after the built-in ones.
func WithRule(r Rule) Option {
	return func(v *Validator) { v.rules = append(v.rules, r) }
}

func WithDeletionRule(r DeletionRule) Option {
	return func(v *Validator) { v.deletionRules = append(v.deletionRules, r) }
}

func New(opts ...Option) *Validator {
	v := &Validator{nodeRules: DefaultNodeRules()}
	for _, o := range opts {
		o(v)
	}
	if v.registry == nil {
		v.registry = handle.NewRegistry()
	}
	return v
}

// Registry exposes the handle catalogue the validator consults.
func (v *Validator) Registry() *handle.Registry { return v.registry }

// NodeRule returns the rule for t, or the default rule for unknown types.
func (v *Validator) NodeRule(t flow.NodeType) NodeRule {
	if r, ok := v.nodeRules[t]; ok {
		return r
	}
	return defaultRule
}

// ValidateConnection checks conn against the current edges. Checks run in
// a fixed order and the first failure wins. The error is non-nil only when
// a handle id is malformed (or unknown, with a strict registry).
func (v *Validator) ValidateConnection(conn flow.Connection, source, target *flow.Node, edges []flow.Edge) (Result, error) {
	if source == nil {
		return reject("source node %q does not exist", conn.Source), nil
	}
	if target == nil {
		return reject("target node %q does not exist", conn.Target), nil
	}

	if conn.Source == conn.Target {
		return reject("a node cannot connect to itself"), nil
	}

	for _, e := range edges {
		if e.Source == conn.Source && e.Target == conn.Target && e.SourceHandle == conn.SourceHandle {
			return reject("connection already exists"), nil
		}
	}

	_, srcKind, err := v.registry.ResolveID(conn.SourceHandle)
	if err != nil {
		return Result{}, fmt.Errorf("validate: source handle: %w", err)
	}
	_, tgtKind, err := v.registry.ResolveID(conn.TargetHandle)
	if err != nil {
		return Result{}, fmt.Errorf("validate: target handle: %w", err)
	}
	if !v.registry.Compatible(srcKind, tgtKind) {
		return reject("%s cannot connect to %s", v.registry.Label(srcKind), v.registry.Label(tgtKind)), nil
	}

	c := Candidate{
		Conn:       conn,
		Source:     source,
		Target:     target,
		SourceKind: srcKind,
		TargetKind: tgtKind,
		Edges:      edges,
	}
	if res, stop := v.businessRules(c); stop {
		return res, nil
	}

	srcLimits := v.registry.Limits(srcKind)
	out := 0
	for _, e := range edges {
		if e.Source == conn.Source && e.SourceHandle == conn.SourceHandle {
			out++
		}
	}
	if !handle.Allows(srcLimits.MaxOutgoing, out) {
		return reject("%s of %s allows at most %d outgoing connection(s)",
			v.registry.Label(srcKind), nodeName(source), srcLimits.MaxOutgoing), nil
	}

	tgtLimits := v.registry.Limits(tgtKind)
	in := 0
	for _, e := range edges {
		if e.Target == conn.Target && e.TargetHandle == conn.TargetHandle {
			in++
		}
	}
	if !handle.Allows(tgtLimits.MaxIncoming, in) {
		return reject("%s of %s allows at most %d incoming connection(s)",
			v.registry.Label(tgtKind), nodeName(target), tgtLimits.MaxIncoming), nil
	}

	return allow(), nil
}

func (v *Validator) businessRules(c Candidate) (Result, bool) {
	if c.Source.Type == flow.NodeInput && c.Target.Type == flow.NodeInput {
		return reject("an input node cannot connect to another input node"), true
	}

	tgtRule := v.NodeRule(c.Target.Type)
	if !tgtRule.CanBeTarget {
		return reject("%s cannot be a connection target", nodeName(c.Target)), true
	}
	if tgtRule.MaxInputs != handle.Unlimited {
		in := 0
		for _, e := range c.Edges {
			if e.Target == c.Target.ID {
				in++
			}
		}
		if in >= tgtRule.MaxInputs {
			return reject("%s accepts at most %d incoming connection(s)", nodeName(c.Target), tgtRule.MaxInputs), true
		}
	}

	kind := edgeKindOf(c.SourceKind)
	max, ok := v.NodeRule(c.Source.Type).Outputs[kind]
	if !ok || max == 0 {
		return reject("%s cannot have %s outputs", nodeName(c.Source), kind), true
	}
	if max != handle.Unlimited {
		out := 0
		for _, e := range c.Edges {
			if e.Source == c.Source.ID && e.Kind() == kind {
				out++
			}
		}
		if out >= max {
			return reject("%s allows at most %d %s output(s)", nodeName(c.Source), max, kind), true
		}
	}

	for _, r := range v.rules {
		if res, stop := r(c); stop {
			return res, true
		}
	}
	return Result{}, false
}

// ValidateDeletion decides whether an edge may be removed. Every deletion
// is allowed unless a deletion rule objects.
func (v *Validator) ValidateDeletion(e flow.Edge, source, target *flow.Node) Result {
	for _, r := range v.deletionRules {
		if res, stop := r(e, source, target); stop {
			return res
		}
	}
	return allow()
}

func nodeName(n *flow.Node) string {
	if n.Data.Label != "" {
		return n.Data.Label
	}
	return string(n.Type)
}
