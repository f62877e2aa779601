package flow

import "github.com/meikuraledutech/flow/handle"

// BranchMap derives the branch map of a condition node from the edges.
// Every declared branch is listed; the target is the edge leaving the
// node's "branch:<name>" handle, passed through remap when it has an entry.
// Nodes that are not condition nodes, or declare no branches, yield nil.
func BranchMap(n Node, edges []Edge, remap map[string]string) map[string]BranchConfig {
	if n.Type != NodeCondition || len(n.Data.BranchNodes) == 0 {
		return nil
	}
	out := make(map[string]BranchConfig, len(n.Data.BranchNodes))
	for key, declared := range n.Data.BranchNodes {
		name := declared.Name
		if name == "" {
			name = key
		}
		want := handle.ID{NodeID: n.ID, Kind: handle.Branch, Discriminator: name}.String()

		target := ""
		for _, e := range edges {
			if e.Source == n.ID && e.SourceHandle == want {
				target = e.Target
				break
			}
		}
		if mapped, ok := remap[target]; ok && target != "" {
			target = mapped
		}
		out[key] = BranchConfig{
			Name:         name,
			Condition:    declared.Condition,
			HandlerID:    declared.HandlerID,
			TargetNodeID: target,
		}
	}
	return out
}

// RemapBranchTargets rewrites branch targets through ids, in place.
func RemapBranchTargets(branches map[string]BranchConfig, ids map[string]string) {
	for k, b := range branches {
		if mapped, ok := ids[b.TargetNodeID]; ok && b.TargetNodeID != "" {
			b.TargetNodeID = mapped
			branches[k] = b
		}
	}
}
