package flow

import "fmt"

// NodeUpdate carries only the changed fields of a persisted node, keyed
// by backend field name.
type NodeUpdate struct {
	ID            string         `json:"id"`
	ChangedFields []string       `json:"changedFields"`
	Data          map[string]any `json:"data"`
}

// EdgeUpdate carries only the changed fields of a persisted edge.
type EdgeUpdate struct {
	ID            string         `json:"id"`
	ChangedFields []string       `json:"changedFields"`
	Data          map[string]any `json:"data"`
}

// BatchSaveRequest is everything one save sends to the backend.
// NodeTempIDs[i] is the client id of NodesToCreate[i]; the same holds for edges.
type BatchSaveRequest struct {
	ApplicationID   string       `json:"applicationId"`
	NodesToCreate   []NodeRecord `json:"nodesToCreate"`
	NodesToUpdate   []NodeUpdate `json:"nodesToUpdate"`
	NodeIDsToDelete []string     `json:"nodeIdsToDelete"`
	EdgesToCreate   []EdgeRecord `json:"edgesToCreate"`
	EdgesToUpdate   []EdgeUpdate `json:"edgesToUpdate"`
	EdgeIDsToDelete []string     `json:"edgeIdsToDelete"`
	NodeTempIDs     []string     `json:"nodeTempIds"`
	EdgeTempIDs     []string     `json:"edgeTempIds"`
}

// Empty reports whether the request carries no change.
func (r *BatchSaveRequest) Empty() bool {
	return len(r.NodesToCreate) == 0 && len(r.NodesToUpdate) == 0 && len(r.NodeIDsToDelete) == 0 &&
		len(r.EdgesToCreate) == 0 && len(r.EdgesToUpdate) == 0 && len(r.EdgeIDsToDelete) == 0
}

type BatchStats struct {
	NodesCreated int `json:"nodesCreated"`
	NodesUpdated int `json:"nodesUpdated"`
	NodesDeleted int `json:"nodesDeleted"`
	EdgesCreated int `json:"edgesCreated"`
	EdgesUpdated int `json:"edgesUpdated"`
	EdgesDeleted int `json:"edgesDeleted"`
}

// BatchSaveResponse maps every submitted temporary id to its persisted id.
// Version is the number of the version the save created.
type BatchSaveResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message,omitempty"`
	NodeIDMapping map[string]string `json:"nodeIdMapping"`
	EdgeIDMapping map[string]string `json:"edgeIdMapping"`
	Stats         BatchStats        `json:"stats"`
	Version       int               `json:"version"`
}

// NodeUpdateFor builds the partial update for the changed paths of n.
// Condition nodes always carry their derived branch map.
func NodeUpdateFor(n Node, edges []Edge, paths []string) (NodeUpdate, error) {
	m, err := toFieldMap(NodeToRecord(n, edges))
	if err != nil {
		return NodeUpdate{}, err
	}
	data := make(map[string]any)
	for _, p := range paths {
		keys := nodeKeys(p)
		if keys == nil {
			return NodeUpdate{}, fmt.Errorf("flow: unknown node field %q", p)
		}
		for _, k := range keys {
			data[k] = m[k]
		}
	}
	if n.Type == NodeCondition {
		data["branchNodes"] = m["branchNodes"]
	}
	return NodeUpdate{ID: n.ID, ChangedFields: append([]string(nil), paths...), Data: data}, nil
}

// EdgeUpdateFor builds the partial update for the changed paths of e.
func EdgeUpdateFor(e Edge, paths []string) (EdgeUpdate, error) {
	m, err := toFieldMap(EdgeToRecord(e))
	if err != nil {
		return EdgeUpdate{}, err
	}
	data := make(map[string]any)
	for _, p := range paths {
		keys := edgeKeys(p)
		if keys == nil {
			return EdgeUpdate{}, fmt.Errorf("flow: unknown edge field %q", p)
		}
		for _, k := range keys {
			data[k] = m[k]
		}
	}
	return EdgeUpdate{ID: e.ID, ChangedFields: append([]string(nil), paths...), Data: data}, nil
}
