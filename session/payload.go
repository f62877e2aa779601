package session

import (
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/diff"
	"github.com/meikuraledutech/flow/reconcile"
)

// BuildRequest turns a diff into a batch save request. It also returns
// the temporary ids the request submits, for checking the backend's
// id mapping afterwards.
func BuildRequest(appID string, r diff.Result, edges []flow.Edge) (*flow.BatchSaveRequest, reconcile.Submitted, error) {
	req := &flow.BatchSaveRequest{
		ApplicationID:   appID,
		NodesToCreate:   []flow.NodeRecord{},
		NodesToUpdate:   []flow.NodeUpdate{},
		NodeIDsToDelete: append([]string{}, r.Nodes.Deleted...),
		EdgesToCreate:   []flow.EdgeRecord{},
		EdgesToUpdate:   []flow.EdgeUpdate{},
		EdgeIDsToDelete: append([]string{}, r.Edges.Deleted...),
		NodeTempIDs:     []string{},
		EdgeTempIDs:     []string{},
	}

	for _, n := range r.Nodes.Created {
		rec := flow.NodeToRecord(n, edges)
		rec.ID = ""
		rec.ApplicationID = appID
		req.NodesToCreate = append(req.NodesToCreate, rec)
		req.NodeTempIDs = append(req.NodeTempIDs, n.ID)
	}
	for _, c := range r.Nodes.Updated {
		u, err := flow.NodeUpdateFor(c.Node, edges, c.Paths())
		if err != nil {
			return nil, reconcile.Submitted{}, err
		}
		req.NodesToUpdate = append(req.NodesToUpdate, u)
	}

	for _, e := range r.Edges.Created {
		rec := flow.EdgeToRecord(e)
		rec.ID = ""
		rec.ApplicationID = appID
		req.EdgesToCreate = append(req.EdgesToCreate, rec)
		req.EdgeTempIDs = append(req.EdgeTempIDs, e.ID)
	}
	for _, c := range r.Edges.Updated {
		u, err := flow.EdgeUpdateFor(c.Edge, c.Paths())
		if err != nil {
			return nil, reconcile.Submitted{}, err
		}
		req.EdgesToUpdate = append(req.EdgesToUpdate, u)
	}

	sub := reconcile.Submitted{
		NodeIDs: append([]string(nil), req.NodeTempIDs...),
		EdgeIDs: append([]string(nil), req.EdgeTempIDs...),
	}
	return req, sub, nil
}
