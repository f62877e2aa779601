package flow

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flow/handle"
)

// BatchTx is the storage a batch save runs against. Implementations wrap
// a single transaction so that ApplyBatch is all-or-nothing.
// Get methods return nil, nil when the record does not exist.
type BatchTx interface {
	DeleteEdge(ctx context.Context, appID, id string) error
	DeleteNode(ctx context.Context, appID, id string) error
	InsertNode(ctx context.Context, appID string, rec NodeRecord) (string, error)
	GetNode(ctx context.Context, appID, id string) (*NodeRecord, error)
	PutNode(ctx context.Context, appID string, rec NodeRecord) error
	InsertEdge(ctx context.Context, appID string, rec EdgeRecord) (string, error)
	GetEdge(ctx context.Context, appID, id string) (*EdgeRecord, error)
	PutEdge(ctx context.Context, appID string, rec EdgeRecord) error
	LoadGraph(ctx context.Context, appID string) (*GraphRecord, error)
	InsertVersion(ctx context.Context, appID string, snapshot GraphRecord) (int, error)
}

// ApplyBatch runs a batch save against tx: deletes first, then node
// creates and updates, then edge creates and updates with endpoints
// resolved through the new node ids, then a version of the result.
// The caller commits tx only when ApplyBatch succeeds.
func ApplyBatch(ctx context.Context, tx BatchTx, req *BatchSaveRequest) (*BatchSaveResponse, error) {
	appID := req.ApplicationID
	if appID == "" {
		return nil, ErrApplicationRequired
	}
	if len(req.NodeTempIDs) != len(req.NodesToCreate) {
		return nil, fmt.Errorf("flow: %d node temp ids for %d created nodes", len(req.NodeTempIDs), len(req.NodesToCreate))
	}
	if len(req.EdgeTempIDs) != len(req.EdgesToCreate) {
		return nil, fmt.Errorf("flow: %d edge temp ids for %d created edges", len(req.EdgeTempIDs), len(req.EdgesToCreate))
	}

	resp := &BatchSaveResponse{
		NodeIDMapping: map[string]string{},
		EdgeIDMapping: map[string]string{},
	}

	for _, id := range req.EdgeIDsToDelete {
		if err := tx.DeleteEdge(ctx, appID, id); err != nil {
			return nil, err
		}
		resp.Stats.EdgesDeleted++
	}
	for _, id := range req.NodeIDsToDelete {
		if err := tx.DeleteNode(ctx, appID, id); err != nil {
			return nil, err
		}
		resp.Stats.NodesDeleted++
	}

	created := make([]NodeRecord, len(req.NodesToCreate))
	for i, rec := range req.NodesToCreate {
		rec.ID = ""
		rec.ApplicationID = appID
		id, err := tx.InsertNode(ctx, appID, rec)
		if err != nil {
			return nil, err
		}
		rec.ID = id
		created[i] = rec
		resp.NodeIDMapping[req.NodeTempIDs[i]] = id
		resp.Stats.NodesCreated++
	}
	ids := resp.NodeIDMapping

	// branch targets of new nodes may point at nodes created after them
	for _, rec := range created {
		if !branchTargetsIn(rec.BranchNodes, ids) {
			continue
		}
		RemapBranchTargets(rec.BranchNodes, ids)
		if err := tx.PutNode(ctx, appID, rec); err != nil {
			return nil, err
		}
	}

	for _, u := range req.NodesToUpdate {
		rec, err := tx.GetNode(ctx, appID, u.ID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("flow: update node %q: %w", u.ID, ErrNodeNotFound)
		}
		if err := ApplyNodeFields(rec, u.Data); err != nil {
			return nil, err
		}
		rec.ID = u.ID
		rec.ApplicationID = appID
		RemapBranchTargets(rec.BranchNodes, ids)
		if err := tx.PutNode(ctx, appID, *rec); err != nil {
			return nil, err
		}
		resp.Stats.NodesUpdated++
	}

	for i, rec := range req.EdgesToCreate {
		rec.ID = ""
		rec.ApplicationID = appID
		if err := resolveEndpoints(&rec, ids); err != nil {
			return nil, err
		}
		id, err := tx.InsertEdge(ctx, appID, rec)
		if err != nil {
			return nil, err
		}
		resp.EdgeIDMapping[req.EdgeTempIDs[i]] = id
		resp.Stats.EdgesCreated++
	}

	for _, u := range req.EdgesToUpdate {
		rec, err := tx.GetEdge(ctx, appID, u.ID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("flow: update edge %q: %w", u.ID, ErrEdgeNotFound)
		}
		if err := ApplyEdgeFields(rec, u.Data); err != nil {
			return nil, err
		}
		rec.ID = u.ID
		rec.ApplicationID = appID
		if err := resolveEndpoints(rec, ids); err != nil {
			return nil, err
		}
		if err := tx.PutEdge(ctx, appID, *rec); err != nil {
			return nil, err
		}
		resp.Stats.EdgesUpdated++
	}

	snap, err := tx.LoadGraph(ctx, appID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = &GraphRecord{ApplicationID: appID}
	}
	snap.Viewport = nil
	version, err := tx.InsertVersion(ctx, appID, *snap)
	if err != nil {
		return nil, err
	}
	resp.Version = version
	resp.Success = true
	return resp, nil
}

// resolveEndpoints points rec at persisted node ids. Temporary ids must
// be in ids; handle ids follow their node.
func resolveEndpoints(rec *EdgeRecord, ids map[string]string) error {
	var err error
	if rec.Source, err = resolveNodeID(rec.Source, ids); err != nil {
		return err
	}
	if rec.Target, err = resolveNodeID(rec.Target, ids); err != nil {
		return err
	}
	rec.SourceHandle = rehandle(rec.SourceHandle, ids)
	rec.TargetHandle = rehandle(rec.TargetHandle, ids)
	return nil
}

func resolveNodeID(id string, ids map[string]string) (string, error) {
	if mapped, ok := ids[id]; ok {
		return mapped, nil
	}
	if IsPersistedID(id) {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReference, id)
}

func rehandle(s string, ids map[string]string) string {
	id, err := handle.Parse(s)
	if err != nil {
		return s
	}
	if mapped, ok := ids[id.NodeID]; ok {
		return id.WithNode(mapped).String()
	}
	return s
}

func branchTargetsIn(branches map[string]BranchConfig, ids map[string]string) bool {
	for _, b := range branches {
		if _, ok := ids[b.TargetNodeID]; ok && b.TargetNodeID != "" {
			return true
		}
	}
	return false
}
