package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/meikuraledutech/flow"
)

// batchTx runs flow.ApplyBatch inside a *sql.Tx.
type batchTx struct {
	tx  *sql.Tx
	now func() time.Time
}

// rowID parses a persisted id. Anything else cannot name a row.
func rowID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

func nodeData(rec flow.NodeRecord) (string, error) {
	rec.ID = ""
	rec.ApplicationID = ""
	b, err := json.Marshal(rec)
	return string(b), err
}

func edgeData(rec flow.EdgeRecord) (string, error) {
	rec.ID = ""
	rec.ApplicationID = ""
	b, err := json.Marshal(rec)
	return string(b), err
}

func (t *batchTx) DeleteEdge(ctx context.Context, appID, id string) error {
	n, ok := rowID(id)
	if !ok {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM flow_edges WHERE id = ? AND application_id = ?`, n, appID); err != nil {
		return fmt.Errorf("flow: delete edge: %w", err)
	}
	return nil
}

// DeleteNode deletes a node; its edges are cascade-deleted.
func (t *batchTx) DeleteNode(ctx context.Context, appID, id string) error {
	n, ok := rowID(id)
	if !ok {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM flow_nodes WHERE id = ? AND application_id = ?`, n, appID); err != nil {
		return fmt.Errorf("flow: delete node: %w", err)
	}
	return nil
}

func (t *batchTx) InsertNode(ctx context.Context, appID string, rec flow.NodeRecord) (string, error) {
	data, err := nodeData(rec)
	if err != nil {
		return "", err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO flow_nodes (application_id, data) VALUES (?, ?)`, appID, data)
	if err != nil {
		return "", fmt.Errorf("flow: insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("flow: insert node: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (t *batchTx) GetNode(ctx context.Context, appID, id string) (*flow.NodeRecord, error) {
	n, ok := rowID(id)
	if !ok {
		return nil, nil
	}
	rec, err := scanNode(t.tx.QueryRowContext(ctx,
		`SELECT id, data FROM flow_nodes WHERE id = ? AND application_id = ?`, n, appID), appID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: get node: %w", err)
	}
	return rec, nil
}

func (t *batchTx) PutNode(ctx context.Context, appID string, rec flow.NodeRecord) error {
	n, ok := rowID(rec.ID)
	if !ok {
		return flow.ErrNodeNotFound
	}
	data, err := nodeData(rec)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE flow_nodes SET data = ? WHERE id = ? AND application_id = ?`, data, n, appID)
	if err != nil {
		return fmt.Errorf("flow: update node: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return flow.ErrNodeNotFound
	}
	return nil
}

// endpoints resolves the edge's nodes to row ids of this application.
func (t *batchTx) endpoints(ctx context.Context, appID string, rec flow.EdgeRecord) (int64, int64, error) {
	var ids [2]int64
	for i, id := range []string{rec.Source, rec.Target} {
		n, ok := rowID(id)
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q", flow.ErrUnknownReference, id)
		}
		var one int
		err := t.tx.QueryRowContext(ctx,
			`SELECT 1 FROM flow_nodes WHERE id = ? AND application_id = ?`, n, appID).Scan(&one)
		if err == sql.ErrNoRows {
			return 0, 0, fmt.Errorf("%w: %q", flow.ErrUnknownReference, id)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("flow: check node: %w", err)
		}
		ids[i] = n
	}
	return ids[0], ids[1], nil
}

func (t *batchTx) InsertEdge(ctx context.Context, appID string, rec flow.EdgeRecord) (string, error) {
	src, tgt, err := t.endpoints(ctx, appID, rec)
	if err != nil {
		return "", err
	}
	data, err := edgeData(rec)
	if err != nil {
		return "", err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO flow_edges (application_id, source_id, target_id, data) VALUES (?, ?, ?, ?)`,
		appID, src, tgt, data)
	if err != nil {
		return "", fmt.Errorf("flow: insert edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("flow: insert edge: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (t *batchTx) GetEdge(ctx context.Context, appID, id string) (*flow.EdgeRecord, error) {
	n, ok := rowID(id)
	if !ok {
		return nil, nil
	}
	rec, err := scanEdge(t.tx.QueryRowContext(ctx,
		`SELECT id, source_id, target_id, data FROM flow_edges WHERE id = ? AND application_id = ?`, n, appID), appID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: get edge: %w", err)
	}
	return rec, nil
}

func (t *batchTx) PutEdge(ctx context.Context, appID string, rec flow.EdgeRecord) error {
	n, ok := rowID(rec.ID)
	if !ok {
		return flow.ErrEdgeNotFound
	}
	src, tgt, err := t.endpoints(ctx, appID, rec)
	if err != nil {
		return err
	}
	data, err := edgeData(rec)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE flow_edges SET source_id = ?, target_id = ?, data = ? WHERE id = ? AND application_id = ?`,
		src, tgt, data, n, appID)
	if err != nil {
		return fmt.Errorf("flow: update edge: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return flow.ErrEdgeNotFound
	}
	return nil
}

func (t *batchTx) LoadGraph(ctx context.Context, appID string) (*flow.GraphRecord, error) {
	return loadGraph(ctx, t.tx, appID)
}

func (t *batchTx) InsertVersion(ctx context.Context, appID string, snapshot flow.GraphRecord) (int, error) {
	blob, err := flow.EncodeSnapshot(snapshot)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM flow_versions WHERE application_id = ?`, appID).Scan(&n); err != nil {
		return 0, fmt.Errorf("flow: next version: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO flow_versions (application_id, version, snapshot, created_at) VALUES (?, ?, ?, ?)`,
		appID, n, blob, t.now().UnixMilli()); err != nil {
		return 0, fmt.Errorf("flow: insert version: %w", err)
	}
	return n, nil
}
