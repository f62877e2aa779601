package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/flow"
)

// batchTx runs flow.ApplyBatch inside a pgx transaction.
type batchTx struct {
	tx pgx.Tx
}

// nodeData is what the data column holds: the record without its keys.
func nodeData(rec flow.NodeRecord) flow.NodeRecord {
	rec.ID = ""
	rec.ApplicationID = ""
	return rec
}

func scanNode(row pgx.Row, appID string) (*flow.NodeRecord, error) {
	var (
		id  int64
		rec flow.NodeRecord
	)
	if err := row.Scan(&id, &rec); err != nil {
		return nil, err
	}
	rec.ID = formatID(id)
	rec.ApplicationID = appID
	return &rec, nil
}

// listNodes returns all nodes of an application, ordered by id.
// Returns an empty slice (not nil) if none found.
func listNodes(ctx context.Context, q querier, appID string) ([]flow.NodeRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT id, data FROM flow_nodes WHERE application_id = $1 ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("flow: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []flow.NodeRecord{}
	for rows.Next() {
		rec, err := scanNode(rows, appID)
		if err != nil {
			return nil, fmt.Errorf("flow: scan node: %w", err)
		}
		nodes = append(nodes, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows nodes: %w", err)
	}
	return nodes, nil
}

// InsertNode inserts a node and returns its generated id.
func (t *batchTx) InsertNode(ctx context.Context, appID string, rec flow.NodeRecord) (string, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO flow_nodes (application_id, data) VALUES ($1, $2) RETURNING id`,
		appID, nodeData(rec),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("flow: insert node: %w", err)
	}
	return formatID(id), nil
}

// GetNode fetches a single node. Returns nil, nil if not found.
func (t *batchTx) GetNode(ctx context.Context, appID, id string) (*flow.NodeRecord, error) {
	n, ok := rowID(id)
	if !ok {
		return nil, nil
	}
	rec, err := scanNode(t.tx.QueryRow(ctx,
		`SELECT id, data FROM flow_nodes WHERE id = $1 AND application_id = $2`, n, appID), appID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get node: %w", err)
	}
	return rec, nil
}

// PutNode replaces the data of an existing node.
// Returns ErrNodeNotFound if the node doesn't exist.
func (t *batchTx) PutNode(ctx context.Context, appID string, rec flow.NodeRecord) error {
	n, ok := rowID(rec.ID)
	if !ok {
		return flow.ErrNodeNotFound
	}
	ct, err := t.tx.Exec(ctx,
		`UPDATE flow_nodes SET data = $1 WHERE id = $2 AND application_id = $3`,
		nodeData(rec), n, appID,
	)
	if err != nil {
		return fmt.Errorf("flow: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return flow.ErrNodeNotFound
	}
	return nil
}

// DeleteNode deletes a node by its id.
// Associated edges are cascade-deleted by the DB.
// No error if the node doesn't exist.
func (t *batchTx) DeleteNode(ctx context.Context, appID, id string) error {
	n, ok := rowID(id)
	if !ok {
		return nil
	}
	if _, err := t.tx.Exec(ctx,
		`DELETE FROM flow_nodes WHERE id = $1 AND application_id = $2`, n, appID); err != nil {
		return fmt.Errorf("flow: delete node: %w", err)
	}
	return nil
}

func (t *batchTx) LoadGraph(ctx context.Context, appID string) (*flow.GraphRecord, error) {
	return loadGraph(ctx, t.tx, appID)
}
