package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/flow"
)

func edgeData(rec flow.EdgeRecord) flow.EdgeRecord {
	rec.ID = ""
	rec.ApplicationID = ""
	return rec
}

func scanEdge(row pgx.Row, appID string) (*flow.EdgeRecord, error) {
	var (
		id, source, target int64
		rec                flow.EdgeRecord
	)
	if err := row.Scan(&id, &source, &target, &rec); err != nil {
		return nil, err
	}
	rec.ID = formatID(id)
	rec.ApplicationID = appID
	rec.Source = formatID(source)
	rec.Target = formatID(target)
	return &rec, nil
}

// listEdges returns all edges of an application, ordered by id.
// Returns an empty slice (not nil) if none found.
func listEdges(ctx context.Context, q querier, appID string) ([]flow.EdgeRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source_id, target_id, data FROM flow_edges WHERE application_id = $1 ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("flow: list edges: %w", err)
	}
	defer rows.Close()

	edges := []flow.EdgeRecord{}
	for rows.Next() {
		rec, err := scanEdge(rows, appID)
		if err != nil {
			return nil, fmt.Errorf("flow: scan edge: %w", err)
		}
		edges = append(edges, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows edges: %w", err)
	}
	return edges, nil
}

// endpoints resolves both ends of rec to node rows of this application.
// Returns ErrUnknownReference if either is missing.
func (t *batchTx) endpoints(ctx context.Context, appID string, rec flow.EdgeRecord) (int64, int64, error) {
	src, ok1 := rowID(rec.Source)
	tgt, ok2 := rowID(rec.Target)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("%w: %q -> %q", flow.ErrUnknownReference, rec.Source, rec.Target)
	}
	var found int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(DISTINCT id) FROM flow_nodes WHERE application_id = $1 AND id IN ($2, $3)`,
		appID, src, tgt,
	).Scan(&found)
	if err != nil {
		return 0, 0, fmt.Errorf("flow: check endpoints: %w", err)
	}
	want := 2
	if src == tgt {
		want = 1
	}
	if found != want {
		return 0, 0, fmt.Errorf("%w: %q -> %q", flow.ErrUnknownReference, rec.Source, rec.Target)
	}
	return src, tgt, nil
}

// InsertEdge inserts an edge and returns its generated id.
func (t *batchTx) InsertEdge(ctx context.Context, appID string, rec flow.EdgeRecord) (string, error) {
	src, tgt, err := t.endpoints(ctx, appID, rec)
	if err != nil {
		return "", err
	}
	var id int64
	err = t.tx.QueryRow(ctx,
		`INSERT INTO flow_edges (application_id, source_id, target_id, data) VALUES ($1, $2, $3, $4) RETURNING id`,
		appID, src, tgt, edgeData(rec),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("flow: insert edge: %w", err)
	}
	return formatID(id), nil
}

// GetEdge fetches a single edge. Returns nil, nil if not found.
func (t *batchTx) GetEdge(ctx context.Context, appID, id string) (*flow.EdgeRecord, error) {
	n, ok := rowID(id)
	if !ok {
		return nil, nil
	}
	rec, err := scanEdge(t.tx.QueryRow(ctx,
		`SELECT id, source_id, target_id, data FROM flow_edges WHERE id = $1 AND application_id = $2`, n, appID), appID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get edge: %w", err)
	}
	return rec, nil
}

// PutEdge replaces an existing edge.
// Returns ErrEdgeNotFound if the edge doesn't exist.
func (t *batchTx) PutEdge(ctx context.Context, appID string, rec flow.EdgeRecord) error {
	n, ok := rowID(rec.ID)
	if !ok {
		return flow.ErrEdgeNotFound
	}
	src, tgt, err := t.endpoints(ctx, appID, rec)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx,
		`UPDATE flow_edges SET source_id = $1, target_id = $2, data = $3 WHERE id = $4 AND application_id = $5`,
		src, tgt, edgeData(rec), n, appID,
	)
	if err != nil {
		return fmt.Errorf("flow: update edge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return flow.ErrEdgeNotFound
	}
	return nil
}

// DeleteEdge deletes an edge by its id.
// No error if the edge doesn't exist.
func (t *batchTx) DeleteEdge(ctx context.Context, appID, id string) error {
	n, ok := rowID(id)
	if !ok {
		return nil
	}
	if _, err := t.tx.Exec(ctx,
		`DELETE FROM flow_edges WHERE id = $1 AND application_id = $2`, n, appID); err != nil {
		return fmt.Errorf("flow: delete edge: %w", err)
	}
	return nil
}
