package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flow"
)

// LoadGraph retrieves the persisted graph of an application.
// Returns nil, nil if the application was never saved.
func (s *PGStore) LoadGraph(ctx context.Context, appID string) (*flow.GraphRecord, error) {
	return loadGraph(ctx, s.db, appID)
}

func loadGraph(ctx context.Context, q querier, appID string) (*flow.GraphRecord, error) {
	var vp *flow.Viewport
	err := q.QueryRow(ctx, `SELECT viewport FROM flow_applications WHERE id = $1`, appID).Scan(&vp)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: load application: %w", err)
	}
	g := &flow.GraphRecord{ApplicationID: appID, Viewport: vp}

	if g.Nodes, err = listNodes(ctx, q, appID); err != nil {
		return nil, err
	}
	if g.Edges, err = listEdges(ctx, q, appID); err != nil {
		return nil, err
	}
	return g, nil
}

// BatchSave applies req in a single transaction. On any error the
// transaction is rolled back and nothing is written.
func (s *PGStore) BatchSave(ctx context.Context, req *flow.BatchSaveRequest) (*flow.BatchSaveResponse, error) {
	if req.ApplicationID == "" {
		return nil, flow.ErrApplicationRequired
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureApplication(ctx, tx, req.ApplicationID); err != nil {
		return nil, err
	}
	resp, err := flow.ApplyBatch(ctx, &batchTx{tx: tx}, req)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("flow: commit: %w", err)
	}
	resp.Message = fmt.Sprintf("saved version %d", resp.Version)
	return resp, nil
}

func ensureApplication(ctx context.Context, q querier, appID string) error {
	if _, err := q.Exec(ctx,
		`INSERT INTO flow_applications (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, appID); err != nil {
		return fmt.Errorf("flow: ensure application: %w", err)
	}
	return nil
}

func (s *PGStore) SaveViewport(ctx context.Context, appID string, vp flow.Viewport) error {
	if appID == "" {
		return flow.ErrApplicationRequired
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO flow_applications (id, viewport) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET viewport = EXCLUDED.viewport`, appID, vp)
	if err != nil {
		return fmt.Errorf("flow: save viewport: %w", err)
	}
	return nil
}

// DeleteApplication removes an application, its graph and its versions.
// No error if the application doesn't exist.
func (s *PGStore) DeleteApplication(ctx context.Context, appID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM flow_versions WHERE application_id = $1`, appID); err != nil {
		return fmt.Errorf("flow: delete versions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flow_edges WHERE application_id = $1`, appID); err != nil {
		return fmt.Errorf("flow: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flow_nodes WHERE application_id = $1`, appID); err != nil {
		return fmt.Errorf("flow: delete nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flow_applications WHERE id = $1`, appID); err != nil {
		return fmt.Errorf("flow: delete application: %w", err)
	}

	return tx.Commit(ctx)
}
