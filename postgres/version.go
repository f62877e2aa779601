package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/flow"
)

// InsertVersion stores the next numbered snapshot of an application.
func (t *batchTx) InsertVersion(ctx context.Context, appID string, snapshot flow.GraphRecord) (int, error) {
	blob, err := flow.EncodeSnapshot(snapshot)
	if err != nil {
		return 0, err
	}
	var n int
	err = t.tx.QueryRow(ctx,
		`INSERT INTO flow_versions (application_id, version, snapshot)
		 SELECT $1, COALESCE(MAX(version), 0) + 1, $2 FROM flow_versions WHERE application_id = $1
		 RETURNING version`,
		appID, blob,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("flow: insert version: %w", err)
	}
	return n, nil
}

// ListVersions returns one page of versions, ordered by number.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListVersions(ctx context.Context, appID string, page, pageSize int, order flow.SortOrder) ([]flow.Version, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	dir := "ASC"
	if order == flow.Descending {
		dir = "DESC"
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, version, snapshot, created_at FROM flow_versions
		 WHERE application_id = $1 ORDER BY version `+dir+` LIMIT $2 OFFSET $3`,
		appID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("flow: list versions: %w", err)
	}
	defer rows.Close()

	versions := []flow.Version{}
	for rows.Next() {
		v, err := scanVersion(rows, appID)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows versions: %w", err)
	}
	return versions, nil
}

// GetVersion fetches one version by number. Returns nil, nil if not found.
func (s *PGStore) GetVersion(ctx context.Context, appID string, n int) (*flow.Version, error) {
	v, err := scanVersion(s.db.QueryRow(ctx,
		`SELECT id, version, snapshot, created_at FROM flow_versions WHERE application_id = $1 AND version = $2`,
		appID, n), appID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// LatestVersion returns the highest version number, 0 if none.
func (s *PGStore) LatestVersion(ctx context.Context, appID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM flow_versions WHERE application_id = $1`, appID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("flow: latest version: %w", err)
	}
	return n, nil
}

func scanVersion(row pgx.Row, appID string) (*flow.Version, error) {
	var (
		id        int64
		n         int
		blob      []byte
		createdAt time.Time
	)
	if err := row.Scan(&id, &n, &blob, &createdAt); err != nil {
		return nil, err
	}
	snap, err := flow.DecodeSnapshot(blob)
	if err != nil {
		return nil, fmt.Errorf("flow: decode version %d: %w", n, err)
	}
	return &flow.Version{
		ID:            formatID(id),
		ApplicationID: appID,
		Version:       n,
		Snapshot:      snap,
		CreatedAt:     createdAt.UTC(),
	}, nil
}
