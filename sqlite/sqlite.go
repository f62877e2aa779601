// Package sqlite is a flow.Store on SQLite, for tests, the example and
// single-host deployments.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meikuraledutech/flow"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

// Store implements flow.Store. SQLite allows one writer, so the pool is
// held to a single connection, which also keeps the pragmas in effect.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("flow: opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("flow: applying pragma %q: %w", pragma, err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the flow tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("flow: create schema: %w", err)
	}
	return nil
}

// DropSchema drops all flow tables.
func (s *Store) DropSchema(ctx context.Context) error {
	for _, table := range []string{"flow_versions", "flow_edges", "flow_nodes", "flow_applications"} {
		if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return fmt.Errorf("flow: drop %s: %w", table, err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoadGraph returns nil, nil for an application that was never saved.
func (s *Store) LoadGraph(ctx context.Context, appID string) (*flow.GraphRecord, error) {
	return loadGraph(ctx, s.db, appID)
}

func loadGraph(ctx context.Context, q querier, appID string) (*flow.GraphRecord, error) {
	var vp sql.NullString
	err := q.QueryRowContext(ctx, `SELECT viewport FROM flow_applications WHERE id = ?`, appID).Scan(&vp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: load application: %w", err)
	}

	g := &flow.GraphRecord{
		ApplicationID: appID,
		Nodes:         []flow.NodeRecord{},
		Edges:         []flow.EdgeRecord{},
	}
	if vp.Valid && vp.String != "" {
		var v flow.Viewport
		if err := json.Unmarshal([]byte(vp.String), &v); err != nil {
			return nil, fmt.Errorf("flow: decode viewport: %w", err)
		}
		g.Viewport = &v
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, data FROM flow_nodes WHERE application_id = ? ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("flow: query nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanNode(rows, appID)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows nodes: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		`SELECT id, source_id, target_id, data FROM flow_edges WHERE application_id = ? ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("flow: query edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanEdge(rows, appID)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows edges: %w", err)
	}
	return g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(sc scanner, appID string) (*flow.NodeRecord, error) {
	var (
		id   int64
		data string
	)
	if err := sc.Scan(&id, &data); err != nil {
		return nil, err
	}
	var rec flow.NodeRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("flow: decode node %d: %w", id, err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.ApplicationID = appID
	return &rec, nil
}

func scanEdge(sc scanner, appID string) (*flow.EdgeRecord, error) {
	var (
		id, source, target int64
		data               string
	)
	if err := sc.Scan(&id, &source, &target, &data); err != nil {
		return nil, err
	}
	var rec flow.EdgeRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("flow: decode edge %d: %w", id, err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.ApplicationID = appID
	rec.Source = strconv.FormatInt(source, 10)
	rec.Target = strconv.FormatInt(target, 10)
	return &rec, nil
}

// BatchSave applies req in one transaction. On any error nothing is
// written.
func (s *Store) BatchSave(ctx context.Context, req *flow.BatchSaveRequest) (*flow.BatchSaveResponse, error) {
	if req.ApplicationID == "" {
		return nil, flow.ErrApplicationRequired
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureApplication(ctx, tx, req.ApplicationID, s.now()); err != nil {
		return nil, err
	}
	resp, err := flow.ApplyBatch(ctx, &batchTx{tx: tx, now: s.now}, req)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("flow: commit: %w", err)
	}
	resp.Message = fmt.Sprintf("saved version %d", resp.Version)
	return resp, nil
}

func ensureApplication(ctx context.Context, q querier, appID string, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO flow_applications (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		appID, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("flow: ensure application: %w", err)
	}
	return nil
}

func (s *Store) SaveViewport(ctx context.Context, appID string, vp flow.Viewport) error {
	if appID == "" {
		return flow.ErrApplicationRequired
	}
	b, err := json.Marshal(vp)
	if err != nil {
		return err
	}
	if err := ensureApplication(ctx, s.db, appID, s.now()); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE flow_applications SET viewport = ? WHERE id = ?`, string(b), appID); err != nil {
		return fmt.Errorf("flow: save viewport: %w", err)
	}
	return nil
}

// DeleteApplication removes an application with its graph and versions.
// No error if it doesn't exist.
func (s *Store) DeleteApplication(ctx context.Context, appID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"flow_versions", "flow_edges", "flow_nodes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE application_id = ?`, appID); err != nil {
			return fmt.Errorf("flow: delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_applications WHERE id = ?`, appID); err != nil {
		return fmt.Errorf("flow: delete application: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListVersions(ctx context.Context, appID string, page, pageSize int, order flow.SortOrder) ([]flow.Version, error) {
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, snapshot, created_at FROM flow_versions
		 WHERE application_id = ? ORDER BY version `+dir+` LIMIT ? OFFSET ?`,
		appID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("flow: query versions: %w", err)
	}
	defer rows.Close()

	out := []flow.Version{}
	for rows.Next() {
		v, err := scanVersion(rows, appID)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows versions: %w", err)
	}
	return out, nil
}

// GetVersion returns nil, nil when the version does not exist.
func (s *Store) GetVersion(ctx context.Context, appID string, n int) (*flow.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, version, snapshot, created_at FROM flow_versions WHERE application_id = ? AND version = ?`,
		appID, n)
	v, err := scanVersion(row, appID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (s *Store) LatestVersion(ctx context.Context, appID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM flow_versions WHERE application_id = ?`, appID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("flow: latest version: %w", err)
	}
	return n, nil
}

func scanVersion(sc scanner, appID string) (*flow.Version, error) {
	var (
		id, createdAt int64
		n             int
		blob          []byte
	)
	if err := sc.Scan(&id, &n, &blob, &createdAt); err != nil {
		return nil, err
	}
	snap, err := flow.DecodeSnapshot(blob)
	if err != nil {
		return nil, fmt.Errorf("flow: decode version %d: %w", n, err)
	}
	return &flow.Version{
		ID:            strconv.FormatInt(id, 10),
		ApplicationID: appID,
		Version:       n,
		Snapshot:      snap,
		CreatedAt:     time.UnixMilli(createdAt).UTC(),
	}, nil
}
