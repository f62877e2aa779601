package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS flow_applications (
    id         TEXT PRIMARY KEY,
    viewport   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_nodes (
    id             BIGSERIAL PRIMARY KEY,
    application_id TEXT NOT NULL REFERENCES flow_applications(id) ON DELETE CASCADE,
    data           JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_edges (
    id             BIGSERIAL PRIMARY KEY,
    application_id TEXT NOT NULL REFERENCES flow_applications(id) ON DELETE CASCADE,
    source_id      BIGINT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    target_id      BIGINT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    data           JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_versions (
    id             BIGSERIAL PRIMARY KEY,
    application_id TEXT NOT NULL REFERENCES flow_applications(id) ON DELETE CASCADE,
    version        INTEGER NOT NULL,
    snapshot       BYTEA NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (application_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flow_nodes_app    ON flow_nodes(application_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_app    ON flow_edges(application_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_source ON flow_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_target ON flow_edges(target_id);
`

// CreateSchema creates the flow tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops all flow tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS flow_versions, flow_edges, flow_nodes, flow_applications CASCADE;`)
	return err
}
