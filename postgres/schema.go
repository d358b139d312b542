package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS diagram_versions (
    diagram_id         TEXT NOT NULL,
    version_number     INT  NOT NULL,
    provenance         TEXT NOT NULL,
    serialized_graph   TEXT NOT NULL,
    change_summary     TEXT NOT NULL DEFAULT '',
    applied_suggestion JSONB,
    created_by         TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (diagram_id, version_number)
);

CREATE TABLE IF NOT EXISTS audit_entries (
    id              TEXT PRIMARY KEY,
    diagram_id      TEXT NOT NULL,
    action_type     TEXT NOT NULL,
    actor_id        TEXT NOT NULL DEFAULT '',
    occurred_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    details         JSONB NOT NULL DEFAULT '{}',
    outcome         TEXT NOT NULL,
    related_version INT
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_diagram ON audit_entries(diagram_id, occurred_at);
`

// CreateSchema creates the diagram_versions and audit_entries tables if
// they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the version and audit tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS diagram_versions, audit_entries CASCADE;`)
	return err
}
