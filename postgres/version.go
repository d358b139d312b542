package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meikuraledutech/flowedit"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation, used to detect a lost version-number race.
const uniqueViolation = "23505"

// NextVersionNumber returns max existing version number + 1 for the
// diagram, or 1 if none exist.
func (s *PGStore) NextVersionNumber(ctx context.Context, diagramID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM diagram_versions WHERE diagram_id = $1`,
		diagramID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("flowedit: next version number: %w", err)
	}
	return n, nil
}

// Commit inserts the version row. The primary key on
// (diagram_id, version_number) makes the write a compare-and-swap: a
// concurrent session that took the same number surfaces as
// ErrVersionConflict instead of silently overwriting. Rows are never
// updated or deleted.
func (s *PGStore) Commit(ctx context.Context, v *flowedit.Version) (*flowedit.Version, error) {
	var suggestion []byte
	if v.AppliedSuggestion != nil {
		var err error
		suggestion, err = json.Marshal(v.AppliedSuggestion)
		if err != nil {
			return nil, fmt.Errorf("flowedit: marshal suggestion: %w", err)
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO diagram_versions
		   (diagram_id, version_number, provenance, serialized_graph, change_summary, applied_suggestion, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.DiagramID, v.VersionNumber, string(v.Provenance), v.SerializedGraph,
		v.ChangeSummary, suggestion, string(v.CreatedBy), v.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: diagram %s version %d", flowedit.ErrVersionConflict, v.DiagramID, v.VersionNumber)
		}
		return nil, fmt.Errorf("flowedit: insert version: %w", err)
	}

	cp := *v
	return &cp, nil
}

// Latest returns the highest-numbered version of the diagram.
func (s *PGStore) Latest(ctx context.Context, diagramID string) (*flowedit.Version, error) {
	row := s.db.QueryRow(ctx,
		`SELECT diagram_id, version_number, provenance, serialized_graph, change_summary, applied_suggestion, created_by, created_at
		 FROM diagram_versions WHERE diagram_id = $1
		 ORDER BY version_number DESC LIMIT 1`,
		diagramID,
	)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: diagram %s", flowedit.ErrVersionNotFound, diagramID)
	}
	if err != nil {
		return nil, fmt.Errorf("flowedit: latest version: %w", err)
	}
	return v, nil
}

// History returns all versions of the diagram, newest first. Each call is
// a fresh query, not a live cursor.
func (s *PGStore) History(ctx context.Context, diagramID string) ([]flowedit.Version, error) {
	rows, err := s.db.Query(ctx,
		`SELECT diagram_id, version_number, provenance, serialized_graph, change_summary, applied_suggestion, created_by, created_at
		 FROM diagram_versions WHERE diagram_id = $1
		 ORDER BY version_number DESC`,
		diagramID,
	)
	if err != nil {
		return nil, fmt.Errorf("flowedit: query versions: %w", err)
	}
	defer rows.Close()

	versions := []flowedit.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("flowedit: scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flowedit: rows versions: %w", err)
	}
	return versions, nil
}

func scanVersion(row pgx.Row) (*flowedit.Version, error) {
	var (
		v          flowedit.Version
		provenance string
		createdBy  string
		suggestion []byte
	)
	err := row.Scan(&v.DiagramID, &v.VersionNumber, &provenance, &v.SerializedGraph,
		&v.ChangeSummary, &suggestion, &createdBy, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Provenance = flowedit.Provenance(provenance)
	v.CreatedBy = flowedit.ActorID(createdBy)
	if len(suggestion) > 0 {
		var s flowedit.Suggestion
		if err := json.Unmarshal(suggestion, &s); err != nil {
			return nil, fmt.Errorf("unmarshal suggestion: %w", err)
		}
		v.AppliedSuggestion = &s
	}
	return &v, nil
}
