package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/meikuraledutech/flowedit"
)

// Record appends one audit entry. If entry.ID is empty, a UUID is
// auto-generated. Entries are never updated or deleted.
func (s *PGStore) Record(ctx context.Context, e *flowedit.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("flowedit: marshal audit details: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_entries (id, diagram_id, action_type, actor_id, occurred_at, details, outcome, related_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.DiagramID, e.ActionType, string(e.ActorID), e.Timestamp, details, string(e.Outcome), e.RelatedVersionNumber,
	)
	if err != nil {
		return fmt.Errorf("flowedit: insert audit entry: %w", err)
	}
	return nil
}

// Entries returns the audit trail of a diagram in chronological order.
func (s *PGStore) Entries(ctx context.Context, diagramID string) ([]flowedit.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, diagram_id, action_type, actor_id, occurred_at, details, outcome, related_version
		 FROM audit_entries WHERE diagram_id = $1 ORDER BY occurred_at`,
		diagramID,
	)
	if err != nil {
		return nil, fmt.Errorf("flowedit: query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []flowedit.AuditEntry{}
	for rows.Next() {
		var (
			e       flowedit.AuditEntry
			actor   string
			outcome string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.DiagramID, &e.ActionType, &actor, &e.Timestamp, &details, &outcome, &e.RelatedVersionNumber); err != nil {
			return nil, fmt.Errorf("flowedit: scan audit entry: %w", err)
		}
		e.ActorID = flowedit.ActorID(actor)
		e.Outcome = flowedit.Outcome(outcome)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("flowedit: unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flowedit: rows audit entries: %w", err)
	}
	return entries, nil
}
