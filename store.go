package flowedit

import (
	"context"
	"time"
)

// Provenance tags the origin of a diagram version.
type Provenance string

const (
	ProvenanceOriginal   Provenance = "original"
	ProvenanceManualEdit Provenance = "manual_edit"
	ProvenanceAIRevised  Provenance = "ai_revised"
)

// ActorID identifies who performed an action. Identity itself is an
// external concern; the engine treats it as opaque.
type ActorID string

// Version is one immutable snapshot of a diagram. VersionNumber starts at
// 1 and is strictly increasing per diagram; rows are never updated or
// deleted.
type Version struct {
	DiagramID         string      `json:"diagram_id"`
	VersionNumber     int         `json:"version_number"`
	Provenance        Provenance  `json:"provenance"`
	SerializedGraph   string      `json:"serialized_graph"`
	ChangeSummary     string      `json:"change_summary"`
	AppliedSuggestion *Suggestion `json:"applied_suggestion,omitempty"`
	CreatedBy         ActorID     `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Outcome of an attempted action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AuditEntry records one attempted action, successful or not. Exactly one
// entry is written per attempt, independent of whether a version was
// created.
type AuditEntry struct {
	ID                   string         `json:"id"`
	DiagramID            string         `json:"diagram_id"`
	ActionType           string         `json:"action_type"`
	ActorID              ActorID        `json:"actor_id"`
	Timestamp            time.Time      `json:"timestamp"`
	Details              map[string]any `json:"details,omitempty"`
	Outcome              Outcome        `json:"outcome"`
	RelatedVersionNumber *int           `json:"related_version_number,omitempty"`
}

// VersionStore persists the append-only version sequence of each diagram.
//
// Commit must atomically verify that no version with the given number
// exists yet and fail with ErrVersionConflict otherwise; this is the one
// operation needing a serializable guarantee from the backend.
type VersionStore interface {
	NextVersionNumber(ctx context.Context, diagramID string) (int, error)
	Commit(ctx context.Context, v *Version) (*Version, error)
	Latest(ctx context.Context, diagramID string) (*Version, error)
	History(ctx context.Context, diagramID string) ([]Version, error)
}

// AuditLog appends attempt records. A Record failure must never fail the
// operation it documents.
type AuditLog interface {
	Record(ctx context.Context, e *AuditEntry) error
}

// AuditReader exposes the activity feed.
type AuditReader interface {
	Entries(ctx context.Context, diagramID string) ([]AuditEntry, error)
}
