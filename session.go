package flowedit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("flowedit.session")

// rootElementID is the container id given to a freshly bootstrapped
// diagram.
const rootElementID ElementID = "root"

// Session is one single-writer editing session over a diagram: the live
// GraphModel, its undo/redo history and the stores behind it. The caller
// serializes operations; one suggestion is fully processed before the
// next is accepted.
type Session struct {
	diagramID string
	actor     ActorID
	graph     *GraphModel
	history   *History
	executor  *Executor
	versions  VersionStore
	audit     AuditLog
	viewport  *Position
	logger    *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithViewport supplies the viewport-center hint used to place nodes that
// have no target context.
func WithViewport(p Position) SessionOption {
	return func(s *Session) { s.viewport = &p }
}

// WithLogger overrides the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession loads the diagram's latest version into memory. A diagram
// with no versions yet is bootstrapped: a root-only graph is committed as
// version 1 with provenance "original".
func NewSession(ctx context.Context, diagramID string, actor ActorID, versions VersionStore, audit AuditLog, opts ...SessionOption) (*Session, error) {
	s := &Session{
		diagramID: diagramID,
		actor:     actor,
		history:   NewHistory(),
		versions:  versions,
		audit:     audit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.executor = NewExecutor(s.history, s.logger)

	latest, err := versions.Latest(ctx, diagramID)
	switch {
	case errors.Is(err, ErrVersionNotFound):
		s.graph = NewGraphModel(rootElementID)
		v, err := s.commitVersion(ctx, ProvenanceOriginal, "initial diagram", nil)
		if err != nil {
			return nil, fmt.Errorf("flowedit: bootstrap diagram %s: %w", diagramID, err)
		}
		s.auditAttempt(ctx, "init_diagram", OutcomeSuccess, nil, &v.VersionNumber)
	case err != nil:
		return nil, fmt.Errorf("flowedit: load diagram %s: %w", diagramID, err)
	default:
		g, err := Deserialize(latest.SerializedGraph)
		if err != nil {
			return nil, fmt.Errorf("flowedit: load diagram %s version %d: %w", diagramID, latest.VersionNumber, err)
		}
		s.graph = g
	}
	return s, nil
}

// Graph returns the live graph. It is owned by the session; callers must
// not mutate it outside the session's operations.
func (s *Session) Graph() *GraphModel { return s.graph }

// DiagramID returns the diagram this session edits.
func (s *Session) DiagramID() string { return s.diagramID }

// SetViewport updates the placement hint for subsequent suggestions.
func (s *Session) SetViewport(p Position) { s.viewport = &p }

// ApplySuggestion runs the full pipeline for one suggestion: compile,
// execute atomically, commit a version, audit the attempt. The audit
// entry is written for failures too. Engine-level failures return both a
// failed MutationResult and the underlying sentinel error; a version
// commit failure after a successful mutation keeps the in-memory edit and
// reports the error so the caller can retry the commit.
func (s *Session) ApplySuggestion(ctx context.Context, sug Suggestion) (MutationResult, error) {
	ctx, span := tracer.Start(ctx, "flowedit.apply_suggestion", trace.WithAttributes(
		attribute.String("diagram.id", s.diagramID),
		attribute.String("suggestion.type", string(sug.Type)),
	))
	defer span.End()

	if err := sug.Validate(); err != nil {
		result := MutationResult{Success: false, Detail: err.Error(), ErrorKind: KindInvalidSuggestion}
		s.auditApply(ctx, sug, result, nil)
		span.SetStatus(codes.Error, string(KindInvalidSuggestion))
		return result, err
	}

	batch, note, err := NewCompiler(s.graph, s.viewport).Compile(sug)
	if err != nil {
		result := MutationResult{Success: false, Detail: err.Error(), ErrorKind: KindOf(err)}
		s.auditApply(ctx, sug, result, nil)
		span.SetStatus(codes.Error, string(result.ErrorKind))
		return result, err
	}

	// Legitimate no-op: nothing to change, nothing to version.
	if len(batch) == 0 {
		result := MutationResult{Success: true, NoOp: true, Detail: note}
		s.auditApply(ctx, sug, result, nil)
		return result, nil
	}

	result, err := s.executor.Apply(s.graph, batch)
	if err != nil {
		s.auditApply(ctx, sug, result, nil)
		span.SetStatus(codes.Error, string(result.ErrorKind))
		return result, err
	}
	if note != "" {
		result.Detail += "; " + note
	}

	version, err := s.commitVersion(ctx, ProvenanceAIRevised, result.Detail, &sug)
	if err != nil {
		// The in-memory edit is kept; losing it because persistence
		// hiccuped would be worse than a temporarily unversioned edit.
		result.ErrorKind = KindOf(err)
		s.auditApply(ctx, sug, MutationResult{Success: false, Detail: err.Error(), ErrorKind: result.ErrorKind}, nil)
		span.SetStatus(codes.Error, string(result.ErrorKind))
		return result, err
	}

	s.auditApply(ctx, sug, result, &version.VersionNumber)
	s.logger.Info("suggestion applied",
		"diagram", s.diagramID, "suggestion", sug.ID, "version", version.VersionNumber)
	return result, nil
}

// Undo reverts the most recently applied batch and commits the reverted
// graph as a manual_edit version. The undone version stays in the store;
// history is append-only regardless of undo. An attempt on an empty
// history is still audited, as a failure, before the no-op returns.
func (s *Session) Undo(ctx context.Context) (MutationResult, error) {
	batch, err := s.history.PopUndo()
	if err != nil {
		s.auditAttempt(ctx, "undo", OutcomeFailure, map[string]any{"detail": "nothing to undo"}, nil)
		return MutationResult{Success: false, NoOp: true, Detail: "nothing to undo"}, err
	}
	if _, err := s.executor.applyAll(s.graph, batch.Inverse); err != nil {
		s.history.Restore(batch)
		return MutationResult{Success: false, Detail: err.Error(), ErrorKind: KindOf(err)}, err
	}
	s.history.PushRedo(batch)
	return s.commitHistoryStep(ctx, "undo", "undo last change")
}

// Redo re-applies the most recently undone batch and commits it as a
// manual_edit version. An attempt on an empty redo stack is still
// audited, as a failure, before the no-op returns.
func (s *Session) Redo(ctx context.Context) (MutationResult, error) {
	batch, err := s.history.PopRedo()
	if err != nil {
		s.auditAttempt(ctx, "redo", OutcomeFailure, map[string]any{"detail": "nothing to redo"}, nil)
		return MutationResult{Success: false, NoOp: true, Detail: "nothing to redo"}, err
	}
	if _, err := s.executor.applyAll(s.graph, batch.Forward); err != nil {
		s.history.PushRedo(batch)
		return MutationResult{Success: false, Detail: err.Error(), ErrorKind: KindOf(err)}, err
	}
	s.history.Restore(batch)
	return s.commitHistoryStep(ctx, "redo", "redo last change")
}

func (s *Session) commitHistoryStep(ctx context.Context, action, summary string) (MutationResult, error) {
	version, err := s.commitVersion(ctx, ProvenanceManualEdit, summary, nil)
	if err != nil {
		s.auditAttempt(ctx, action, OutcomeFailure, map[string]any{"error": err.Error()}, nil)
		return MutationResult{Success: true, Detail: summary + " (version commit failed, edit kept in memory)", ErrorKind: KindOf(err)}, err
	}
	s.auditAttempt(ctx, action, OutcomeSuccess, nil, &version.VersionNumber)
	return MutationResult{Success: true, Detail: summary}, nil
}

// commitVersion serializes the graph and writes the next version. A
// version-number conflict with a concurrent session is retried once; a
// second conflict surfaces to the caller.
func (s *Session) commitVersion(ctx context.Context, prov Provenance, summary string, sug *Suggestion) (*Version, error) {
	serialized, err := s.graph.Serialize()
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		n, err := s.versions.NextVersionNumber(ctx, s.diagramID)
		if err != nil {
			return nil, fmt.Errorf("flowedit: next version number: %w", err)
		}
		v, err := s.versions.Commit(ctx, &Version{
			DiagramID:         s.diagramID,
			VersionNumber:     n,
			Provenance:        prov,
			SerializedGraph:   serialized,
			ChangeSummary:     summary,
			AppliedSuggestion: sug,
			CreatedBy:         s.actor,
			CreatedAt:         time.Now().UTC(),
		})
		if errors.Is(err, ErrVersionConflict) && attempt == 0 {
			s.logger.Warn("version conflict, retrying", "diagram", s.diagramID, "version", n)
			continue
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (s *Session) auditApply(ctx context.Context, sug Suggestion, result MutationResult, versionNumber *int) {
	outcome := OutcomeFailure
	if result.Success {
		outcome = OutcomeSuccess
	}
	details := map[string]any{
		"suggestion_id":   sug.ID,
		"suggestion_type": string(sug.Type),
		"detail":          result.Detail,
	}
	if result.ErrorKind != KindNone {
		details["error_kind"] = string(result.ErrorKind)
	}
	s.auditAttempt(ctx, "apply_suggestion", outcome, details, versionNumber)
}

// auditAttempt is fire-and-forget: an audit write failure is logged but
// never rolls back the operation it documents.
func (s *Session) auditAttempt(ctx context.Context, action string, outcome Outcome, details map[string]any, versionNumber *int) {
	entry := &AuditEntry{
		ID:                   uuid.NewString(),
		DiagramID:            s.diagramID,
		ActionType:           action,
		ActorID:              s.actor,
		Timestamp:            time.Now().UTC(),
		Details:              details,
		Outcome:              outcome,
		RelatedVersionNumber: versionNumber,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("audit record failed", "diagram", s.diagramID, "action", action, "error", err)
	}
}
