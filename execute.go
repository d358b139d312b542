package flowedit

import (
	"fmt"
	"log/slog"
)

// MutationResult is the outcome of applying one suggestion, shaped for
// user-facing feedback: either a specific success detail or a specific
// failure kind, never a generic error.
type MutationResult struct {
	Success             bool      `json:"success"`
	NoOp                bool      `json:"no_op,omitempty"`
	CreatedOrModifiedID ElementID `json:"created_or_modified_id,omitempty"`
	Detail              string    `json:"detail"`
	ErrorKind           ErrorKind `json:"error_kind,omitempty"`
}

// Executor applies mutation batches to a graph atomically. A batch either
// fully applies, pushing its inverse onto the history, or leaves the graph
// exactly as it was.
type Executor struct {
	history *History
	logger  *slog.Logger
}

// NewExecutor returns an executor recording applied batches in history.
// history may be nil for fire-and-forget application; logger nil uses
// slog.Default().
func NewExecutor(history *History, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{history: history, logger: logger}
}

// Apply runs the batch in order against g. On any primitive failure every
// already-applied primitive is rolled back in reverse order and the result
// carries the failure kind; the returned error is the underlying sentinel.
func (e *Executor) Apply(g *GraphModel, mutations []Mutation) (MutationResult, error) {
	inverse, err := e.applyAll(g, mutations)
	if err != nil {
		return MutationResult{Success: false, Detail: err.Error(), ErrorKind: KindOf(err)}, err
	}
	if e.history != nil {
		e.history.Push(Batch{Forward: mutations, Inverse: inverse})
	}
	return MutationResult{
		Success:             true,
		CreatedOrModifiedID: primaryID(mutations),
		Detail:              describeBatch(g, mutations),
	}, nil
}

// applyAll applies mutations front to back, returning the inverse batch
// ordered so that applying it front to back undoes the forward batch. On
// failure the primitives applied so far are rolled back before returning,
// leaving g exactly as it was.
func (e *Executor) applyAll(g *GraphModel, mutations []Mutation) ([]Mutation, error) {
	applied := make([]Mutation, 0, len(mutations))
	for _, m := range mutations {
		change, err := g.ApplyPrimitive(m)
		if err != nil {
			e.rollback(g, applied)
			return nil, err
		}
		// Prepend so the inverse list is already in undo order.
		applied = append([]Mutation{change.Inverse}, applied...)
	}
	return applied, nil
}

// rollback undoes the primitives applied so far. inverses is already in
// undo order. Rollback failures cannot happen for inverses produced by
// ApplyPrimitive; if one does the graph is corrupt and we log loudly.
func (e *Executor) rollback(g *GraphModel, inverses []Mutation) {
	for _, m := range inverses {
		if _, err := g.ApplyPrimitive(m); err != nil {
			e.logger.Error("rollback primitive failed, graph state suspect",
				"op", string(m.Op), "error", err)
		}
	}
}

// primaryID picks the element a batch is "about": the first node-level
// mutation wins, edge splices are plumbing.
func primaryID(mutations []Mutation) ElementID {
	for _, m := range mutations {
		switch m.Op {
		case OpCreateNode:
			return m.Element.ID
		case OpReplaceNode, OpRemoveNode, OpReparent:
			return m.TargetID
		}
	}
	return ""
}

// describeBatch renders a human-readable summary of an applied batch.
func describeBatch(g *GraphModel, mutations []Mutation) string {
	var removed int
	for _, m := range mutations {
		switch m.Op {
		case OpCreateNode:
			return fmt.Sprintf("%s %q created at (%.0f, %.0f)",
				m.Element.Kind, m.Element.Name, m.Element.Position.X, m.Element.Position.Y)
		case OpReplaceNode:
			if el, err := g.Lookup(m.TargetID); err == nil {
				return fmt.Sprintf("%s %q changed to %s gateway", el.Kind, el.Name, el.Gateway)
			}
			return fmt.Sprintf("element %s replaced", m.TargetID)
		case OpRemoveNode:
			removed++
		}
	}
	if removed > 0 {
		return fmt.Sprintf("removed %d element(s), flows spliced through", removed)
	}
	return "applied"
}
