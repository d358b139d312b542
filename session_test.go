package flowedit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowedit"
	"github.com/meikuraledutech/flowedit/memory"
)

func newSession(t *testing.T, store *memory.Store, diagramID string) *flowedit.Session {
	t.Helper()
	s, err := flowedit.NewSession(context.Background(), diagramID, "tester", store, store)
	require.NoError(t, err)
	return s
}

// seedVersion commits a hand-built graph as version 1 so sessions can load
// a non-trivial diagram: root -> {t1 -> gw -> t2, t3 -> gw}.
func seedVersion(t *testing.T, store *memory.Store, diagramID string) {
	t.Helper()
	g := flowedit.NewGraphModel("root")
	for _, m := range []flowedit.Mutation{
		{Op: flowedit.OpCreateNode, Element: flowedit.FlowElement{ID: "t1", Kind: flowedit.KindTask, Name: "Receive"}},
		{Op: flowedit.OpCreateNode, Element: flowedit.FlowElement{ID: "gw", Kind: flowedit.KindGateway, Gateway: flowedit.GatewayExclusive, Name: "Valid?"}},
		{Op: flowedit.OpCreateNode, Element: flowedit.FlowElement{ID: "t2", Kind: flowedit.KindTask, Name: "Process"}},
		{Op: flowedit.OpCreateNode, Element: flowedit.FlowElement{ID: "t3", Kind: flowedit.KindTask, Name: "Escalate"}},
		{Op: flowedit.OpAddEdge, Flow: flowedit.SequenceFlow{Source: "t1", Target: "gw"}, At: -1},
		{Op: flowedit.OpAddEdge, Flow: flowedit.SequenceFlow{Source: "gw", Target: "t2"}, At: -1},
		{Op: flowedit.OpAddEdge, Flow: flowedit.SequenceFlow{Source: "t3", Target: "gw"}, At: -1},
	} {
		_, err := g.ApplyPrimitive(m)
		require.NoError(t, err)
	}
	serialized, err := g.Serialize()
	require.NoError(t, err)
	_, err = store.Commit(context.Background(), &flowedit.Version{
		DiagramID:       diagramID,
		VersionNumber:   1,
		Provenance:      flowedit.ProvenanceOriginal,
		SerializedGraph: serialized,
		ChangeSummary:   "initial diagram",
		CreatedBy:       "tester",
		CreatedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestSessionAddTaskOnEmptyDiagram(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	session := newSession(t, store, "d1")

	// Bootstrapping wrote version 1 with provenance original.
	v, err := store.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, flowedit.ProvenanceOriginal, v.Provenance)

	result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestAddTask,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotEmpty(t, result.CreatedOrModifiedID)

	// No target and no viewport hint: the task lands at the origin.
	el, err := session.Graph().Lookup(result.CreatedOrModifiedID)
	require.NoError(t, err)
	assert.Equal(t, flowedit.Position{}, el.Position)

	v, err = store.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.VersionNumber)
	assert.Equal(t, flowedit.ProvenanceAIRevised, v.Provenance)
	require.NotNil(t, v.AppliedSuggestion)
	assert.Equal(t, "sug-1", v.AppliedSuggestion.ID)
}

func TestSessionChangeGatewayOnTaskFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedVersion(t, store, "d1")
	session := newSession(t, store, "d1")

	before := session.Graph().Clone()
	auditBefore, err := store.Entries(ctx, "d1")
	require.NoError(t, err)

	result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestChangeGateway, TargetElementID: "t1",
	})
	require.ErrorIs(t, err, flowedit.ErrInvalidTargetType)
	assert.False(t, result.Success)
	assert.Equal(t, flowedit.KindInvalidTargetType, result.ErrorKind)
	assert.True(t, session.Graph().Equal(before), "graph must be unchanged")

	// No new version, exactly one new failure audit entry.
	v, err := store.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)

	auditAfter, err := store.Entries(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, auditAfter, len(auditBefore)+1)
	last := auditAfter[len(auditAfter)-1]
	assert.Equal(t, flowedit.OutcomeFailure, last.Outcome)
	assert.Nil(t, last.RelatedVersionNumber)
}

func TestSessionAmbiguousSpliceRollsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedVersion(t, store, "d1")
	session := newSession(t, store, "d1")
	before := session.Graph().Clone()

	// gw has two upstream edges (t1 and t3).
	result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestOptimizeFlow,
		Details: flowedit.SuggestionDetails{RemoveElements: []flowedit.ElementID{"gw"}},
	})
	require.ErrorIs(t, err, flowedit.ErrAmbiguousSplice)
	assert.False(t, result.Success)
	assert.True(t, session.Graph().Equal(before))
}

func TestSessionOptimizeFlowNoOp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	session := newSession(t, store, "d1")

	result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestOptimizeFlow,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.NoOp)

	// A no-op creates no version but is still audited.
	v, err := store.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)

	entries, err := store.Entries(ctx, "d1")
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "apply_suggestion", last.ActionType)
	assert.Equal(t, flowedit.OutcomeSuccess, last.Outcome)
}

func TestSessionVersionHistoryAndUndo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	session := newSession(t, store, "d1")

	_, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestAddTask, Details: flowedit.SuggestionDetails{Name: "One"},
	})
	require.NoError(t, err)
	_, err = session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-2", Type: flowedit.SuggestAddTask, Details: flowedit.SuggestionDetails{Name: "Two"},
	})
	require.NoError(t, err)

	history, err := store.History(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].VersionNumber)
	assert.Equal(t, flowedit.ProvenanceAIRevised, history[0].Provenance)
	assert.Equal(t, flowedit.ProvenanceAIRevised, history[1].Provenance)
	assert.Equal(t, flowedit.ProvenanceOriginal, history[2].Provenance)

	// Undo restores the version-2 graph but never deletes version 3.
	v2 := history[1]
	wantGraph, err := flowedit.Deserialize(v2.SerializedGraph)
	require.NoError(t, err)

	result, err := session.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, session.Graph().Equal(wantGraph))

	history, err = store.History(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, history, 4, "undo appends a manual_edit version, deletes nothing")
	assert.Equal(t, flowedit.ProvenanceManualEdit, history[0].Provenance)
	// Strictly increasing and gap-free from 1.
	for i, v := range history {
		assert.Equal(t, len(history)-i, v.VersionNumber)
	}
}

func TestSessionUndoRedoInverseLaw(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	session := newSession(t, store, "d1")

	preApply := session.Graph().Clone()
	_, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestAddTask, Details: flowedit.SuggestionDetails{Name: "One"},
	})
	require.NoError(t, err)
	postApply := session.Graph().Clone()

	_, err = session.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, session.Graph().Equal(preApply), "undo restores the pre-apply state")

	_, err = session.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, session.Graph().Equal(postApply), "redo restores the post-apply state")
}

func TestSessionEmptyHistoryIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	session := newSession(t, store, "d1")

	auditBefore, err := store.Entries(ctx, "d1")
	require.NoError(t, err)

	result, err := session.Undo(ctx)
	assert.ErrorIs(t, err, flowedit.ErrEmptyHistory)
	assert.True(t, result.NoOp)

	result, err = session.Redo(ctx)
	assert.ErrorIs(t, err, flowedit.ErrEmptyRedoStack)
	assert.True(t, result.NoOp)

	// Even no-op attempts are audited, one failure entry each, and no
	// version is written for them.
	auditAfter, err := store.Entries(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, auditAfter, len(auditBefore)+2)
	for _, e := range auditAfter[len(auditBefore):] {
		assert.Equal(t, flowedit.OutcomeFailure, e.Outcome)
		assert.Nil(t, e.RelatedVersionNumber)
	}
	assert.Equal(t, "undo", auditAfter[len(auditBefore)].ActionType)
	assert.Equal(t, "redo", auditAfter[len(auditBefore)+1].ActionType)

	v, err := store.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
}

func TestSessionInvalidSuggestion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	session := newSession(t, store, "d1")

	result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		Type: flowedit.SuggestAddTask, // missing idempotency id
	})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, flowedit.KindInvalidSuggestion, result.ErrorKind)

	entries, err := store.Entries(ctx, "d1")
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, flowedit.OutcomeFailure, last.Outcome)
	assert.Equal(t, string(flowedit.KindInvalidSuggestion), last.Details["error_kind"])
}

// conflictStore forces a configurable number of version conflicts before
// delegating to the in-memory store.
type conflictStore struct {
	*memory.Store
	conflicts int
}

func (c *conflictStore) Commit(ctx context.Context, v *flowedit.Version) (*flowedit.Version, error) {
	if c.conflicts > 0 {
		c.conflicts--
		return nil, flowedit.ErrVersionConflict
	}
	return c.Store.Commit(ctx, v)
}

func TestSessionVersionConflictRetry(t *testing.T) {
	ctx := context.Background()
	store := &conflictStore{Store: memory.NewStore()}
	session, err := flowedit.NewSession(ctx, "d1", "tester", store, store.Store)
	require.NoError(t, err)

	t.Run("single conflict is retried", func(t *testing.T) {
		store.conflicts = 1
		result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
			ID: "sug-1", Type: flowedit.SuggestAddTask,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		v, err := store.Latest(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, 2, v.VersionNumber)
	})

	t.Run("second conflict surfaces to the caller", func(t *testing.T) {
		store.conflicts = 2
		nodesBefore := session.Graph().Len()
		_, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
			ID: "sug-2", Type: flowedit.SuggestAddTask,
		})
		require.ErrorIs(t, err, flowedit.ErrVersionConflict)
		// The in-memory edit is kept for a manual commit retry.
		assert.Equal(t, nodesBefore+1, session.Graph().Len())
	})
}

// brokenStore fails every commit after the first n, simulating a
// persistence outage following a successful bootstrap.
type brokenStore struct {
	*memory.Store
	allow int
}

func (b *brokenStore) Commit(ctx context.Context, v *flowedit.Version) (*flowedit.Version, error) {
	if b.allow <= 0 {
		return nil, errors.New("storage unavailable")
	}
	b.allow--
	return b.Store.Commit(ctx, v)
}

func TestSessionCommitFailureKeepsEdit(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{Store: memory.NewStore(), allow: 1}
	session, err := flowedit.NewSession(ctx, "d1", "tester", store, store.Store)
	require.NoError(t, err)

	nodesBefore := session.Graph().Len()
	_, err = session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID: "sug-1", Type: flowedit.SuggestAddTask,
	})
	require.Error(t, err)
	assert.Equal(t, nodesBefore+1, session.Graph().Len(), "mutation survives a failed commit")

	// The attempt is still audited as a failure and no version was written.
	entries, err := store.Entries(ctx, "d1")
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, flowedit.OutcomeFailure, last.Outcome)

	v, err := store.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
}
