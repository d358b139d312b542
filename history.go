package flowedit

// History keeps the undo and redo stacks of applied mutation batches.
// Pushing a fresh batch discards the redo stack (branching history is
// discarded). History is not safe for concurrent use; sessions are
// single-writer.
type History struct {
	undo []Batch
	redo []Batch
}

// NewHistory returns an empty history.
func NewHistory() *History { return &History{} }

// Push records a newly applied batch and clears the redo stack.
func (h *History) Push(b Batch) {
	h.undo = append(h.undo, b)
	h.redo = nil
}

// PopUndo removes and returns the most recently applied batch.
func (h *History) PopUndo() (Batch, error) {
	if len(h.undo) == 0 {
		return Batch{}, ErrEmptyHistory
	}
	b := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return b, nil
}

// PushRedo parks an undone batch for redo.
func (h *History) PushRedo(b Batch) {
	h.redo = append(h.redo, b)
}

// PopRedo removes and returns the most recently undone batch.
func (h *History) PopRedo() (Batch, error) {
	if len(h.redo) == 0 {
		return Batch{}, ErrEmptyRedoStack
	}
	b := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return b, nil
}

// Restore puts a redone batch back on the undo stack without touching the
// redo stack.
func (h *History) Restore(b Batch) {
	h.undo = append(h.undo, b)
}

// Len returns the undo stack depth, RedoLen the redo stack depth.
func (h *History) Len() int     { return len(h.undo) }
func (h *History) RedoLen() int { return len(h.redo) }
