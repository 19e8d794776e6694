package history

// History composes the undo and redo flows over two bounded stacks.
//
// It is single-writer state: callers must serialize Record against Undo and
// Redo so that a new edit always invalidates the redo path.
type History struct {
	limit int
	undo  []Action
	redo  []Action
}

// New returns an empty History bounded to limit actions per stack.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Record registers a direct user edit. It clears the redo stack.
func (h *History) Record(a Action) {
	h.undo = PushUndo(h.undo, a, h.limit)
	h.ClearRedo()
}

// Undo pops the latest action, applies its inverse to t and moves it onto
// the redo stack. With nothing to undo it returns (nil, false, nil).
//
// If t fails, the stacks are left untouched.
func (h *History) Undo(t Target) (Action, bool, error) {
	a, rest, ok := PopLast(h.undo)
	if !ok {
		return nil, false, nil
	}
	if err := Invert(t, a); err != nil {
		return nil, false, err
	}
	h.undo = rest
	h.redo = PushUndo(h.redo, a, h.limit)
	return a, true, nil
}

// Redo is the mirror of Undo.
func (h *History) Redo(t Target) (Action, bool, error) {
	a, rest, ok := PopLast(h.redo)
	if !ok {
		return nil, false, nil
	}
	if err := Forward(t, a); err != nil {
		return nil, false, err
	}
	h.redo = rest
	h.undo = PushUndo(h.undo, a, h.limit)
	return a, true, nil
}

func (h *History) ClearRedo() { h.redo = nil }

// Reset drops both stacks, e.g. on logout.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoLen and RedoLen report the stack depths.
func (h *History) UndoLen() int { return len(h.undo) }
func (h *History) RedoLen() int { return len(h.redo) }
