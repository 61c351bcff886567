package markdown

// DefaultHistorySize bounds the undo stack.
const DefaultHistorySize = 100

// History is an undo/redo stack of whole-content snapshots.
type History struct {
	max  int
	undo []string
	redo []string
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Push records the content before an edit and drops the redo stack. The
// oldest entry is discarded past the bound.
func (h *History) Push(previous string) {
	h.undo = append(h.undo, previous)
	if len(h.undo) > h.max {
		h.undo = h.undo[len(h.undo)-h.max:]
	}
	h.redo = h.redo[:0]
}

// Undo returns the content to restore, moving current to the redo stack.
func (h *History) Undo(current string) (string, bool) {
	if len(h.undo) == 0 {
		return "", false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo reverses the last Undo.
func (h *History) Redo(current string) (string, bool) {
	if len(h.redo) == 0 {
		return "", false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return next, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
func (h *History) Len() int { return len(h.undo) }

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}
