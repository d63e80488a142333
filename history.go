package triviareview

import (
	"time"
)

// DefaultHistoryLimit is how many undo entries are kept.
const DefaultHistoryLimit = 50

// ActionKind names a kind of undoable change.
type ActionKind string

const (
	ActionAssign     ActionKind = "assign_code"
	ActionBulkAssign ActionKind = "bulk_assign"
	ActionEdit       ActionKind = "edit"
)

// Action is one undoable change. Apply performs it (again, for redo) and
// Revert restores the state before it. Both go through the tracker so the
// code files follow the in-memory records.
type Action interface {
	Kind() ActionKind
	// Target is the store index the UI should land on after undo or redo.
	Target() int
	Apply(t *Tracker) error
	Revert(t *Tracker) error
}

// HistoryEntry is an action plus the time it was first performed.
type HistoryEntry struct {
	Action Action
	At     time.Time
}

// History is a bounded undo stack with a redo stack.
type History struct {
	limit int
	undo  []HistoryEntry
	redo  []HistoryEntry
}

// NewHistory creates a history keeping at most limit entries. A limit below
// one uses DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records a new entry, drops the oldest one past the limit and clears
// the redo stack.
func (h *History) Push(e HistoryEntry) {
	h.undo = append(h.undo, e)
	if over := len(h.undo) - h.limit; over > 0 {
		h.undo = append(h.undo[:0], h.undo[over:]...)
	}
	h.redo = h.redo[:0]
}

// PopUndo moves the newest entry to the redo stack and returns it.
func (h *History) PopUndo() (HistoryEntry, bool) {
	if len(h.undo) == 0 {
		return HistoryEntry{}, false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
	return e, true
}

// PopRedo moves the newest redo entry back to the undo stack and returns it.
func (h *History) PopRedo() (HistoryEntry, bool) {
	if len(h.redo) == 0 {
		return HistoryEntry{}, false
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	return e, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoLen is the number of undoable entries.
func (h *History) UndoLen() int { return len(h.undo) }

// RedoLen is the number of redoable entries.
func (h *History) RedoLen() int { return len(h.redo) }

// Peek returns the newest undo entry without removing it.
func (h *History) Peek() (HistoryEntry, bool) {
	if len(h.undo) == 0 {
		return HistoryEntry{}, false
	}
	return h.undo[len(h.undo)-1], true
}

// AssignAction sets the code of one question. Old is nil when the question
// had no code.
type AssignAction struct {
	Index int
	Old   *int
	New   int
}

func (a *AssignAction) Kind() ActionKind { return ActionAssign }
func (a *AssignAction) Target() int      { return a.Index }

func (a *AssignAction) Apply(t *Tracker) error {
	return t.setCode(a.Index, intPtr(a.New))
}

func (a *AssignAction) Revert(t *Tracker) error {
	return t.setCode(a.Index, a.Old)
}

// BulkAssignAction gives one code to several previously unassigned
// questions.
type BulkAssignAction struct {
	Indices []int
	New     int
}

func (a *BulkAssignAction) Kind() ActionKind { return ActionBulkAssign }

func (a *BulkAssignAction) Target() int {
	if len(a.Indices) == 0 {
		return -1
	}
	return a.Indices[0]
}

func (a *BulkAssignAction) Apply(t *Tracker) error {
	var errs []error
	for _, i := range a.Indices {
		if err := t.setCode(i, intPtr(a.New)); err != nil {
			errs = append(errs, err)
		}
	}
	return joinFileErrors(errs)
}

func (a *BulkAssignAction) Revert(t *Tracker) error {
	var errs []error
	for j := len(a.Indices) - 1; j >= 0; j-- {
		if err := t.setCode(a.Indices[j], nil); err != nil {
			errs = append(errs, err)
		}
	}
	return joinFileErrors(errs)
}

// EditAction replaces the content fields of a question. Before and After
// hold the content only; assignment state is left alone.
type EditAction struct {
	Index  int
	Before *Question
	After  *Question
}

func (a *EditAction) Kind() ActionKind { return ActionEdit }
func (a *EditAction) Target() int      { return a.Index }

func (a *EditAction) Apply(t *Tracker) error {
	return t.replaceContent(a.Index, a.After)
}

func (a *EditAction) Revert(t *Tracker) error {
	return t.replaceContent(a.Index, a.Before)
}
