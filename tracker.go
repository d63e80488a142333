package triviareview

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Tracker applies code assignments and edits to the store, keeps the code
// files in step and records every change in the undo history.
//
// In-memory state always changes first. A returned *FileError means the
// record was updated but its code file could not be; the caller reports it
// and carries on.
type Tracker struct {
	store   *Store
	view    *View
	files   *CodeFiles
	history *History
	logger  *zap.Logger
	now     func() time.Time
}

// NewTracker wires a tracker. files may have an empty Dir, in which case
// nothing is written to disk.
func NewTracker(store *Store, view *View, files *CodeFiles, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if files == nil {
		files = NewCodeFiles("", logger)
	}
	return &Tracker{
		store:   store,
		view:    view,
		files:   files,
		history: NewHistory(DefaultHistoryLimit),
		logger:  logger,
		now:     time.Now,
	}
}

// History exposes the undo history.
func (t *Tracker) History() *History { return t.history }

func (t *Tracker) CanUndo() bool { return t.history.CanUndo() }
func (t *Tracker) CanRedo() bool { return t.history.CanRedo() }

// Assign gives the current question code, records it for undo and moves the
// view to the next unassigned question. Assigning the code a question
// already has is allowed and is recorded like any other assignment.
func (t *Tracker) Assign(code int) error {
	if !ValidCode(code) {
		return fmt.Errorf("%w: got %d", ErrInvalidCode, code)
	}
	idx, q, ok := t.view.Current()
	if !ok {
		return ErrNoCurrent
	}
	var old *int
	if c, ok := q.Code(); ok {
		old = intPtr(c)
	}
	action := &AssignAction{Index: idx, Old: old, New: code}
	t.history.Push(HistoryEntry{Action: action, At: t.now()})
	err := action.Apply(t)
	t.view.AdvanceAfterAssign()
	return t.report(action, err)
}

// Undo reverts the newest history entry, recomputes the view and lands on
// the affected question when it is still visible.
func (t *Tracker) Undo() error {
	e, ok := t.history.PopUndo()
	if !ok {
		return ErrNothingToUndo
	}
	err := e.Action.Revert(t)
	t.refocus(e.Action.Target())
	return t.report(e.Action, err)
}

// Redo performs the newest undone entry again.
func (t *Tracker) Redo() error {
	e, ok := t.history.PopRedo()
	if !ok {
		return ErrNothingToRedo
	}
	err := e.Action.Apply(t)
	t.refocus(e.Action.Target())
	return t.report(e.Action, err)
}

// BulkAssign gives code to every question in indices as one undoable step.
// Every index must be in range and unassigned; otherwise an *InputError is
// returned and nothing changes. It returns the number of questions
// assigned.
func (t *Tracker) BulkAssign(indices []int, code int) (int, error) {
	if !ValidCode(code) {
		return 0, inputErrorf("invalid code selection: %d", code)
	}
	if len(indices) == 0 {
		return 0, inputErrorf("please select at least one question")
	}
	selected := slices.Clone(indices)
	slices.Sort(selected)
	selected = slices.Compact(selected)
	for _, i := range selected {
		q := t.store.At(i)
		if q == nil {
			return 0, inputErrorf("question %d does not exist (have %d)", i+1, t.store.Len())
		}
		if q.Assigned() {
			return 0, inputErrorf("question %d is already assigned", i+1)
		}
	}

	action := &BulkAssignAction{Indices: selected, New: code}
	t.history.Push(HistoryEntry{Action: action, At: t.now()})
	err := action.Apply(t)
	t.view.Refresh()
	return len(selected), t.report(action, err)
}

// QuestionEdit is the editable content of a question.
type QuestionEdit struct {
	Question   string
	Answer     string
	Options    []string
	Category   string
	Difficulty string
}

// EditOf returns the current content of q in editable form.
func EditOf(q *Question) QuestionEdit {
	return QuestionEdit{
		Question:   q.Question,
		Answer:     q.Answer,
		Options:    slices.Clone(q.Options),
		Category:   q.Category.String(),
		Difficulty: q.Difficulty,
	}
}

// Edit replaces the content of the question at index. All fields are
// required and the answer must be one of the options. For an assigned
// question the code file entry moves with it.
func (t *Tracker) Edit(index int, e QuestionEdit) error {
	q := t.store.At(index)
	if q == nil {
		return inputErrorf("question %d does not exist", index+1)
	}
	var options []string
	for _, opt := range e.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	question := strings.TrimSpace(e.Question)
	answer := strings.TrimSpace(e.Answer)
	category := strings.TrimSpace(e.Category)
	difficulty := strings.TrimSpace(e.Difficulty)
	if question == "" || answer == "" || len(options) == 0 || category == "" || difficulty == "" {
		return inputErrorf("all fields are required")
	}
	if !slices.Contains(options, answer) {
		return inputErrorf("answer must be one of the options")
	}

	after := q.Clone()
	after.Question = question
	after.Answer = answer
	after.Options = options
	after.Difficulty = difficulty
	if q.Category.IsList() {
		var labels []string
		for _, l := range strings.Split(category, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		after.Category = CategoryList(labels...)
	} else {
		after.Category = NewCategory(category)
	}

	action := &EditAction{Index: index, Before: q.Clone(), After: after}
	t.history.Push(HistoryEntry{Action: action, At: t.now()})
	return t.report(action, action.Apply(t))
}

// Skip flags the current question as skipped and moves on. Skipping is not
// recorded in the history.
func (t *Tracker) Skip() error {
	idx, _, ok := t.view.Current()
	if !ok {
		return ErrNoCurrent
	}
	t.store.Update(idx, func(q *Question) { q.Skipped = true })
	t.view.Next()
	return nil
}

// setCode moves the question at index from its current code file (if any)
// to the file for code. A nil code leaves it unassigned.
func (t *Tracker) setCode(index int, code *int) error {
	q := t.store.At(index)
	if q == nil {
		return fmt.Errorf("question index %d out of range", index)
	}
	var errs []error
	if old, ok := q.Code(); ok {
		if err := t.files.Remove(q, old); err != nil {
			errs = append(errs, err)
		}
	}
	t.store.Update(index, func(q *Question) {
		if code == nil {
			q.AssignedCode = nil
		} else {
			q.AssignedCode = intPtr(*code)
		}
	})
	if code != nil {
		if err := t.files.Upsert(q, *code); err != nil {
			errs = append(errs, err)
		}
	}
	return joinFileErrors(errs)
}

// replaceContent swaps the content fields of the question at index for
// those of content.
func (t *Tracker) replaceContent(index int, content *Question) error {
	q := t.store.At(index)
	if q == nil {
		return fmt.Errorf("question index %d out of range", index)
	}
	var errs []error
	code, assigned := q.Code()
	if assigned && q.Key() != content.Key() {
		if err := t.files.Remove(q, code); err != nil {
			errs = append(errs, err)
		}
	}
	c := content.Clone()
	t.store.Update(index, func(q *Question) {
		q.Question = c.Question
		q.Answer = c.Answer
		q.Options = c.Options
		q.Category = c.Category
		q.Subcategories = c.Subcategories
		q.Difficulty = c.Difficulty
	})
	if assigned {
		if err := t.files.Upsert(q, code); err != nil {
			errs = append(errs, err)
		}
	}
	return joinFileErrors(errs)
}

func (t *Tracker) refocus(target int) {
	t.view.Refresh()
	t.view.Focus(target)
}

func (t *Tracker) report(a Action, err error) error {
	if err != nil {
		t.logger.Warn("code file update failed",
			zap.String("action", string(a.Kind())),
			zap.Int("index", a.Target()),
			zap.Error(err))
	}
	return err
}

// joinFileErrors returns the single error as is so callers can match a
// *FileError directly, and joins several.
func joinFileErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}
