package triviareview

import "sync"

// Store owns the ordered list of loaded questions. Records are edited in
// place and never removed. The review UI is the only writer; the autosave
// loop reads through Snapshot.
type Store struct {
	mu        sync.RWMutex
	questions []*Question
	dirty     bool
	rev       uint64 // bumped on every change
}

// NewStore creates a store holding questions.
func NewStore(questions []*Question) *Store {
	if questions == nil {
		questions = []*Question{}
	}
	return &Store{questions: questions}
}

// Len returns the number of questions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// At returns the question at index, or nil when out of range. The pointer
// is live; mutate it only through Update.
func (s *Store) At(index int) *Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.questions) {
		return nil
	}
	return s.questions[index]
}

// Update runs fn on the question at index under the write lock and marks
// the store dirty. It reports false when index is out of range.
func (s *Store) Update(index int, fn func(q *Question)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.questions) {
		return false
	}
	fn(s.questions[index])
	s.dirty = true
	s.rev++
	return true
}

// Snapshot returns deep copies of every question.
func (s *Store) Snapshot() []*Question {
	out, _ := s.SnapshotRev()
	return out
}

// SnapshotRev is Snapshot plus the revision it was taken at, for MarkSaved.
func (s *Store) SnapshotRev() ([]*Question, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Question, len(s.questions))
	for i, q := range s.questions {
		out[i] = q.Clone()
	}
	return out, s.rev
}

// Each calls fn for every question in order while holding the read lock.
func (s *Store) Each(fn func(index int, q *Question)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, q := range s.questions {
		fn(i, q)
	}
}

// MarkDirty records unsaved changes.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.rev++
	s.mu.Unlock()
}

// Dirty reports whether there are unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty marks the current state as saved.
func (s *Store) ClearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// MarkSaved clears the dirty flag only if nothing changed since the
// snapshot taken at rev was written.
func (s *Store) MarkSaved(rev uint64) {
	s.mu.Lock()
	if s.rev == rev {
		s.dirty = false
	}
	s.mu.Unlock()
}
