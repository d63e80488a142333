package triviareview

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const extraConceptTag = "concept_tag"

// QuestionTag returns the concept tag stored on q, or computes one from the
// question text.
func QuestionTag(q *Question) string {
	if raw, ok := q.Extra[extraConceptTag]; ok {
		var tag string
		if err := json.Unmarshal(raw, &tag); err == nil && tag != "" {
			return tag
		}
	}
	return ConceptTag(q.Question)
}

// SetQuestionTag stores tag on q so it is written back with the record.
func SetQuestionTag(q *Question, tag string) {
	raw, _ := json.Marshal(tag)
	if q.Extra == nil {
		q.Extra = map[string]json.RawMessage{}
	}
	q.Extra[extraConceptTag] = raw
}

// Deduper remembers the concept tags it has accepted and rejects questions
// that repeat one. It is safe for concurrent use.
type Deduper struct {
	mu     sync.Mutex
	seen   map[string]bool
	logger *zap.Logger
}

// NewDeduper creates a deduper that already knows the given tags.
func NewDeduper(logger *zap.Logger, existing ...string) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deduper{seen: make(map[string]bool, len(existing)), logger: logger}
	for _, tag := range existing {
		if tag != "" {
			d.seen[tag] = true
		}
	}
	return d
}

// Seed records the tags of questions that are already accepted elsewhere.
func (d *Deduper) Seed(questions []*Question) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range questions {
		d.seen[QuestionTag(q)] = true
	}
}

// Len returns the number of known tags.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Check reports whether q repeats a known concept. A new tag is recorded,
// so a second Check of the same question reports a duplicate.
func (d *Deduper) Check(q *Question) (dup bool, tag string) {
	tag = QuestionTag(q)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[tag] {
		d.logger.Debug("duplicate concept", zap.String("tag", tag), zap.String("question", q.Question))
		return true, tag
	}
	d.seen[tag] = true
	return false, tag
}

// FindDuplicates groups the indices of questions sharing a concept tag.
// Only groups with more than one member are returned, in order of first
// appearance.
func FindDuplicates(questions []*Question) [][]int {
	groups := map[string][]int{}
	var order []string
	for i, q := range questions {
		tag := QuestionTag(q)
		if _, ok := groups[tag]; !ok {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], i)
	}
	var out [][]int
	for _, tag := range order {
		if len(groups[tag]) > 1 {
			out = append(out, groups[tag])
		}
	}
	return out
}
