package triviareview

import (
	"strconv"
	"strings"
)

// FilterMode selects which questions the view shows.
type FilterMode string

const (
	FilterAll        FilterMode = "all"
	FilterAssigned   FilterMode = "assigned"
	FilterUnassigned FilterMode = "unassigned"
)

// ParseFilter converts user text to a FilterMode.
func ParseFilter(s string) (FilterMode, error) {
	switch FilterMode(strings.ToLower(strings.TrimSpace(s))) {
	case FilterAll, "":
		return FilterAll, nil
	case FilterAssigned:
		return FilterAssigned, nil
	case FilterUnassigned:
		return FilterUnassigned, nil
	}
	return FilterAll, inputErrorf("unknown filter %q (use all, assigned or unassigned)", s)
}

// Next returns the mode after f, cycling all → unassigned → assigned.
func (f FilterMode) Next() FilterMode {
	switch f {
	case FilterAll:
		return FilterUnassigned
	case FilterUnassigned:
		return FilterAssigned
	default:
		return FilterAll
	}
}

// View is a filtered, searchable projection of a Store used for sequential
// navigation. It is recomputed only by Refresh, SetFilter and SetSearch, so
// assigning a question does not make it vanish from an "unassigned" view
// until the next recompute.
type View struct {
	store  *Store
	mode   FilterMode
	search string
	items  []int // store indices, in store order
	pos    int
}

// NewView creates a view over store showing everything.
func NewView(store *Store) *View {
	v := &View{store: store, mode: FilterAll}
	v.Refresh()
	return v
}

// Mode returns the active filter.
func (v *View) Mode() FilterMode { return v.mode }

// Search returns the active search term.
func (v *View) Search() string { return v.search }

// SetFilter changes the filter, recomputes and moves to the first item.
func (v *View) SetFilter(mode FilterMode) {
	v.mode = mode
	v.Refresh()
}

// SetSearch changes the search term, recomputes and moves to the first item.
func (v *View) SetSearch(term string) {
	v.search = term
	v.Refresh()
}

// Refresh recomputes the item list from the store and moves to the first
// item.
func (v *View) Refresh() {
	term := strings.ToLower(v.search)
	items := make([]int, 0, v.store.Len())
	v.store.Each(func(i int, q *Question) {
		switch v.mode {
		case FilterAssigned:
			if !q.Assigned() {
				return
			}
		case FilterUnassigned:
			if q.Assigned() {
				return
			}
		}
		if term != "" && !strings.Contains(strings.ToLower(q.SearchText()), term) {
			return
		}
		items = append(items, i)
	})
	v.items = items
	v.pos = 0
}

// Total is the number of items in the view.
func (v *View) Total() int { return len(v.items) }

// Position is the 0-based position of the current item.
func (v *View) Position() int { return v.pos }

// Empty reports whether the view has no items.
func (v *View) Empty() bool { return len(v.items) == 0 }

// Current returns the store index and question under the cursor.
func (v *View) Current() (int, *Question, bool) {
	if v.pos < 0 || v.pos >= len(v.items) {
		return -1, nil, false
	}
	idx := v.items[v.pos]
	return idx, v.store.At(idx), true
}

// Indices returns the store indices in view order.
func (v *View) Indices() []int {
	return append([]int(nil), v.items...)
}

// Next moves forward one item. At the last item it does nothing.
func (v *View) Next() bool {
	if v.pos < len(v.items)-1 {
		v.pos++
		return true
	}
	return false
}

// Prev moves back one item. At the first item it does nothing.
func (v *View) Prev() bool {
	if v.pos > 0 {
		v.pos--
		return true
	}
	return false
}

// JumpTo moves to the 1-based position n. Outside [1, Total] it returns an
// InputError and leaves the position alone.
func (v *View) JumpTo(n int) error {
	if n < 1 || n > len(v.items) {
		return inputErrorf("question number must be between 1 and %d", len(v.items))
	}
	v.pos = n - 1
	return nil
}

// JumpToText parses n from user text, then behaves like JumpTo.
func (v *View) JumpToText(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return inputErrorf("please enter a valid question number")
	}
	return v.JumpTo(n)
}

// AdvanceAfterAssign moves to the next unassigned item after the cursor; if
// there is none it moves to the next item; at the end it stays.
func (v *View) AdvanceAfterAssign() {
	for p := v.pos + 1; p < len(v.items); p++ {
		if q := v.store.At(v.items[p]); q != nil && !q.Assigned() {
			v.pos = p
			return
		}
	}
	v.Next()
}

// Focus moves the cursor to the item for store index, if it is in the view.
func (v *View) Focus(index int) bool {
	for p, idx := range v.items {
		if idx == index {
			v.pos = p
			return true
		}
	}
	return false
}

// AssignedCount counts assigned questions among the view's items.
func (v *View) AssignedCount() int {
	n := 0
	for _, idx := range v.items {
		if q := v.store.At(idx); q != nil && q.Assigned() {
			n++
		}
	}
	return n
}
