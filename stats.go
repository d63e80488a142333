package triviareview

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Stats summarises assignment progress over a set of questions.
type Stats struct {
	Total        int            `json:"total_questions"`
	Assigned     int            `json:"assigned"`
	Unassigned   int            `json:"unassigned"`
	Skipped      int            `json:"skipped"`
	ByCode       map[int]int    `json:"by_code"`
	ByCategory   map[string]int `json:"by_category"`
	ByDifficulty map[string]int `json:"by_difficulty"`
	// Per-code counts of assigned questions only.
	ByCategoryCode   map[string]map[int]int `json:"by_category_code"`
	ByDifficultyCode map[string]map[int]int `json:"by_difficulty_code"`
}

// ComputeStats counts questions by code, category and difficulty. A list
// category counts under its joined label.
func ComputeStats(questions []*Question) *Stats {
	s := &Stats{
		ByCode:           map[int]int{},
		ByCategory:       map[string]int{},
		ByDifficulty:     map[string]int{},
		ByCategoryCode:   map[string]map[int]int{},
		ByDifficultyCode: map[string]map[int]int{},
	}
	for _, q := range questions {
		s.Total++
		category := q.Category.String()
		if category == "" {
			category = "Unknown"
		}
		difficulty := q.Difficulty
		if difficulty == "" {
			difficulty = "Unknown"
		}
		s.ByCategory[category]++
		s.ByDifficulty[difficulty]++
		if q.Skipped {
			s.Skipped++
		}

		code, ok := q.Code()
		if !ok {
			s.Unassigned++
			continue
		}
		s.Assigned++
		s.ByCode[code]++
		bump(s.ByCategoryCode, category, code)
		bump(s.ByDifficultyCode, difficulty, code)
	}
	return s
}

func bump(m map[string]map[int]int, key string, code int) {
	if m[key] == nil {
		m[key] = map[int]int{}
	}
	m[key][code]++
}

// AssignedPercent is the share of questions with a code.
func (s *Stats) AssignedPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Assigned) / float64(s.Total) * 100
}

// LabelFunc names a code for display.
type LabelFunc func(code int) string

// DefaultLabel is "Code N".
func DefaultLabel(code int) string {
	return fmt.Sprintf("Code %d", code)
}

// WriteText renders the plain text report.
func (s *Stats) WriteText(w io.Writer, label LabelFunc) error {
	if label == nil {
		label = DefaultLabel
	}
	var b strings.Builder
	b.WriteString("TRIVIA QUESTIONS STATISTICS\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Total Questions: %d\n", s.Total)
	fmt.Fprintf(&b, "Assigned: %d (%.1f%%)\n", s.Assigned, s.AssignedPercent())
	fmt.Fprintf(&b, "Unassigned: %d\n", s.Unassigned)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped: %d\n", s.Skipped)
	}

	b.WriteString("\nBY CODE:\n")
	for _, code := range sortedKeys(s.ByCode) {
		fmt.Fprintf(&b, "  %s: %d\n", label(code), s.ByCode[code])
	}

	writeBreakdown(&b, "BY CATEGORY", s.ByCategory, s.ByCategoryCode, label)
	writeBreakdown(&b, "BY DIFFICULTY", s.ByDifficulty, s.ByDifficultyCode, label)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeBreakdown(b *strings.Builder, title string, totals map[string]int, byCode map[string]map[int]int, label LabelFunc) {
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, key := range sortedKeys(totals) {
		fmt.Fprintf(b, "  %s: %d\n", key, totals[key])
		for _, code := range sortedKeys(byCode[key]) {
			fmt.Fprintf(b, "    -> %s: %d\n", label(code), byCode[key][code])
		}
	}
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
