package triviareview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Assignment codes a reviewer can give a question.
const (
	MinCode = 0
	MaxCode = 9
)

// ValidCode reports whether code is in the assignable range.
func ValidCode(code int) bool {
	return code >= MinCode && code <= MaxCode
}

// Question is a single trivia record as it appears in the input files.
type Question struct {
	Question      string
	Answer        string
	Options       []string
	Category      Category
	Subcategories []string
	Difficulty    string
	AssignedCode  *int
	Skipped       bool

	// Extra holds keys this tool does not interpret (source, concept_tag,
	// timestamps, ...) so they survive every rewrite.
	Extra map[string]json.RawMessage
}

// QuestionKey identifies a record inside a per-code file. The source data
// has no stable id, so the question text plus the answer is used.
type QuestionKey struct {
	Question string
	Answer   string
}

// Key returns the identity of q.
func (q *Question) Key() QuestionKey {
	return QuestionKey{Question: q.Question, Answer: q.Answer}
}

// Assigned reports whether the question carries a code.
func (q *Question) Assigned() bool {
	return q.AssignedCode != nil
}

// Code returns the assigned code and whether one is set.
func (q *Question) Code() (int, bool) {
	if q.AssignedCode == nil {
		return 0, false
	}
	return *q.AssignedCode, true
}

// Clone returns a deep copy of q.
func (q *Question) Clone() *Question {
	c := *q
	c.Options = append([]string(nil), q.Options...)
	c.Category = Category{Values: append([]string(nil), q.Category.Values...), list: q.Category.list}
	if q.Subcategories != nil {
		c.Subcategories = append([]string{}, q.Subcategories...)
	}
	if q.AssignedCode != nil {
		c.AssignedCode = intPtr(*q.AssignedCode)
	}
	if q.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(q.Extra))
		for k, v := range q.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// HasOption reports whether answer is one of the options.
func (q *Question) HasOption(answer string) bool {
	for _, opt := range q.Options {
		if opt == answer {
			return true
		}
	}
	return false
}

// SearchText is the text the search box matches against.
func (q *Question) SearchText() string {
	return q.Question + " " + q.Answer + " " + q.Category.String()
}

// Known JSON keys, in the order they are written back.
const (
	fieldQuestion      = "question"
	fieldAnswer        = "answer"
	fieldOptions       = "options"
	fieldCategory      = "category"
	fieldSubcategories = "subcategories"
	fieldDifficulty    = "difficulty"
	fieldAssignedCode  = "assigned_code"
	fieldSkipped       = "skipped"
)

// UnmarshalJSON decodes a question object, keeping unknown keys in Extra.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Question
	for key, value := range raw {
		var err error
		switch key {
		case fieldQuestion:
			err = decodeText(value, &out.Question)
		case fieldAnswer:
			err = decodeText(value, &out.Answer)
		case fieldOptions:
			out.Options, err = decodeTextList(value)
		case fieldCategory:
			err = json.Unmarshal(value, &out.Category)
		case fieldSubcategories:
			err = json.Unmarshal(value, &out.Subcategories)
			if err == nil && out.Subcategories == nil && !isNull(value) {
				out.Subcategories = []string{}
			}
		case fieldDifficulty:
			err = decodeText(value, &out.Difficulty)
		case fieldAssignedCode:
			if !isNull(value) {
				var code int
				if err = json.Unmarshal(value, &code); err == nil {
					out.AssignedCode = &code
				}
			}
		case fieldSkipped:
			if !isNull(value) {
				err = json.Unmarshal(value, &out.Skipped)
			}
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[key] = value
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	*q = out
	return nil
}

// MarshalJSON writes the known fields first, then the extra keys sorted.
func (q Question) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		b, err := marshalNoEscape(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := marshalNoEscape(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	options := q.Options
	if options == nil {
		options = []string{}
	}
	fields := []struct {
		key   string
		value any
	}{
		{fieldQuestion, q.Question},
		{fieldAnswer, q.Answer},
		{fieldOptions, options},
		{fieldCategory, q.Category},
	}
	if q.Subcategories != nil {
		fields = append(fields, struct {
			key   string
			value any
		}{fieldSubcategories, q.Subcategories})
	}
	fields = append(fields, struct {
		key   string
		value any
	}{fieldDifficulty, q.Difficulty})

	for _, f := range fields {
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(q.Extra))
	for k := range q.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, q.Extra[k]); err != nil {
			return nil, err
		}
	}

	if q.AssignedCode != nil {
		if err := write(fieldAssignedCode, *q.AssignedCode); err != nil {
			return nil, err
		}
	}
	if q.Skipped {
		if err := write(fieldSkipped, true); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Category is either a single label or a list of labels in the source data.
// It is kept as a list internally and written back in the form it was read.
type Category struct {
	Values []string
	list   bool
}

// NewCategory returns a single-label category.
func NewCategory(label string) Category {
	return Category{Values: []string{label}}
}

// CategoryList returns a list-form category.
func CategoryList(labels ...string) Category {
	return Category{Values: append([]string{}, labels...), list: true}
}

// IsList reports whether the category was given as a JSON array.
func (c Category) IsList() bool {
	return c.list
}

// Empty reports whether no label is set.
func (c Category) Empty() bool {
	for _, v := range c.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (c Category) String() string {
	return strings.Join(c.Values, ", ")
}

// UnmarshalJSON accepts a string or an array of strings.
func (c *Category) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*c = Category{}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*c = Category{Values: []string{single}}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("category must be a string or a list of strings")
	}
	*c = Category{Values: many, list: true}
	return nil
}

// MarshalJSON writes the category in its original form.
func (c Category) MarshalJSON() ([]byte, error) {
	if c.list {
		values := c.Values
		if values == nil {
			values = []string{}
		}
		return marshalNoEscape(values)
	}
	return marshalNoEscape(c.String())
}

// marshalNoEscape encodes v without HTML escaping so non-ASCII text and
// characters like & stay readable in the output files.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeText accepts a JSON string or number. Generated files sometimes carry
// years and scores as bare numbers.
func decodeText(raw json.RawMessage, dst *string) error {
	if err := json.Unmarshal(raw, dst); err == nil {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && !isNull(raw) {
		*dst = n.String()
		return nil
	}
	return fmt.Errorf("expected text")
}

func decodeTextList(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected a list")
	}
	out := make([]string, len(items))
	for i, item := range items {
		if err := decodeText(item, &out[i]); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return out, nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func intPtr(v int) *int {
	return &v
}
