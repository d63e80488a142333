package triviareview

import (
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Format is the layout detected in a questions file.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSONArray
	FormatCommentedObjects
)

func (f Format) String() string {
	switch f {
	case FormatJSONArray:
		return "json_array"
	case FormatCommentedObjects:
		return "commented_objects"
	default:
		return "unknown"
	}
}

// Normalized is the parsed content of a questions file before flattening.
type Normalized struct {
	Value  any
	Format Format
	// Dropped lists objects of a commented/concatenated file that did not
	// parse and were skipped.
	Dropped []error
}

// Normalize turns raw file bytes into a JSON value. A byte order mark is
// ignored and invalid UTF-8 is replaced. Commented or concatenated objects
// are split one by one; anything else goes through CleanJSON and must then
// parse as a whole, otherwise ErrParse is returned.
func Normalize(raw []byte) (*Normalized, error) {
	text := decodeSource(raw)
	text = stripCodeFences(text)

	format := DetectFormat(text)
	if format == FormatCommentedObjects {
		objects, dropped := SplitObjects(text)
		return &Normalized{Value: objects, Format: format, Dropped: dropped}, nil
	}

	value, err := decodeOrdered(CleanJSON(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &Normalized{Value: value, Format: format}, nil
}

// DetectFormat decides how a file should be read. Text starting with '[' is
// a standard array; text with // comment lines or more than one '{' is a
// run of separate objects.
func DetectFormat(text string) Format {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		return FormatJSONArray
	}
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			return FormatCommentedObjects
		}
	}
	if strings.Count(text, "{") > 1 {
		return FormatCommentedObjects
	}
	return FormatUnknown
}

// SplitObjects extracts top-level JSON objects from text that is not a JSON
// array: objects separated by // comment lines, blank lines, commas or
// nothing at all. Braces inside string literals are ignored, honouring
// backslash escapes. Each object is parsed on its own; one that fails is
// reported in the second return value and skipped.
func SplitObjects(text string) ([]any, []error) {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "//") {
			continue
		}
		kept = append(kept, line)
	}
	body := strings.Join(kept, "\n")

	objects := []any{}
	var dropped []error
	depth := 0
	start := -1
	inString, escaped := false, false

	for i := 0; i < len(body); i++ {
		c := body[i]
		if depth == 0 {
			// Separators and stray text between objects.
			if c == '{' {
				depth, start = 1, i
				inString, escaped = false, false
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := body[start : i+1]
				value, err := decodeOrdered(candidate)
				if err != nil {
					dropped = append(dropped, fmt.Errorf("object %d (%s): %w", len(objects)+len(dropped)+1, preview(candidate), err))
				} else {
					objects = append(objects, value)
				}
				start = -1
			}
		}
	}
	if depth > 0 && start >= 0 {
		dropped = append(dropped, fmt.Errorf("object %d (%s): unterminated", len(objects)+len(dropped)+1, preview(body[start:])))
	}
	return objects, dropped
}

var (
	reEllipsisAfterComma = regexp.MustCompile(`,\s*\.\.\.\s*`)
	reEllipsis           = regexp.MustCompile(`\.\.\.\s*`)
	reAdjacentArrays     = regexp.MustCompile(`\]\s*\[`)
	reTrailingComma      = regexp.MustCompile(`,\s*([}\]])`)
	reAdjacentObjects    = regexp.MustCompile(`\}\s*\{`)
)

// CleanJSON repairs the usual damage in hand-assembled arrays: "..."
// placeholders, arrays pasted back to back, trailing commas and objects
// with no comma between them. String literals are never touched.
func CleanJSON(text string) string {
	return mapOutsideStrings(strings.TrimSpace(text), func(seg string) string {
		seg = reEllipsisAfterComma.ReplaceAllString(seg, "")
		seg = reEllipsis.ReplaceAllString(seg, "")
		seg = reAdjacentArrays.ReplaceAllString(seg, ",")
		seg = reTrailingComma.ReplaceAllString(seg, "$1")
		seg = reAdjacentObjects.ReplaceAllString(seg, "},{")
		return seg
	})
}

// mapOutsideStrings applies fn to every run of text that lies outside JSON
// string literals and returns the reassembled text.
func mapOutsideStrings(text string, fn func(string) string) string {
	var out strings.Builder
	out.Grow(len(text))
	segStart := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '"' {
			continue
		}
		out.WriteString(fn(text[segStart:i]))
		end := i + 1
		for end < len(text) {
			if text[end] == '\\' {
				end += 2
				continue
			}
			if text[end] == '"' {
				break
			}
			end++
		}
		if end >= len(text) {
			out.WriteString(text[i:])
			return out.String()
		}
		out.WriteString(text[i : end+1])
		i = end
		segStart = end + 1
	}
	out.WriteString(fn(text[segStart:]))
	return out.String()
}

// stripCodeFences drops markdown fence lines that model output tends to wrap
// JSON in.
func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func decodeSource(raw []byte) string {
	text := string(raw)
	text = strings.TrimPrefix(text, "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	return text
}

// Candidates walks v depth first and yields every object that has both a
// "question" and an "answer" key. Other objects have their values walked and
// arrays their elements, so any amount of wrapping is seen through.
func Candidates(v any) iter.Seq[*Object] {
	return func(yield func(*Object) bool) {
		walkCandidates(v, yield)
	}
}

func walkCandidates(v any, yield func(*Object) bool) bool {
	switch t := v.(type) {
	case *Object:
		if t.Has(fieldQuestion) && t.Has(fieldAnswer) {
			return yield(t)
		}
		for _, k := range t.keys {
			if !walkCandidates(t.values[k], yield) {
				return false
			}
		}
	case []any:
		for _, item := range t {
			if !walkCandidates(item, yield) {
				return false
			}
		}
	}
	return true
}

// Flatten collects Candidates into a slice.
func Flatten(v any) []*Object {
	return slices.Collect(Candidates(v))
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > 60 {
		r := []rune(s)
		s = string(r[:57]) + "..."
	}
	return s
}
