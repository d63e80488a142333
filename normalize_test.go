package triviareview

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const q1 = `{"question":"Q1","answer":"A","options":["A","B"],"category":"X","difficulty":"easy"}`
const q2 = `{"question":"Q2","answer":"B","options":["A","B"],"category":"Y","difficulty":"hard"}`

// plain turns flattened objects back into generic values for comparison.
func plain(t *testing.T, objs []*Object) []any {
	t.Helper()
	data, err := json.Marshal(objs)
	require.NoError(t, err)
	var out []any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Format
	}{
		{"array", "  [" + q1 + "]", FormatJSONArray},
		{"comment", "// first\n" + q1, FormatCommentedObjects},
		{"concatenated", q1 + q2, FormatCommentedObjects},
		{"single object", q1, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.text))
		})
	}
}

func TestNormalizeCommentedObjects(t *testing.T) {
	text := "// c1\n" + q1 + "\n" + q2

	norm, err := Normalize([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, FormatCommentedObjects, norm.Format)
	assert.Empty(t, norm.Dropped)

	want, err := Normalize([]byte("[" + q1 + "," + q2 + "]"))
	require.NoError(t, err)

	if diff := cmp.Diff(plain(t, Flatten(want.Value)), plain(t, Flatten(norm.Value))); diff != "" {
		t.Fatalf("commented objects differ from array (-want +got):\n%s", diff)
	}
}

func TestSplitObjectsHonoursStringsAndEscapes(t *testing.T) {
	text := `// tricky
{"question":"What does } mean?","answer":"brace \" {","options":["brace \" {","x"],"category":"c","difficulty":"easy"},
{"question":"Q2","answer":"B","options":["A","B"],"category":"Y","difficulty":"hard"}`

	objects, dropped := SplitObjects(text)
	require.Empty(t, dropped)
	require.Len(t, objects, 2)

	first := objects[0].(*Object)
	got, _ := first.Get("question")
	assert.Equal(t, "What does } mean?", got)
	ans, _ := first.Get("answer")
	assert.Equal(t, `brace " {`, ans)
}

func TestSplitObjectsDropsMalformed(t *testing.T) {
	text := "// a\n" + q1 + "\n// b\n{\"question\": \"broken\", \"answer\": }\n" + q2 + "\n{\"question\": \"open\""

	objects, dropped := SplitObjects(text)
	assert.Len(t, objects, 2)
	assert.Len(t, dropped, 2)
	assert.Contains(t, dropped[1].Error(), "unterminated")
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing comma", `[{"a":1},]`, `[{"a":1}]`},
		{"adjacent arrays", `[{"a":1}][{"a":2}]`, `[{"a":1},{"a":2}]`},
		{"adjacent objects", `[{"a":1}{"a":2}]`, `[{"a":1},{"a":2}]`},
		{"ellipsis", `[{"a":1}, ...]`, `[{"a":1}]`},
		{"strings untouched", `["wait... what", "x},{y", "a,]"]`, `["wait... what", "x},{y", "a,]"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestNormalizeParseFailure(t *testing.T) {
	_, err := Normalize([]byte(`[{"question": "Q1", "answer": ]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestNormalizeStripsBOMAndFences(t *testing.T) {
	text := "\ufeff```json\n[" + q1 + "]\n```\n"
	norm, err := Normalize([]byte(text))
	require.NoError(t, err)
	assert.Len(t, Flatten(norm.Value), 1)
}

func TestFlattenIgnoresWrapping(t *testing.T) {
	base, err := decodeOrdered(q1)
	require.NoError(t, err)
	want := plain(t, Flatten(base))

	wrapped := []string{
		"[" + q1 + "]",
		"[[[" + q1 + "]]]",
		`{"data":` + q1 + `}`,
		`{"batch":{"items":[` + q1 + `]}}`,
		`[{"wrapper":[{"inner":` + q1 + `}]}]`,
	}
	for _, text := range wrapped {
		v, err := decodeOrdered(text)
		require.NoError(t, err)
		if diff := cmp.Diff(want, plain(t, Flatten(v))); diff != "" {
			t.Errorf("flatten %s (-want +got):\n%s", text, diff)
		}
	}
}

func TestFlattenKeepsDepthFirstOrder(t *testing.T) {
	text := `{"z":{"question":"first","answer":"a"},"a":[{"question":"second","answer":"b"},{"more":{"question":"third","answer":"c"}}]}`
	v, err := decodeOrdered(text)
	require.NoError(t, err)

	var got []string
	for obj := range Candidates(v) {
		q, _ := obj.Get("question")
		got = append(got, q.(string))
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestCandidatesStopsEarly(t *testing.T) {
	v, err := decodeOrdered("[" + q1 + "," + q2 + "]")
	require.NoError(t, err)

	n := 0
	for range Candidates(v) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
