package triviareview

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateCandidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"not an object", `"just text"`, "not an object"},
		{"missing options", `{"question":"Q","answer":"A","category":"c","difficulty":"easy"}`, "missing field 'options'"},
		{"missing difficulty", `{"question":"Q","answer":"A","options":["A"],"category":"c"}`, "missing field 'difficulty'"},
		{"options not a list", `{"question":"Q","answer":"A","options":"A, B","category":"c","difficulty":"easy"}`, "options is not a list"},
		{"answer not in options", `{"question":"Q","answer":"C","options":["A","B"],"category":"c","difficulty":"easy"}`, `answer "C" not in options`},
		{"number answer among string options", `{"question":"Q","answer":2010,"options":["2010","2014"],"category":"c","difficulty":"easy"}`, "answer 2010 not in options"},
		{"string answer among number options", `{"question":"Q","answer":"1969","options":[1969,1970],"category":"c","difficulty":"easy"}`, `answer "1969" not in options`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decodeOrdered(tt.text)
			require.NoError(t, err)

			q, err := ValidateCandidate(4, v)
			require.Nil(t, q)
			var rej *RejectError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, 4, rej.Index)
			assert.Equal(t, tt.reason, rej.Reason)
			assert.Contains(t, err.Error(), "question 5:")
		})
	}
}

func TestValidateCandidateAcceptsUnchanged(t *testing.T) {
	text := `{"question":"Year?","answer":1969,"options":[1969,1970],"category":["History","Space"],"difficulty":"easy","source":"batch-7"}`
	v, err := decodeOrdered(text)
	require.NoError(t, err)

	q, err := ValidateCandidate(0, v)
	require.NoError(t, err)
	assert.Equal(t, "1969", q.Answer)
	assert.Equal(t, []string{"1969", "1970"}, q.Options)
	assert.True(t, q.Category.IsList())
	assert.JSONEq(t, `"batch-7"`, string(q.Extra["source"]))
}

func TestValidateCandidateFromMap(t *testing.T) {
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(q1), &m))

	q, err := ValidateCandidate(0, m)
	require.NoError(t, err)
	assert.Equal(t, "Q1", q.Question)
}

func TestLoadCountsAcceptedAndSkipped(t *testing.T) {
	raw := `[
		` + q1 + `,
		{"question":"bad","answer":"Z","options":["A"],"category":"c","difficulty":"easy"},
		{"group":[` + q2 + `,{"question":"no options","answer":"A","category":"c","difficulty":"easy"}]}
	]`

	core, logs := observer.New(zap.WarnLevel)
	res, err := NewLoader(zap.New(core)).Load([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, FormatJSONArray, res.Format)
	assert.Equal(t, 4, res.Candidates)
	assert.Equal(t, 2, res.Accepted())
	assert.Equal(t, 2, res.Skipped())
	assert.Equal(t, "Q1", res.Questions[0].Question)
	assert.Equal(t, "Q2", res.Questions[1].Question)
	assert.Equal(t, 2, logs.FilterMessage("skipping question").Len())
}

func TestLoadReportsDroppedObjects(t *testing.T) {
	raw := "// one\n" + q1 + "\n// two\n{\"question\": oops}\n" + q2

	core, logs := observer.New(zap.WarnLevel)
	res, err := NewLoader(zap.New(core)).Load([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted())
	assert.Len(t, res.Dropped, 1)
	assert.Equal(t, 1, logs.FilterMessage("dropped malformed object").Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte("["+q1+"]"), 0o644))

	res, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 1, res.Accepted())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadParseFailureLoadsNothing(t *testing.T) {
	res, err := Load([]byte(`[{"question": "Q1"`))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrParse)
}
