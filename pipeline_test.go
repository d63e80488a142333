package triviareview

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	batches [][]string // raw JSON per call
	errs    []error
	calls   []int
	facts   [][]string
}

func (g *scriptedGenerator) GenerateQuestions(_ context.Context, req GenerationRequest, n int, facts []string) ([]*Object, error) {
	i := len(g.calls)
	g.calls = append(g.calls, n)
	g.facts = append(g.facts, facts)
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	var out []*Object
	if i >= len(g.batches) {
		return out, nil
	}
	for _, raw := range g.batches[i] {
		v, err := decodeOrdered(raw)
		if err != nil {
			return nil, err
		}
		obj := v.(*Object)
		obj.Set(fieldCategory, req.Category)
		obj.Set(fieldDifficulty, req.Difficulty)
		out = append(out, obj)
	}
	return out, nil
}

type failingChecker struct{ fail string }

func (c failingChecker) CheckQuestion(_ context.Context, q *Question) (*Verdict, error) {
	if q.Question == c.fail {
		return &Verdict{Pass: false, Reason: "wrong"}, nil
	}
	return &Verdict{Pass: true}, nil
}

func TestPipelineRun(t *testing.T) {
	gen := &scriptedGenerator{
		batches: [][]string{
			{
				`{"question":"Who is the manager of Arsenal?","answer":"A","options":["A","B","C","D"]}`,
				`{"question":"Who is the coach of Arsenal?","answer":"A","options":["A","B","C","D"]}`,
				`{"question":"No answer","answer":"Z","options":["A","B"]}`,
			},
			{
				`{"question":"Which stadium hosts Chelsea?","answer":"B","options":["A","B"]}`,
				`{"question":"Checked out","answer":"A","options":["A","B"]}`,
			},
		},
	}
	p := NewPipeline(gen, nil,
		WithBatchSize(3),
		WithChecker(failingChecker{fail: "Checked out"}),
		WithRand(rand.New(rand.NewPCG(1, 2))))

	res, err := p.Run(context.Background(), GenerationRequest{Category: "Leagues", Difficulty: "easy", Count: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, gen.calls)

	require.Len(t, res.Questions, 2)
	assert.Equal(t, "Who is the manager of Arsenal?", res.Questions[0].Question)
	assert.Equal(t, "arsenal coach", QuestionTag(res.Questions[0]))
	assert.Contains(t, string(res.Questions[0].Extra["concept_tag"]), "arsenal coach")
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, res.Questions[0].Options)
	assert.Equal(t, "easy", res.Questions[1].Difficulty)

	reasons := map[string]string{}
	for _, d := range res.Discarded {
		reasons[d.Question] = d.Reason
	}
	assert.Equal(t, "duplicate concept: arsenal coach", reasons["Who is the coach of Arsenal?"])
	assert.Equal(t, `answer "Z" not in options`, reasons["No answer"])
	assert.Equal(t, "failed check: wrong", reasons["Checked out"])
}

func TestPipelineFactsAndBatchErrors(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("rate limited")}}
	p := NewPipeline(gen, nil, WithBatchSize(2))

	req := GenerationRequest{Category: "Leagues", Count: 6, Facts: []string{"f1", "f2", "f3"}}
	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"f1", "f2"}, {"f3"}}, gen.facts, "stops when facts run out")
	require.Len(t, res.BatchErrors, 1)
	assert.EqualError(t, res.BatchErrors[0], "batch 1: rate limited")
}

func TestPipelineRejectsBadRequest(t *testing.T) {
	p := NewPipeline(&scriptedGenerator{}, nil)
	_, err := p.Run(context.Background(), GenerationRequest{Category: "x"})
	var inErr *InputError
	assert.ErrorAs(t, err, &inErr)

	_, err = p.Run(context.Background(), GenerationRequest{Count: 1})
	assert.ErrorAs(t, err, &inErr)
}

func TestPipelineSeededDeduper(t *testing.T) {
	gen := &scriptedGenerator{batches: [][]string{{
		`{"question":"Who is the manager of Arsenal?","answer":"A","options":["A","B"]}`,
	}}}
	master := []*Question{{Question: "Who is the coach of Arsenal?"}}
	d := NewDeduper(nil)
	d.Seed(master)

	res, err := NewPipeline(gen, nil, WithDeduper(d)).Run(context.Background(), GenerationRequest{Category: "c", Count: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Questions)
	require.Len(t, res.Discarded, 1)
}

func TestSaveRunAndMaster(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	req := GenerationRequest{Category: "Time Periods", Subcategory: "1990s", Difficulty: "hard"}
	assert.Equal(t, "trivia_Time_Periods_1990s_hard_20240506_070809.json", OutputName(req, now))

	qs := []*Question{mustQuestion(t, q1), mustQuestion(t, q2)}
	path, err := SaveRun(dir, req, qs, now)
	require.NoError(t, err)
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Accepted())

	masterPath := filepath.Join(dir, "master_trivia.json")
	got, err := LoadMaster(masterPath, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, AppendMaster(masterPath, qs[:1], nil))
	require.NoError(t, AppendMaster(masterPath, qs[1:], nil))
	got, err = LoadMaster(masterPath, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Q2", got[1].Question)

	_, err = os.Stat(masterPath)
	require.NoError(t, err)
}
