package triviareview

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *ReviewDB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateTables())
	require.NoError(t, db.CreateTables(), "schema creation is idempotent")
	return db
}

func TestReviewDBImport(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := []*Question{
		mustQuestion(t, `{"question":"Q1","answer":"A","options":["A","B"],"category":"X","difficulty":"easy","assigned_code":2,"source":"wiki"}`),
		mustQuestion(t, q2),
	}
	second := []*Question{
		mustQuestion(t, `{"question":"Q3","answer":"A","options":["A","B"],"category":["X","Y"],"difficulty":"hard","assigned_code":2}`),
	}
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	id1, err := db.ImportQuestions(ctx, "a.json", first, t0)
	require.NoError(t, err)
	id2, err := db.ImportQuestions(ctx, "b.json", second, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	batches, err := db.Batches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, id2, batches[0].ID)
	assert.Equal(t, "a.json", batches[1].Source)
	assert.Equal(t, 2, batches[1].Count)
	assert.True(t, batches[1].ImportedAt.Equal(t0))

	limited, err := db.Batches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	coded, err := db.QuestionsByCode(ctx, 2)
	require.NoError(t, err)
	require.Len(t, coded, 2)
	assert.Equal(t, "Q1", coded[0].Record.Question)
	assert.Equal(t, `"wiki"`, string(coded[0].Record.Extra["source"]))
	assert.Equal(t, "Q3", coded[1].Record.Question)
	assert.True(t, coded[1].Record.Category.IsList())

	counts, err := db.CountByCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2: 2}, counts)

	rows, err := db.QuestionsByBatch(ctx, id1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].Position)
	assert.False(t, rows[1].Record.Assigned())

	_, err = db.QuestionsByCode(ctx, 12)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestReviewDBConcepts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	q := &Question{Question: "Who is the manager of Arsenal?", Answer: "A", Options: []string{"A", "B"}, Category: NewCategory("c"), Difficulty: "easy"}
	_, err := db.ImportQuestions(ctx, "gen.json", []*Question{q}, time.Now())
	require.NoError(t, err)

	ok, err := db.HasConcept(ctx, "arsenal coach")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.HasConcept(ctx, "chelsea coach")
	require.NoError(t, err)
	assert.False(t, ok)

	tags, err := db.ConceptTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"arsenal coach"}, tags)
}
