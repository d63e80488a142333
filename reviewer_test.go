package triviareview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeQuestions(t *testing.T, dir string, records ...string) string {
	t.Helper()
	path := filepath.Join(dir, "questions.json")
	body := "["
	for i, r := range records {
		if i > 0 {
			body += ","
		}
		body += r
	}
	require.NoError(t, os.WriteFile(path, []byte(body+"]"), 0o644))
	return path
}

func TestReviewerOpenSetsFolders(t *testing.T) {
	dir := t.TempDir()
	path := writeQuestions(t, dir, q1, q2)
	cfg := NewConfig(filepath.Join(dir, DefaultConfigFile), nil)

	r := NewReviewer(cfg, nil)
	assert.False(t, r.Loaded())
	assert.ErrorIs(t, r.Assign(1), ErrNotLoaded)

	res, err := r.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted())
	assert.Equal(t, path, cfg.LastFile())
	assert.Equal(t, dir, cfg.OutputFolder())

	require.NoError(t, r.Assign(4))
	files := NewCodeFiles(dir, nil)
	assert.Equal(t, []QuestionKey{{"Q1", "A"}}, readKeys(t, files, 4))
}

func TestReviewerOpenSessionFolder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := writeQuestions(t, dir, q1)
	cfg := NewConfig(filepath.Join(dir, DefaultConfigFile), nil)
	cfg.SetOutputFolder(filepath.Join(dir, "stale"))

	r := NewReviewer(cfg, nil)
	r.SetOutputFolder(out)
	_, err := r.Open(path)
	require.NoError(t, err)
	assert.Equal(t, out, r.OutputFolder())

	require.NoError(t, r.Assign(0))
	_, err = os.Stat(filepath.Join(out, "code_0.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "code_0.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestReviewerFollowsEachFileFolder(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	require.NoError(t, os.Mkdir(dirA, 0o755))
	require.NoError(t, os.Mkdir(dirB, 0o755))
	pathA := writeQuestions(t, dirA, q1)
	pathB := writeQuestions(t, dirB, q2)
	cfgPath := filepath.Join(root, DefaultConfigFile)

	r := NewReviewer(NewConfig(cfgPath, nil), nil)
	_, err := r.Open(pathA)
	require.NoError(t, err)
	require.NoError(t, r.Assign(1))
	require.NoError(t, r.Close())

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	r = NewReviewer(cfg, nil)
	_, err = r.Open(pathB)
	require.NoError(t, err)
	assert.Equal(t, dirB, r.OutputFolder())
	require.NoError(t, r.Assign(3))
	require.NoError(t, r.Close())

	assert.Equal(t, []QuestionKey{{"Q2", "B"}}, readKeys(t, NewCodeFiles(dirB, nil), 3))
	assert.Empty(t, readKeys(t, NewCodeFiles(dirA, nil), 3))
	assert.Equal(t, []QuestionKey{{"Q1", "A"}}, readKeys(t, NewCodeFiles(dirA, nil), 1))

	// each folder keeps its own progress
	resA, err := NewLoader(nil).LoadFile(ResumePath(dirA))
	require.NoError(t, err)
	require.Len(t, resA.Questions, 1)
	assert.Equal(t, "Q1", resA.Questions[0].Question)

	saved, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, dirB, saved.OutputFolder())
}

func TestReviewerOpenRestoresCodes(t *testing.T) {
	dir := t.TempDir()
	path := writeQuestions(t, dir, q1, q2)
	cfgPath := filepath.Join(dir, DefaultConfigFile)

	r := NewReviewer(NewConfig(cfgPath, nil), nil)
	_, err := r.Open(path)
	require.NoError(t, err)
	_, err = r.BulkAssign([]int{0}, 3)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r = NewReviewer(NewConfig(cfgPath, nil), nil)
	_, err = r.Open(path)
	require.NoError(t, err)
	code, ok := r.Store().At(0).Code()
	require.True(t, ok)
	assert.Equal(t, 3, code)
	assert.False(t, r.Store().At(1).Assigned())

	_, err = r.BulkAssign([]int{0}, 5)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)

	_, err = r.BulkAssign([]int{1}, 5)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	files := NewCodeFiles(dir, nil)
	assert.Equal(t, []QuestionKey{{"Q1", "A"}}, readKeys(t, files, 3))
	assert.Equal(t, []QuestionKey{{"Q2", "B"}}, readKeys(t, files, 5))

	res, err := NewLoader(nil).LoadFile(ResumePath(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, ComputeStats(res.Questions).Assigned)
}

func TestReviewerCloseSavesAndResumes(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := writeQuestions(t, dir, q1, q2)
	cfgPath := filepath.Join(dir, DefaultConfigFile)
	cfg := NewConfig(cfgPath, nil)

	r := NewReviewer(cfg, nil)
	_, err := r.Open(path)
	require.NoError(t, err)
	r.Start(context.Background(), nil)

	require.NoError(t, r.SetLabel(2, "Sports"))
	require.NoError(t, r.Assign(2))
	require.NoError(t, r.Skip())
	require.NoError(t, r.Close())
	assert.True(t, HasProgress(dir))

	cfg2, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "Sports", cfg2.Label(2))
	assert.Equal(t, path, cfg2.LastFile())

	r2 := NewReviewer(cfg2, nil)
	_, err = r2.OpenResume()
	require.NoError(t, err)
	assert.Equal(t, ResumePath(dir), r2.Path())

	first := r2.Store().At(0)
	code, ok := first.Code()
	require.True(t, ok)
	assert.Equal(t, 2, code)
	assert.True(t, r2.Store().At(1).Skipped)

	s := r2.Stats()
	assert.Equal(t, 1, s.Assigned)
	assert.Equal(t, 1, s.Skipped)
}

func TestReviewerOpenResumeWithoutProgress(t *testing.T) {
	cfg := NewConfig(filepath.Join(t.TempDir(), DefaultConfigFile), nil)
	cfg.SetOutputFolder(t.TempDir())
	_, err := NewReviewer(cfg, nil).OpenResume()
	assert.Error(t, err)
}

func TestReviewerBackupAndRebuild(t *testing.T) {
	dir := t.TempDir()
	path := writeQuestions(t, dir, q1, q2)
	r := NewReviewer(NewConfig(filepath.Join(dir, DefaultConfigFile), nil), nil)
	_, err := r.Open(path)
	require.NoError(t, err)

	n, err := r.BulkAssign([]int{0, 1}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, os.Remove(filepath.Join(dir, "code_5.json")))
	require.NoError(t, r.Rebuild())
	assert.Len(t, readKeys(t, NewCodeFiles(dir, nil), 5), 2)

	require.NoError(t, r.Save())
	backup, err := r.Backup()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(backup, "code_5.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(backup, ProgressFileName))
	assert.NoError(t, err)
}
