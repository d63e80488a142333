package main

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"triviareview"
)

const sampleQuestions = `[
  {"question": "Q1", "answer": "A", "options": ["A", "B"], "category": "Sport", "difficulty": "easy"},
  {"question": "Q2", "answer": "B", "options": ["A", "B"], "category": "Film", "difficulty": "hard"},
  {"question": "Q3 <b>", "answer": "A", "options": ["A", "B"], "category": "Film", "difficulty": "easy"}
]`

type testClient struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (c *testClient) get(path string) string {
	c.t.Helper()
	resp, err := c.client.Get(c.base + path)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return string(body)
}

// post submits a form and returns the page it redirects to.
func (c *testClient) post(path string, form url.Values) string {
	c.t.Helper()
	resp, err := c.client.PostForm(c.base+path, form)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return string(body)
}

func newTestServer(t *testing.T) (*Server, *testClient, string) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleQuestions), 0o644))

	cfg := triviareview.NewConfig(filepath.Join(dir, "settings.json"), nil)
	rv := triviareview.NewReviewer(cfg, nil)
	_, err := rv.Open(path)
	require.NoError(t, err)

	srv, err := NewServer(rv, []byte("0123456789abcdef0123456789abcdef"), zap.NewNop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &testClient{t: t, base: ts.URL, client: &http.Client{Jar: jar}}, dir
}

func TestServerAssignUndo(t *testing.T) {
	srv, c, dir := newTestServer(t)

	page := c.get("/")
	assert.Contains(t, page, "Question 1 of 3")
	assert.Contains(t, page, "<h2>Q1</h2>")

	page = c.post("/assign", url.Values{"code": {"3"}})
	assert.Contains(t, page, "Assigned Code 3")
	assert.Contains(t, page, "Question 2 of 3")
	assert.FileExists(t, filepath.Join(dir, "code_3.json"))

	// flashes are shown once
	assert.NotContains(t, c.get("/"), "Assigned Code 3")

	page = c.post("/undo", nil)
	assert.Contains(t, page, "Undone")
	assert.Contains(t, page, "<h2>Q1</h2>")
	assert.False(t, srv.rv.Store().At(0).Assigned())

	page = c.post("/undo", nil)
	assert.Contains(t, page, triviareview.ErrNothingToUndo.Error())

	page = c.post("/assign", url.Values{"code": {"12"}})
	assert.Contains(t, page, "flash-error")

	require.NoError(t, srv.Close())
	assert.True(t, triviareview.HasProgress(dir))
}

func TestServerNavigationAndFilter(t *testing.T) {
	_, c, _ := newTestServer(t)

	page := c.post("/nav", url.Values{"n": {"3"}})
	assert.Contains(t, page, "Q3 &lt;b&gt;")

	page = c.post("/nav", url.Values{"n": {"9"}})
	assert.Contains(t, page, "between 1 and 3")

	page = c.post("/filter", url.Values{"mode": {"all"}, "search": {"film"}})
	assert.Contains(t, page, "Question 1 of 2")
	assert.Contains(t, page, "<h2>Q2</h2>")

	page = c.post("/filter", url.Values{"mode": {"all"}, "search": {"nothing like this"}})
	assert.Contains(t, page, "No questions match")

	page = c.post("/filter", url.Values{"mode": {"sideways"}})
	assert.Contains(t, page, "unknown filter")
}

func TestServerEditAndLabels(t *testing.T) {
	srv, c, dir := newTestServer(t)

	page := c.post("/edit", url.Values{
		"index": {"1"}, "question": {"Q2 edited"}, "answer": {"C"},
		"options": {"A\r\nB"}, "category": {"Film"}, "difficulty": {"hard"},
	})
	assert.Contains(t, page, "answer must be one of the options")

	page = c.post("/edit", url.Values{
		"index": {"1"}, "question": {"Q2 edited"}, "answer": {"C"},
		"options": {"A\r\nB\r\nC"}, "category": {"Film"}, "difficulty": {"hard"},
	})
	assert.Contains(t, page, "Question updated")
	assert.Equal(t, []string{"A", "B", "C"}, srv.rv.Store().At(1).Options)

	page = c.post("/labels", url.Values{"code": {"5"}, "label": {"Too easy"}})
	assert.Contains(t, page, "Label saved")
	assert.Contains(t, page, `value="Too easy"`)
	assert.FileExists(t, filepath.Join(dir, "settings.json"))

	assert.Contains(t, c.get("/stats"), "Total Questions: 3")
}
