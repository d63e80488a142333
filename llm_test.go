package triviareview

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI answers chat completions with a tool call whose arguments come
// from reply. It records the decoded requests.
type fakeOpenAI struct {
	mu       sync.Mutex
	requests []map[string]any
	reply    func(tool string, req map[string]any) string
}

func newFakeOpenAI(t *testing.T, reply func(tool string, req map[string]any) string) (*fakeOpenAI, string) {
	f := &fakeOpenAI{reply: reply}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		tool := req["tool_choice"].(map[string]any)["function"].(map[string]any)["name"].(string)
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  req["model"],
			"choices": []any{map[string]any{
				"index": 0,
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []any{map[string]any{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      tool,
							"arguments": f.reply(tool, req),
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return f, srv.URL + "/v1"
}

func (f *fakeOpenAI) userPrompt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.requests[i]["messages"].([]any)
	return msgs[len(msgs)-1].(map[string]any)["content"].(string)
}

func TestNewQuestionCheckerRequiresKey(t *testing.T) {
	_, err := NewQuestionChecker(LLMOptions{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestQuestionChecker(t *testing.T) {
	fake, url := newFakeOpenAI(t, func(tool string, req map[string]any) string {
		msgs := req["messages"].([]any)
		prompt := msgs[len(msgs)-1].(map[string]any)["content"].(string)
		if strings.Contains(prompt, "Mars") {
			return `{"verdict":"FAIL","reason":"Paris is the capital of France"}`
		}
		return `{"verdict":"PASS","reason":"correct"}`
	})

	var transcript bytes.Buffer
	qc, err := NewQuestionChecker(LLMOptions{
		APIKey:     "test",
		BaseURL:    url,
		Model:      "test-model",
		Transcript: newLLMLogger(&transcript, nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	good := &Question{Question: "Capital of France?", Answer: "Paris", Options: []string{"Paris", "Rome"}}
	v, err := qc.CheckQuestion(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, &Verdict{Pass: true, Reason: "correct"}, v)

	bad := &Question{Question: "Capital of France?", Answer: "Mars", Options: []string{"Mars", "Rome"}}
	v, err = qc.CheckQuestion(ctx, bad)
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Equal(t, "Paris is the capital of France", v.Reason)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "test-model", fake.requests[0]["model"])
	assert.Contains(t, fake.userPrompt(0), "Options: Paris, Rome")
	assert.Contains(t, transcript.String(), "--- request (QuestionChecker) ---")
	assert.Contains(t, transcript.String(), `{"verdict":"PASS","reason":"correct"}`)

	// answer outside the options fails without a request
	v, err = qc.CheckQuestion(ctx, &Question{Question: "Q", Answer: "C", Options: []string{"A", "B"}})
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Len(t, fake.requests, 2)
}

func TestQuestionCheckerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	qc, err := NewQuestionChecker(LLMOptions{APIKey: "test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	_, err = qc.CheckQuestion(context.Background(), &Question{Question: "Q", Answer: "A", Options: []string{"A", "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check question")
}

func TestQuestionMaker(t *testing.T) {
	fake, url := newFakeOpenAI(t, func(tool string, req map[string]any) string {
		return `{"questions":[
			{"question":"Who won the 2010 World Cup?","answer":"Spain","options":["Spain","Netherlands","Germany","Uruguay"],"source":"fifa.com"},
			{"question":"Bad one","answer":"X","options":["A","B"]}
		]}`
	})
	qm, err := NewQuestionMaker(LLMOptions{APIKey: "test", BaseURL: url})
	require.NoError(t, err)

	req := GenerationRequest{Category: "International", Subcategory: "World Cup", Difficulty: "hard"}
	got, err := qm.GenerateQuestions(context.Background(), req, 2, []string{"Spain won the 2010 World Cup."})
	require.NoError(t, err)
	require.Len(t, got, 2)

	cat, _ := got[0].Get(fieldCategory)
	assert.Equal(t, "International", cat)
	sub, _ := got[0].Get(fieldSubcategories)
	assert.Equal(t, []any{"World Cup"}, sub)
	diff, _ := got[1].Get(fieldDifficulty)
	assert.Equal(t, "hard", diff)

	prompt := fake.userPrompt(0)
	assert.Contains(t, prompt, "Here are verified facts:\n- Spain won the 2010 World Cup.\n")
	assert.Contains(t, prompt, "Generate 2 multiple-choice trivia questions about International / World Cup using only these facts.")
	assert.Equal(t, DefaultModel, fake.requests[0]["model"])
}

func TestLLMLoggerClose(t *testing.T) {
	dir := t.TempDir()
	ll, err := NewLLMLogger(dir, "run1", map[string]string{"Category": "Film"})
	require.NoError(t, err)
	ll.LogResult("Who directed Jaws?", "KEPT", "directed jaws")
	require.NoError(t, ll.Close())
	require.NoError(t, ll.Close())
	ll.Logf("after close\n")

	var nilLogger *LLMLogger
	nilLogger.LogRequest("x", "y")
	assert.NoError(t, nilLogger.Close())
}

func TestLoadFacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Spain won in 2010.", {"fact": "Italy won in 2006.", "source": "x"}, "  "]`), 0o644))
	facts, err := LoadFacts(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spain won in 2010.", "Italy won in 2006."}, facts)

	require.NoError(t, os.WriteFile(path, []byte(`[42]`), 0o644))
	_, err = LoadFacts(path)
	assert.ErrorContains(t, err, "fact 1")
}
