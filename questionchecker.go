package triviareview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Verdict is the model's judgement of one question.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// QuestionChecker asks a model whether a question and its answer are
// factually accurate.
type QuestionChecker struct {
	llm *llmClient
}

// NewQuestionChecker creates a checker.
func NewQuestionChecker(opts LLMOptions) (*QuestionChecker, error) {
	llm, err := newLLMClient(opts)
	if err != nil {
		return nil, err
	}
	return &QuestionChecker{llm: llm}, nil
}

const checkerSystem = `You are verifying a trivia question and answer for factual accuracy.

Analyze the question and answer provided. Consider:
- Is the factual claim accurate?
- Is the answer among the options?
- Are the options reasonable?

Only pass the question if the answer is factually accurate and verifiable.
Otherwise fail it with a brief explanation of what is wrong.`

var verifyTool = &openai.FunctionDefinition{
	Name:        "verify_question",
	Description: "Record whether the question is accurate",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verdict": map[string]any{
				"type": "string",
				"enum": []string{"PASS", "FAIL"},
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "What is wrong, or a short confirmation",
			},
		},
		"required": []string{"verdict", "reason"},
	},
}

// CheckQuestion returns the model's verdict on q. A question whose answer is
// not among its options fails without a model call.
func (qc *QuestionChecker) CheckQuestion(ctx context.Context, q *Question) (*Verdict, error) {
	if len(q.Options) > 0 && !q.HasOption(q.Answer) {
		return &Verdict{Pass: false, Reason: "answer is not among the options"}, nil
	}

	args, err := qc.llm.callTool(ctx, "QuestionChecker", checkerSystem, buildCheckPrompt(q), verifyTool, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check question: %w", err)
	}
	var reply struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(args), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	v := &Verdict{
		Pass:   strings.EqualFold(strings.TrimSpace(reply.Verdict), "PASS"),
		Reason: strings.TrimSpace(reply.Reason),
	}
	qc.llm.logger.Debug("question checked",
		zap.String("question", preview(q.Question)),
		zap.Bool("pass", v.Pass),
		zap.String("reason", v.Reason))
	return v, nil
}

func buildCheckPrompt(q *Question) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", q.Question)
	fmt.Fprintf(&sb, "Answer: %s\n", q.Answer)
	if len(q.Options) > 0 {
		fmt.Fprintf(&sb, "Options: %s\n", strings.Join(q.Options, ", "))
	}
	if c := q.Category.String(); c != "" {
		fmt.Fprintf(&sb, "Category: %s\n", c)
	}
	sb.WriteString("\nIs this question factually accurate and is the answer correct?")
	return sb.String()
}
