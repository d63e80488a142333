package triviareview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// GenerationRequest describes a batch of questions to generate.
type GenerationRequest struct {
	Category    string
	Subcategory string
	Difficulty  string
	Count       int
	// Focus narrows the topic inside the category.
	Focus string
	// Facts, when given, are the only material questions may be built from.
	Facts []string
}

// TranscriptHeader lists the request fields written at the top of a run log.
func (r GenerationRequest) TranscriptHeader() map[string]string {
	h := map[string]string{
		"Category":   r.Category,
		"Difficulty": r.Difficulty,
		"Count":      fmt.Sprint(r.Count),
	}
	if r.Subcategory != "" {
		h["Subcategory"] = r.Subcategory
	}
	if r.Focus != "" {
		h["Focus"] = r.Focus
	}
	if len(r.Facts) > 0 {
		h["Facts"] = fmt.Sprint(len(r.Facts))
	}
	return h
}

// QuestionMaker asks a model for multiple-choice questions.
type QuestionMaker struct {
	llm *llmClient
}

// NewQuestionMaker creates a maker.
func NewQuestionMaker(opts LLMOptions) (*QuestionMaker, error) {
	llm, err := newLLMClient(opts)
	if err != nil {
		return nil, err
	}
	return &QuestionMaker{llm: llm}, nil
}

const makerSystem = "You are an expert trivia question writer. Every question has one correct answer that appears verbatim among its options."

var submitTool = &openai.FunctionDefinition{
	Name:        "submit_questions",
	Description: "Submit generated trivia questions",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
						"answer": map[string]any{
							"type":        "string",
							"description": "The correct answer, copied exactly from options",
						},
						"options": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Four options, one of them the answer",
						},
						"source": map[string]any{
							"type":        "string",
							"description": "Where the fact comes from",
						},
					},
					"required": []string{"question", "answer", "options"},
				},
			},
		},
		"required": []string{"questions"},
	},
}

// GenerateQuestions asks for n questions, built only from facts when facts
// are given. The results are raw candidates: they carry the request's
// category, subcategory and difficulty but are not validated yet.
func (qm *QuestionMaker) GenerateQuestions(ctx context.Context, req GenerationRequest, n int, facts []string) ([]*Object, error) {
	prompt := buildMakerPrompt(req, n, facts)
	args, err := qm.llm.callTool(ctx, "QuestionMaker", makerSystem, prompt, submitTool, 0.7)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	norm, err := Normalize([]byte(args))
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	candidates := Flatten(norm.Value)
	for _, obj := range candidates {
		if !obj.Has(fieldCategory) && req.Category != "" {
			obj.Set(fieldCategory, req.Category)
		}
		if !obj.Has(fieldSubcategories) && req.Subcategory != "" {
			obj.Set(fieldSubcategories, []any{req.Subcategory})
		}
		obj.Set(fieldDifficulty, req.Difficulty)
	}

	qm.llm.logger.Info("questions generated",
		zap.String("category", req.Category),
		zap.Int("requested", n),
		zap.Int("received", len(candidates)))
	return candidates, nil
}

func buildMakerPrompt(req GenerationRequest, n int, facts []string) string {
	var sb strings.Builder
	topic := req.Category
	if req.Subcategory != "" {
		topic += " / " + req.Subcategory
	}
	if len(facts) > 0 {
		sb.WriteString("Here are verified facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		fmt.Fprintf(&sb, "\nGenerate %d multiple-choice trivia questions about %s using only these facts.\n", n, topic)
		sb.WriteString("Do not hallucinate or invent any information.\n")
	} else {
		fmt.Fprintf(&sb, "Generate %d multiple-choice trivia questions about %s.\n", n, topic)
	}
	if req.Difficulty != "" {
		fmt.Fprintf(&sb, "Difficulty: %s\n", req.Difficulty)
	}
	if req.Focus != "" {
		fmt.Fprintf(&sb, "Focus: %s\n", req.Focus)
	}
	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- Each question has exactly 4 options\n")
	sb.WriteString("- The answer must be copied exactly from the options\n")
	sb.WriteString("- Do not give the answer away in the question text\n")
	sb.WriteString("- Avoid asking the same thing twice in different words\n")
	sb.WriteString("- Use the submit_questions tool to return your questions\n")
	return sb.String()
}

// LoadFacts reads a facts file: a JSON array of strings or of objects with
// a "fact" key. Blank facts are dropped.
func LoadFacts(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("facts file must be a JSON array: %w", err)
	}
	facts := make([]string, 0, len(items))
	for i, item := range items {
		var fact string
		if err := json.Unmarshal(item, &fact); err != nil {
			var obj struct {
				Fact string `json:"fact"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, fmt.Errorf("fact %d: expected a string or an object with \"fact\"", i+1)
			}
			fact = obj.Fact
		}
		if fact = strings.TrimSpace(fact); fact != "" {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}
