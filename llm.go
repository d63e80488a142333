package triviareview

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultModel is used when LLMOptions.Model is empty.
const DefaultModel = openai.GPT4o

// ErrNoAPIKey is returned when a model client is built without a key.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

// LLMOptions configures the OpenAI-backed components.
type LLMOptions struct {
	APIKey  string
	BaseURL string // empty means the public API
	Model   string
	Logger  *zap.Logger
	// Transcript, if set, receives every prompt and raw reply.
	Transcript *LLMLogger
}

// llmClient makes one forced tool call per request and hands back the tool
// arguments.
type llmClient struct {
	client     *openai.Client
	model      string
	logger     *zap.Logger
	transcript *LLMLogger
}

func newLLMClient(opts LLMOptions) (*llmClient, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &llmClient{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		logger:     logger,
		transcript: opts.Transcript,
	}, nil
}

// callTool sends system and prompt, forces the model to answer through fn,
// and returns the raw JSON arguments of that call.
func (c *llmClient) callTool(ctx context.Context, component, system, prompt string, fn *openai.FunctionDefinition, temperature float32) (string, error) {
	c.transcript.LogRequest(component, prompt)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Tools: []openai.Tool{{Type: openai.ToolTypeFunction, Function: fn}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: fn.Name},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", component, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no response from model", component)
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return "", fmt.Errorf("%s: no tool calls in response", component)
	}
	if calls[0].Function.Name != fn.Name {
		return "", fmt.Errorf("%s: unexpected tool call: %s", component, calls[0].Function.Name)
	}

	args := calls[0].Function.Arguments
	c.transcript.LogResponse(component, args)
	c.logger.Debug("model replied",
		zap.String("component", component),
		zap.String("model", c.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return args, nil
}
