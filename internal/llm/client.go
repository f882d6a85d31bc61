package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fitrelay-platform/fitrelay/internal/config"
)

// ErrNoAPIKey is returned when a completion is requested without a
// configured provider key. Callers treat it as a fatal configuration
// problem, unlike transient provider errors which degrade to
// FallbackText.
var ErrNoAPIKey = errors.New("llm: completion API key not configured")

// FallbackText is the fixed reply substituted when the completion API
// fails. It is persisted and returned as if it were a genuine answer.
const FallbackText = "Desculpe, ocorreu um erro interno. Tente novamente em alguns instantes."

// ToolCall is a model-requested invocation of a declared tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Request carries the ordered message list and the tool catalog for
// one completion call. An empty Tools slice means the model may only
// answer with text.
type Request struct {
	Messages []openai.ChatCompletionMessage
	Tools    []openai.Tool
}

// Result is the provider-neutral outcome of a completion call. When
// ToolCalls is non-empty, AssistantMessage must be appended to the
// running message list before dispatching so the finalizing call sees
// the model's own tool-call message.
type Result struct {
	Text             string
	ToolCalls        []ToolCall
	AssistantMessage openai.ChatCompletionMessage
}

// Client produces chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// chatClient is the slice of the OpenAI SDK the client depends on,
// kept narrow so tests can stub it.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client on the OpenAI chat-completion API
// with fixed temperature and max-token settings.
type OpenAIClient struct {
	client      chatClient
	model       string
	temperature float32
	maxTokens   int
	keyMissing  bool
}

// NewOpenAIClient builds a completion client from configuration. A
// missing API key is not an error here; it surfaces as ErrNoAPIKey on
// the first Complete call so health probes keep working.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		keyMissing:  strings.TrimSpace(cfg.APIKey) == "",
	}
}

// Complete invokes the model once. With tools present, tool choice is
// left to the model ("auto").
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Result, error) {
	if c.keyMissing {
		return nil, ErrNoAPIKey
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = req.Tools
		apiReq.ToolChoice = "auto"
	}

	callCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: completion returned no choices")
	}

	msg := resp.Choices[0].Message
	result := &Result{
		Text:             strings.TrimSpace(msg.Content),
		AssistantMessage: msg,
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}
