package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
)

// OpenAIClient implements schemas.ChatClient over any OpenAI-compatible
// endpoint using native function calling. Tool schemas go out as function
// definitions and structured tool calls come back without prompt scraping.
type OpenAIClient struct {
	client openai.Client
	model  string
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewOpenAIClient initializes the client. BaseURL is optional and lets the
// same client talk to API-compatible gateways.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Complete sends the conversation and returns the normalized completion.
// When the model emits several tool calls in one turn only the first is
// honored; the agent loop executes one action per iteration.
func (c *OpenAIClient) Complete(ctx context.Context, messages []schemas.Message, tools []schemas.ToolSchema) (*schemas.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    c.toOpenAIMessages(messages),
		Temperature: openai.Opt(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Opt(int64(c.cfg.MaxTokens))
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	startTime := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("OpenAI chat completion failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", ErrGatewayUnavailable)
	}

	choice := resp.Choices[0].Message
	completion := &schemas.Completion{Content: choice.Content}

	if len(choice.ToolCalls) > 0 {
		tc := choice.ToolCalls[0]
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				c.logger.Warn("Failed to decode tool call arguments, treating reply as text",
					zap.String("tool", tc.Function.Name), zap.Error(err))
				return completion, nil
			}
		}
		completion.ToolCall = &schemas.ToolCall{
			ID:        tc.ID,
			Name:      schemas.ToolName(tc.Function.Name),
			Arguments: args,
		}
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Bool("tool_call", completion.ToolCall != nil),
	)
	return completion, nil
}

// Ping verifies credentials and connectivity with a cheap model listing.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

// toOpenAIMessages maps the internal conversation onto the SDK's message
// union. Assistant turns that carried a tool call must round-trip the call
// ID so the following tool observation can reference it.
func (c *OpenAIClient) toOpenAIMessages(messages []schemas.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case schemas.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case schemas.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case schemas.RoleAssistant:
			if m.ToolCall == nil {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			args, err := json.Marshal(m.ToolCall.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: m.ToolCall.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      string(m.ToolCall.Name),
							Arguments: string(args),
						},
					},
				}},
			}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case schemas.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func toOpenAITools(tools []schemas.ToolSchema) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        string(t.Name),
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.JSONSchema()),
		}))
	}
	return out
}
