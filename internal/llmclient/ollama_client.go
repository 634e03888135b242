package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
)

// OllamaClient implements schemas.ChatClient against a local Ollama server.
// Ollama has no native tool-calling, so tool schemas are folded into the
// system prompt and the reply text is scanned for an embedded JSON tool call.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.LLMConfig
}

// -- Ollama API request/response structures (internal to this file) --

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequestPayload struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponsePayload struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool  `json:"done"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	TotalDuration   int64 `json:"total_duration"`
}

// NewOllamaClient initializes the client.
func NewOllamaClient(cfg config.LLMConfig, logger *zap.Logger) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("llm_client.ollama"),
	}, nil
}

// Complete sends the conversation to /api/chat and normalizes the reply.
// A reply whose text embeds a valid {"tool": ..., "arguments": ...} object
// yields a ToolCall; anything else, including malformed tool JSON, comes
// back as plain content so the loop can treat it as reasoning text.
func (c *OllamaClient) Complete(ctx context.Context, messages []schemas.Message, tools []schemas.ToolSchema) (*schemas.Completion, error) {
	payload := c.buildRequestPayload(messages, tools)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	content, err := c.send(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	completion := &schemas.Completion{Content: content}
	if len(tools) > 0 {
		completion.ToolCall = ExtractToolCall(content, tools)
	}
	return completion, nil
}

// Ping checks reachability via the version endpoint.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	return nil
}

// send performs the HTTP exchange with exactly one immediate retry on
// transient failures (connection errors, 429/5xx). Malformed responses are
// permanent: retrying a parse failure wastes a model call.
func (c *OllamaClient) send(ctx context.Context, path string, body []byte) (string, error) {
	var content string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		startTime := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying once...", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload ollamaResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		c.logger.Info("LLM generation complete (Ollama)",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("prompt_tokens", responsePayload.PromptEvalCount),
			zap.Int("completion_tokens", responsePayload.EvalCount),
		)

		content = responsePayload.Message.Content
		return nil
	}

	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func (c *OllamaClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Ollama API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		// Transient, eligible for the single retry.
		return fmt.Errorf("%w: status %d, body: %s", ErrGatewayUnavailable, statusCode, string(body))
	default:
		return backoff.Permanent(fmt.Errorf("ollama API error: status %d, body: %s", statusCode, string(body)))
	}
}

// buildRequestPayload flattens the conversation for Ollama: tool observations
// become user messages, and the tool instructions are appended to the system
// message (or prepended as one if the conversation has none).
func (c *OllamaClient) buildRequestPayload(messages []schemas.Message, tools []schemas.ToolSchema) ollamaRequestPayload {
	cleaned := make([]ollamaMessage, 0, len(messages)+1)
	for _, m := range messages {
		switch m.Role {
		case schemas.RoleTool:
			cleaned = append(cleaned, ollamaMessage{
				Role:    "user",
				Content: "Tool result: " + m.Content,
			})
		case schemas.RoleSystem, schemas.RoleUser, schemas.RoleAssistant:
			cleaned = append(cleaned, ollamaMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}

	if len(tools) > 0 {
		toolPrompt := BuildToolPrompt(tools)
		if len(cleaned) > 0 && cleaned[0].Role == "system" {
			cleaned[0].Content += "\n\n" + toolPrompt
		} else {
			cleaned = append([]ollamaMessage{{Role: "system", Content: toolPrompt}}, cleaned...)
		}
	}

	return ollamaRequestPayload{
		Model:    c.model,
		Messages: cleaned,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.MaxTokens,
		},
	}
}
