// Package llmclient implements the model gateway: a normalized
// chat-completion interface over backends with and without native tool
// calling. All conversational state lives in the messages passed in; clients
// are stateless between calls.
package llmclient

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
)

// Backend identifiers accepted in configuration and per-task overrides.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// ErrGatewayUnavailable marks a backend that could not be reached after the
// single transient retry. Fatal to the agent loop that hits it.
var ErrGatewayUnavailable = errors.New("model gateway unavailable")

// New is a factory that creates a ChatClient for the configured backend.
func New(cfg config.LLMConfig, logger *zap.Logger) (schemas.ChatClient, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return NewOpenAIClient(cfg, logger)
	case BackendOllama:
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM backend configured: %q. Supported: [%s %s]",
			cfg.Backend, BackendOpenAI, BackendOllama)
	}
}
