package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/internal/config"
)

func TestNew_Ollama(t *testing.T) {
	client, err := New(config.LLMConfig{
		Backend: BackendOllama,
		Model:   "mistral",
		BaseURL: "http://localhost:11434",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, client)
}

func TestNew_OpenAI(t *testing.T) {
	client, err := New(config.LLMConfig{
		Backend: BackendOpenAI,
		Model:   "gpt-4o-mini",
		APIKey:  "sk-test",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	_, err := New(config.LLMConfig{Backend: BackendOpenAI, Model: "gpt-4o-mini"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_OllamaRequiresBaseURL(t *testing.T) {
	_, err := New(config.LLMConfig{Backend: BackendOllama, Model: "mistral"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(config.LLMConfig{Backend: "carrier-pigeon"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
