package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/cometlabs/comet/internal/config"
)

func TestInitialize_WritesToConsole(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "comet-test",
	}, zapcore.AddSync(&buf))

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("Task submitted.")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "Task submitted.")
	assert.Contains(t, out, "comet-test")
}

func TestInitialize_RunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"}, zapcore.AddSync(&first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "two"}, zapcore.AddSync(&second))

	GetLogger().Info("hello")
	GetLogger().Sync()

	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String())
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "chatty", Format: "json", ServiceName: "t"}, zapcore.AddSync(&buf))

	GetLogger().Debug("invisible")
	GetLogger().Info("visible")
	GetLogger().Sync()

	out := buf.String()
	assert.NotContains(t, out, "invisible")
	assert.Contains(t, out, "visible")
}

func TestGetLogger_BeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}
