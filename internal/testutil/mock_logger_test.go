package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)
	v, ok := messages[0].Field("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Empty(t, logger.GetMessages())

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_DerivedLoggersShareRecording(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("drafting").Named("facts").With(logging.CaseID(7))

	child.Warn("stage degraded", logging.Stage("facts"))

	msg, ok := root.Find("warn", "stage degraded")
	require.True(t, ok)
	assert.Equal(t, "drafting.facts", msg.Logger)
	id, _ := msg.Field("case_id")
	assert.Equal(t, int64(7), id)
	assert.Equal(t, 1, root.Count("warn"))
	assert.Equal(t, 0, root.Count("info"))
}
