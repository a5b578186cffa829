package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus(t *testing.T) {
	ToolDuration.WithLabelValues("search_cards").Observe(0.2)
	TurnTotal.WithLabelValues("answered").Inc()
	LockConflictTotal.Inc()

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "deck_agent_tool_duration_seconds")
	assert.Contains(t, out, `tool="search_cards"`)
	assert.Contains(t, out, `deck_agent_turn_total{reason="answered"}`)
	assert.Contains(t, out, "deck_agent_lock_conflict_total")
}
