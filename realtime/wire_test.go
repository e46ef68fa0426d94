package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeEvent_Name(t *testing.T) {
	ev := ChangeEvent{EntityType: "message", Op: OpUpdated}
	assert.Equal(t, "message:updated", ev.Name())
}

func TestEncodeFrame_NewlineDelimited(t *testing.T) {
	line, err := encodeFrame("message:created", map[string]any{"id": "m-1"})
	require.NoError(t, err)
	require.Equal(t, byte('\n'), line[len(line)-1])

	var f frame
	require.NoError(t, json.Unmarshal(line, &f))
	assert.Equal(t, "message:created", f.Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "m-1", payload["id"])
}

func TestChangeHandler_DropsMalformedPayload(t *testing.T) {
	called := false
	h := ChangeHandler(func(ev ChangeEvent) { called = true })

	h(json.RawMessage(`{not json`))
	assert.False(t, called, "malformed payloads are dropped")

	h(json.RawMessage(`{"entityType":"user","operation":"created","id":"u-1"}`))
	assert.True(t, called)
}
