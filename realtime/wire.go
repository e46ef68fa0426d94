package realtime

import "encoding/json"

// Op is the mutation kind a change event describes.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// ChangeEvent is the payload emitted after a successful write. ScopeID
// identifies the collection a receiving client should patch (e.g. the thread
// id for a message event); Payload carries the changed fields. Events are
// created at commit time and delivered at-most-once per connected
// subscriber; there is no persisted event log, so a client that connects
// after an event fired must rely on its initial page fetch for baseline
// state.
type ChangeEvent struct {
	EntityType string         `json:"entityType"`
	Op         Op             `json:"operation"`
	EntityID   string         `json:"id"`
	ScopeID    string         `json:"scopeId"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Name returns the wire event name, e.g. "thread:created".
func (e ChangeEvent) Name() string {
	return e.EntityType + ":" + string(e.Op)
}

// frame is one newline-delimited JSON message on the wire, in either
// direction: {"type": ..., "data": ...}.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Control frame types used by the connect handshake.
const (
	typeAuth    = "auth"
	typeAuthAck = "auth:ack"
	typeAuthErr = "auth:error"
)

type authPayload struct {
	Session string `json:"session"`
}

type authAckPayload struct {
	Subject string `json:"subject"`
}

type authErrPayload struct {
	Message string `json:"message"`
}

// ChangeHandler adapts a ChangeEvent consumer into a frame Handler.
// Malformed payloads are dropped.
func ChangeHandler(fn func(ChangeEvent)) Handler {
	return func(data json.RawMessage) {
		var ev ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fn(ev)
	}
}

func encodeFrame(eventName string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	line, err := json.Marshal(frame{Type: eventName, Data: data})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}
