package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every frame on the wire is {"event": ..., "data": ...}; clients depend on
// those exact keys.
func TestMessageEnvelope(t *testing.T) {
	sessionID := uuid.New()
	data, err := json.Marshal(JoinPayload{SessionID: sessionID})
	require.NoError(t, err)

	raw, err := json.Marshal(Message{Event: EventSessionJoin, Data: data})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "event")
	assert.Contains(t, decoded, "data")

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, EventSessionJoin, msg.Event)

	var p JoinPayload
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, sessionID, p.SessionID)
}

func TestPubsubPayloadCarriesOrigin(t *testing.T) {
	raw, err := json.Marshal(pubsubPayload{Origin: "instance-a", Event: "chat:message"})
	require.NoError(t, err)

	var p pubsubPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "instance-a", p.Origin)
	assert.Equal(t, "chat:message", p.Event)
}
