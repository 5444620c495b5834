package gateway

import "encoding/json"

// Wire opcodes for gateway frames.
const (
	opIdentify = "identify"
	opDispatch = "dispatch"
	opPing     = "ping"
	opPong     = "pong"
)

// eventPresenceUpdate is the dispatch event carrying a status change.
const eventPresenceUpdate = "presence_update"

// frame is the envelope for every gateway message.
type frame struct {
	Op    string          `json:"op"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// identifyPayload authenticates the connection after the handshake.
type identifyPayload struct {
	Token string `json:"token"`
}

// PresenceEvent is one status-change notification from the gateway. The
// display name is optional; absent names are resolved on demand through
// the profile endpoint.
type PresenceEvent struct {
	IdentityID  string `json:"identity_id"`
	Status      string `json:"status"`
	DisplayName string `json:"display_name,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}
