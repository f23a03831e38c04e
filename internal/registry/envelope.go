package registry

// Envelope is the websocket wire frame: every message in both
// directions is a typed JSON object with a free-form payload.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
