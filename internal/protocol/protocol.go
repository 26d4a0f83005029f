package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeState is pushed on every injection state change
	TypeState MessageType = "state"

	// TypeTask is pushed when a task finishes (succeeded or failed)
	TypeTask MessageType = "task"

	// TypeMode is pushed when a post-injection action switches the operating mode
	TypeMode MessageType = "mode"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatePayload is the payload for TypeState
type StatePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Task  string `json:"task,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

// TaskPayload is the payload for TypeTask
type TaskPayload struct {
	Kind    string `json:"kind"`
	Task    string `json:"task"`
	Outcome string `json:"outcome"` // "succeeded" or "failed"
}

// ModePayload is the payload for TypeMode
type ModePayload struct {
	Mode    string `json:"mode"`
	Address string `json:"address,omitempty"`
}
