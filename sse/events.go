package sse

// Event names written on the stream in addition to graph event types.
const (
	// EventConnected is the first event a client receives.
	EventConnected = "connected"
	// EventSummary carries the run summary once the run is finished.
	EventSummary = "run_summary"
	EventError   = "error"
)

// ConnectedEvent is the payload of EventConnected.
type ConnectedEvent struct {
	ClientID string            `json:"client_id"`
	RunID    string            `json:"run_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
