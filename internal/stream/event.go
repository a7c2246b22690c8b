package stream

// EventType enumerates the public client-facing event vocabulary.
type EventType string

const (
	EventStatusUpdate EventType = "status_update"
	EventThoughtDelta EventType = "thought_delta"
	EventToolStart    EventType = "tool_start"
	EventToolEnd      EventType = "tool_end"
	EventAnswerDelta  EventType = "answer_delta"
	EventError        EventType = "error"
	EventDone         EventType = "done"
)

// Event is one internal workflow event, tagged at the point of emission with
// the node that produced it. Provenance drives the multiplexer's filtering;
// text sniffing is only a secondary safety net.
type Event struct {
	Type    EventType
	Node    string
	Payload any
}

// StatusPayload carries human-readable progress text.
type StatusPayload struct {
	Text string `json:"text"`
}

// DeltaPayload carries one incremental text chunk.
type DeltaPayload struct {
	Delta string `json:"delta"`
}

// ToolPayload carries the lifecycle of one tool invocation, correlated by ID.
type ToolPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"`
}
