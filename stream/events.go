// Package stream defines the event union emitted while answering a query and
// the incremental parser that separates model thinking from response text.
package stream

type EventKind string

const (
	KindClassification  EventKind = "classification"
	KindContext         EventKind = "context"
	KindHistory         EventKind = "history"
	KindThinkingStart   EventKind = "thinking_start"
	KindThinkingContent EventKind = "thinking_content"
	KindThinkingEnd     EventKind = "thinking_end"
	KindResponse        EventKind = "response"
	KindToolStart       EventKind = "tool_start"
	KindToolResult      EventKind = "tool_result"
	KindDone            EventKind = "done"
	KindError           EventKind = "error"
)

// Event is one entry in the ordered stream a query produces. Events arrive in
// strict causal order and terminate in exactly one done or error event.
type Event struct {
	Kind    EventKind `json:"type"`
	Content string    `json:"content,omitempty"`
	Block   int       `json:"block,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Payload any       `json:"payload,omitempty"`
}
