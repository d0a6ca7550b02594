package orchestrator

import "github.com/edgebank/assist/internal/classifier"

// State names the orchestrator's position in the per-turn state machine.
// Exposed for tracing and tests.
type State string

const (
	StateReceived               State = "received"
	StateClassified             State = "classified"
	StateResolved               State = "resolved"
	StatePrompted               State = "prompted"
	StateStreaming              State = "streaming"
	StateFinalized              State = "finalized"
	StateFailed                 State = "failed"
	StateAwaitingDisambiguation State = "awaiting_disambiguation"
	StateSmallTalk              State = "small_talk"
)

// EventType tags a stream frame.
type EventType string

const (
	// EventText carries a chunk of response text.
	EventText EventType = "text"
	// EventSources is the terminal frame enumerating the source
	// identifiers behind the answer. Emitted exactly once per turn.
	EventSources EventType = "sources"
)

// Event is one frame emitted to the caller during a turn.
type Event struct {
	Type    EventType `json:"type"`
	Text    string    `json:"text,omitempty"`
	Sources []string  `json:"sources,omitempty"`
}

// Sink receives stream frames. A non-nil return aborts the turn.
type Sink func(Event) error

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	SessionID     string
	Query         string
	KnowledgeBase string
	ClientIP      string
}

// TurnResult summarizes a finished turn.
type TurnResult struct {
	SessionID   string           `json:"session_id"`
	Response    string           `json:"response"`
	Sources     []string         `json:"sources"`
	Route       classifier.Route `json:"route"`
	State       State            `json:"state"`
	WasAnswered bool             `json:"was_answered"`
	Token       string           `json:"token,omitempty"`
}
