package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventSessionUpdated EventType = "session_updated"
	EventBalanceUpdated EventType = "balance_updated"
	EventStatusUpdated  EventType = "status_updated"
	EventStatusCleared  EventType = "status_cleared"
)

// Event represents a wallet event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
