package queue

import "time"

type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventSucceeded EventType = "succeeded"
	EventRetrying  EventType = "retrying"
	EventFailed    EventType = "failed"
	EventCleared   EventType = "cleared"
)

// Event describes one lifecycle step of an item. Events are delivered on a
// buffered channel; when no consumer keeps up they are dropped rather than
// blocking the dispatcher.
type Event[P any] struct {
	Type       EventType
	ItemID     string
	Priority   int
	Payload    P
	Attempt    int
	MaxRetries int
	Err        error
	At         time.Time
}
