package lifecycle

import "github.com/gaia-magnetics/magclient/pkg/models"

// EventType classifies notifications emitted by a Client.
type EventType string

const (
	EventTransition EventType = "transition"
	EventPolled     EventType = "polled"
	EventPollError  EventType = "poll_error"
	EventDegraded   EventType = "degraded"
)

// Event is delivered to listeners after the state change it describes.
// A transition to StateFailed carries a *JobFailedError; a degraded event carries
// a *PollingDegradedError.
type Event struct {
	Type   EventType
	JobID  string
	From   State
	To     State
	Status models.JobStatus
	Err    error
}

// Listener receives Client events. Dispatch is serialized and runs on the
// goroutine that caused the event, never while the client's lock is held.
// A listener may call Snapshot but must not call Submit or Cancel.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }
