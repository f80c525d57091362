package adapter

import "void-ai-chat/internal/domain/model"

type EventKind string

const (
	EventMessage EventKind = "message" // one message changed (full content replace)
	EventSession EventKind = "session" // session list or selection changed
	EventProfile EventKind = "profile"
	EventNotice  EventKind = "notice" // transient user notice, e.g. out of credits
	EventState   EventKind = "state"  // in-flight flag flipped
)

// Event is a snapshot published after a state change. Payloads are copies.
type Event struct {
	Kind      EventKind          `json:"kind"`
	SessionID string             `json:"sessionId,omitempty"`
	Message   *model.Message     `json:"message,omitempty"`
	Session   *model.ChatSession `json:"session,omitempty"`
	Profile   *model.UserProfile `json:"profile,omitempty"`
	Notice    string             `json:"notice,omitempty"`
	InFlight  bool               `json:"inFlight,omitempty"`
}

// Publisher delivers events to presentation surfaces. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}

// Publishers fans an event out to several publishers.
type Publishers []Publisher

func (ps Publishers) Publish(ev Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(ev)
		}
	}
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) {}
