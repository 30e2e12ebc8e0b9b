package session

import "github.com/eureka-labs/eureka/backend/internal/model/conversation"

// Sink receives everything the user should see. Calls are made in order from the
// controller and must not call back into it.
type Sink interface {
	AppendItem(item conversation.Item)
	ReviseItem(item conversation.Item)
	Status(status conversation.Status)
	LogEvent(entry conversation.EventEntry)
	Controls(controls conversation.Controls)
}

// SessionAware is implemented by sinks that tag their output with the session id.
type SessionAware interface {
	SessionStarted(sessionID string)
}

type nopSink struct{}

func (nopSink) AppendItem(conversation.Item) {}
func (nopSink) ReviseItem(conversation.Item) {}
func (nopSink) Status(conversation.Status) {}
func (nopSink) LogEvent(conversation.EventEntry) {}
func (nopSink) Controls(conversation.Controls) {}
