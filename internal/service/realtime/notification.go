package realtime

import (
	realtimemodel "github.com/eureka-labs/eureka/backend/internal/model/realtime"
)

// EventKind names a notification channel a listener can be attached to.
type EventKind string

const (
	KindAgentEnd       EventKind = "agent_end"
	KindHistoryAdded   EventKind = "history_added"
	KindHistoryUpdated EventKind = "history_updated"
	KindTransport      EventKind = "transport_event"
	KindToolCall       EventKind = "tool_call"
	KindError          EventKind = "error"
	KindClosed         EventKind = "closed"
)

// Kinds lists every notification kind a stream emits.
var Kinds = []EventKind{
	KindAgentEnd,
	KindHistoryAdded,
	KindHistoryUpdated,
	KindTransport,
	KindToolCall,
	KindError,
	KindClosed,
}

// Notification is one event delivered to a listener.
type Notification interface {
	Kind() EventKind
}

// AgentEnd 智能体完成一轮回复
type AgentEnd struct {
	Text string
}

func (AgentEnd) Kind() EventKind { return KindAgentEnd }

// HistoryAdded carries one newly appended history item.
type HistoryAdded struct {
	Item realtimemodel.Item
}

func (HistoryAdded) Kind() EventKind { return KindHistoryAdded }

// HistoryUpdated carries a full, ordered snapshot of the conversation history.
type HistoryUpdated struct {
	History []realtimemodel.Item
}

func (HistoryUpdated) Kind() EventKind { return KindHistoryUpdated }

// TransportEvent wraps every raw upstream frame.
type TransportEvent struct {
	Event realtimemodel.ServerEvent
}

func (TransportEvent) Kind() EventKind { return KindTransport }

// ToolCall 模型请求调用函数工具
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

func (ToolCall) Kind() EventKind { return KindToolCall }

// StreamError reports an upstream error event or a transport failure.
type StreamError struct {
	Err error
}

func (StreamError) Kind() EventKind { return KindError }

// Closed reports that the upstream closed the stream normally.
type Closed struct {
	Reason string
}

func (Closed) Kind() EventKind { return KindClosed }

// Listener receives notifications of one kind.
type Listener func(Notification)
