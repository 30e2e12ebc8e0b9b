package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
)

// Outbound message types.
const (
	OutItem        = "item"
	OutItemRevised = "item_revised"
	OutStatus      = "status"
	OutEvent       = "event"
	OutControls    = "controls"
	OutError       = "error"
)

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// socketSink serializes controller output onto one client socket.
type socketSink struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	sessionID    string
	writeTimeout time.Duration
	log          *logrus.Entry
}

func newSocketSink(conn *websocket.Conn, log *logrus.Entry) *socketSink {
	return &socketSink{conn: conn, writeTimeout: 10 * time.Second, log: log}
}

func (s *socketSink) SessionStarted(sessionID string) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()
}

func (s *socketSink) AppendItem(item conversation.Item) { s.send(OutItem, item) }
func (s *socketSink) ReviseItem(item conversation.Item) { s.send(OutItemRevised, item) }
func (s *socketSink) Status(status conversation.Status) { s.send(OutStatus, status) }
func (s *socketSink) LogEvent(entry conversation.EventEntry) {
	s.send(OutEvent, entry)
}
func (s *socketSink) Controls(controls conversation.Controls) {
	s.send(OutControls, controls)
}

func (s *socketSink) sendError(message string) {
	s.send(OutError, map[string]string{"message": message})
}

func (s *socketSink) send(msgType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := outgoingMessage{
		Type:      msgType,
		SessionID: s.sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.log.WithError(err).WithField("type", msgType).Debug("relay write failed")
	}
}

func (s *socketSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}
