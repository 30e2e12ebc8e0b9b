package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/service/session"
)

// Inbound message types.
const (
	InConnect         = "connect"
	InDisconnect      = "disconnect"
	InText            = "text"
	InRetrySubmission = "retry_submission"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// ControllerFactory builds a controller that writes to sink.
type ControllerFactory func(sink session.Sink, log *logrus.Entry) *session.Controller

// Handler relays one browser or terminal client to its own session controller.
type Handler struct {
	newController ControllerFactory
	upgrader      websocket.Upgrader
	log           *logrus.Entry
}

// New 创建实时中继处理器
func New(factory ControllerFactory, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		newController: factory,
		log:           log.WithField("component", "live"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type connectMessage struct {
	AgentID string `json:"agentId"`
}

type textMessage struct {
	Text string `json:"text"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("remote", r.RemoteAddr)
	log.Info("relay client connected")

	// The request context ends with the handler; connection lifetime is ours to manage.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sink := newSocketSink(conn, log)
	ctrl := h.newController(sink, log)
	defer ctrl.Shutdown(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, sink)

	ctrl.Announce()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("relay read failed")
			}
			log.Info("relay client disconnected")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, ctrl, sink, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, ctrl *session.Controller, sink *socketSink, msg *inboundMessage) {
	switch msg.Type {
	case InConnect:
		var payload connectMessage
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				sink.sendError("invalid connect payload")
				return
			}
		}
		go func() {
			reportRejection(sink, ctrl.Connect(ctx, payload.AgentID))
		}()
	case InDisconnect:
		reportRejection(sink, ctrl.Disconnect(ctx))
	case InText:
		var payload textMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			sink.sendError("invalid text payload")
			return
		}
		reportRejection(sink, ctrl.SendText(ctx, payload.Text))
	case InRetrySubmission:
		go func() {
			_, err := ctrl.RetrySubmission(ctx)
			reportRejection(sink, err)
		}()
	default:
		sink.sendError("unsupported message type: " + msg.Type)
	}
}

// reportRejection sends errors the controller did not already surface as a status.
func reportRejection(sink *socketSink, err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrUnknownAgent),
		errors.Is(err, session.ErrNoPendingSubmission),
		errors.Is(err, session.ErrShutdown):
		sink.sendError(err.Error())
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, sink *socketSink) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				return
			}
		}
	}
}
