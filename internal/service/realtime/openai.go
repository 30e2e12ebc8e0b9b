package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/apperr"
	"github.com/eureka-labs/eureka/backend/internal/model/agent"
	realtimemodel "github.com/eureka-labs/eureka/backend/internal/model/realtime"
)

// DefaultTranscriptionModel transcribes user audio so voice turns reach the transcript.
const DefaultTranscriptionModel = "whisper-1"

// Options 上游实时连接配置
type Options struct {
	URL                string
	Model              string
	TranscriptionModel string
	Dialer             *websocket.Dialer
	PingInterval       time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	Logger             *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.TranscriptionModel == "" {
		o.TranscriptionModel = DefaultTranscriptionModel
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 2 * o.PingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// NewFactory returns a Factory producing WebSocket streams with the given options.
func NewFactory(opts Options) Factory {
	return func(profile agent.Profile) Stream {
		return NewWSStream(profile, opts)
	}
}

// WSStream speaks the realtime protocol over a gorilla WebSocket. It keeps a local copy
// of the conversation history so it can emit full snapshots.
type WSStream struct {
	Emitter

	profile agent.Profile
	opts    Options
	log     *logrus.Entry

	mu      sync.Mutex
	conn    *websocket.Conn
	opened  bool
	reading bool
	closed  atomic.Bool
	stopped chan struct{}
	done    chan struct{}
	once    sync.Once

	writeMu sync.Mutex

	histMu  sync.Mutex
	history []realtimemodel.Item
	index   map[string]int
}

// NewWSStream creates an unopened stream bound to profile.
func NewWSStream(profile agent.Profile, opts Options) *WSStream {
	opts = opts.withDefaults()
	return &WSStream{
		profile: profile,
		opts:    opts,
		log:     opts.Logger.WithField("agent", profile.ID),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		index:   make(map[string]int),
	}
}

// Done is closed once the read loop has exited.
func (s *WSStream) Done() <-chan struct{} {
	return s.done
}

// Open dials the upstream with the ephemeral token, configures the session from the agent
// profile and starts the read and keepalive loops.
func (s *WSStream) Open(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.opened {
		s.mu.Unlock()
		return errors.New("realtime stream already opened")
	}
	s.opened = true
	s.mu.Unlock()

	endpoint, err := s.endpoint()
	if err != nil {
		return apperr.Internal("realtime.open", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := s.opts.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Timeout("realtime.open", ctx.Err())
		}
		if resp != nil {
			return apperr.Upstream("realtime.open", resp.StatusCode, nil, err.Error())
		}
		return apperr.Transport("realtime.open", err)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()

	// 任何入站帧或 pong 都会延长读超时
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	if err := s.writeEvent(ctx, s.sessionUpdate()); err != nil {
		_ = s.Close()
		return apperr.Transport("realtime.session_update", err)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrClosed
	}
	s.reading = true
	s.mu.Unlock()

	go s.readLoop(conn)
	go s.pingLoop(conn)

	s.log.WithField("model", s.model()).Info("realtime stream opened")
	return nil
}

// SendMessage appends a user text message and asks for a response.
func (s *WSStream) SendMessage(ctx context.Context, text string) error {
	if err := s.writeEvent(ctx, realtimemodel.UserTextMessage(text)); err != nil {
		return err
	}
	return s.writeEvent(ctx, realtimemodel.ClientEvent{Type: realtimemodel.ClientResponseCreate})
}

// SendToolResult answers a function call and asks the model to continue.
func (s *WSStream) SendToolResult(ctx context.Context, callID, output string) error {
	if err := s.writeEvent(ctx, realtimemodel.FunctionCallOutput(callID, output)); err != nil {
		return err
	}
	return s.writeEvent(ctx, realtimemodel.ClientEvent{Type: realtimemodel.ClientResponseCreate})
}

// Close shuts the stream down. It does not wait for the read loop, so listeners may call it.
func (s *WSStream) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.stopped)

		s.mu.Lock()
		conn, reading := s.conn, s.reading
		s.mu.Unlock()
		if !reading {
			close(s.done)
		}
		if conn == nil {
			return
		}

		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = conn.Close()
	})
	return err
}

func (s *WSStream) model() string {
	if s.profile.Model != "" {
		return s.profile.Model
	}
	return s.opts.Model
}

func (s *WSStream) endpoint() (string, error) {
	u, err := url.Parse(s.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	if m := s.model(); m != "" {
		q := u.Query()
		q.Set("model", m)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *WSStream) sessionUpdate() realtimemodel.ClientEvent {
	cfg := &realtimemodel.SessionConfig{
		Type:         "realtime",
		Instructions: s.profile.Instructions,
		Temperature:  s.profile.Temperature,
		Audio: &realtimemodel.Audio{
			Input: &realtimemodel.AudioInput{
				Transcription: &realtimemodel.Transcription{Model: s.opts.TranscriptionModel},
			},
		},
	}
	if s.profile.Voice != "" {
		cfg.Audio.Output = &realtimemodel.AudioOutput{Voice: s.profile.Voice}
	}
	for _, tool := range s.profile.Tools {
		cfg.Tools = append(cfg.Tools, realtimemodel.ToolDefinition{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return realtimemodel.ClientEvent{Type: realtimemodel.ClientSessionUpdate, Session: cfg}
}

func (s *WSStream) writeEvent(ctx context.Context, ev realtimemodel.ClientEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return apperr.Internal("realtime.encode", err)
	}

	deadline := time.Now().Add(s.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if s.closed.Load() {
			return ErrClosed
		}
		return apperr.Transport("realtime.write", err)
	}
	return nil
}

// pingLoop 定期发送 ping 保持连接
func (s *WSStream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopped:
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				if s.closed.Load() {
					return
				}
				s.log.WithError(err).Warn("realtime ping failed")
				s.Emit(StreamError{Err: apperr.Transport("realtime.ping", err)})
				_ = s.Close()
				return
			}
		}
	}
}

func (s *WSStream) readLoop(conn *websocket.Conn) {
	defer close(s.done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason := ""
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					reason = ce.Text
				}
				s.log.WithField("reason", reason).Info("realtime stream closed by upstream")
				s.Emit(Closed{Reason: reason})
				return
			}
			s.log.WithError(err).Warn("realtime stream read failed")
			s.Emit(StreamError{Err: apperr.Transport("realtime.read", err)})
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := realtimemodel.DecodeServerEvent(data)
		if err != nil {
			s.log.WithError(err).Warn("discarding undecodable realtime frame")
			continue
		}
		s.dispatch(ev)
	}
}

func (s *WSStream) dispatch(ev realtimemodel.ServerEvent) {
	s.Emit(TransportEvent{Event: ev})

	switch ev.Type {
	case realtimemodel.EventItemCreated, realtimemodel.EventItemAdded, realtimemodel.EventItemDone:
		if ev.Item == nil {
			return
		}
		added, snapshot := s.upsertItem(*ev.Item)
		if added {
			s.Emit(HistoryAdded{Item: ev.Item.Clone()})
		}
		s.Emit(HistoryUpdated{History: snapshot})

	case realtimemodel.EventInputTranscriptionDone:
		if snapshot, ok := s.patchTranscript(ev.ItemID, ev.ContentIndex, ev.Transcript); ok {
			s.Emit(HistoryUpdated{History: snapshot})
		}

	case realtimemodel.EventResponseDone:
		if ev.Response == nil {
			return
		}
		var texts []string
		for _, item := range ev.Response.Output {
			switch item.Type {
			case realtimemodel.ItemFunctionCall:
				s.Emit(ToolCall{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments})
			case realtimemodel.ItemMessage:
				if item.Role == realtimemodel.RoleAssistant {
					if text := assistantText(item); text != "" {
						texts = append(texts, text)
					}
				}
			}
		}
		if len(texts) > 0 {
			s.Emit(AgentEnd{Text: strings.Join(texts, "\n")})
		}

	case realtimemodel.EventError:
		msg := "unknown realtime error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		s.log.WithField("upstream_error", msg).Warn("realtime error event")
		s.Emit(StreamError{Err: apperr.Upstream("realtime", 0, ev.Raw, msg)})
	}
}

// upsertItem stores an item by id. It reports whether the item is new and returns a snapshot.
func (s *WSStream) upsertItem(item realtimemodel.Item) (bool, []realtimemodel.Item) {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	added := true
	if item.ID != "" {
		if idx, ok := s.index[item.ID]; ok {
			s.history[idx] = mergeItem(s.history[idx], item)
			added = false
		} else {
			s.index[item.ID] = len(s.history)
			s.history = append(s.history, item.Clone())
		}
	} else {
		s.history = append(s.history, item.Clone())
	}
	return added, s.snapshotLocked()
}

// mergeItem keeps transcripts already learned when a later frame omits them.
func mergeItem(prev, next realtimemodel.Item) realtimemodel.Item {
	out := next.Clone()
	for i := range out.Content {
		if out.Content[i].Transcript == nil && i < len(prev.Content) && prev.Content[i].Transcript != nil {
			t := *prev.Content[i].Transcript
			out.Content[i].Transcript = &t
		}
	}
	return out
}

func (s *WSStream) patchTranscript(itemID string, contentIndex int, transcript string) ([]realtimemodel.Item, bool) {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	idx, ok := s.index[itemID]
	if !ok {
		return nil, false
	}
	item := &s.history[idx]
	for len(item.Content) <= contentIndex {
		item.Content = append(item.Content, realtimemodel.ContentPart{Type: realtimemodel.PartInputAudio})
	}
	t := transcript
	item.Content[contentIndex].Transcript = &t
	return s.snapshotLocked(), true
}

func (s *WSStream) snapshotLocked() []realtimemodel.Item {
	out := make([]realtimemodel.Item, len(s.history))
	for i, item := range s.history {
		out[i] = item.Clone()
	}
	return out
}

func assistantText(item realtimemodel.Item) string {
	var parts []string
	for _, part := range item.Content {
		switch {
		case strings.TrimSpace(part.Text) != "":
			parts = append(parts, part.Text)
		case part.Transcript != nil && strings.TrimSpace(*part.Transcript) != "":
			parts = append(parts, *part.Transcript)
		}
	}
	return strings.Join(parts, "")
}
