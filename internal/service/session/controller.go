// Package session drives one user's realtime conversation: credential issuance, stream
// lifecycle, listener wiring, transcript rendering and tool execution.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/apperr"
	"github.com/eureka-labs/eureka/backend/internal/config"
	"github.com/eureka-labs/eureka/backend/internal/model/agent"
	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
	"github.com/eureka-labs/eureka/backend/internal/model/submission"
	"github.com/eureka-labs/eureka/backend/internal/service/credential"
	"github.com/eureka-labs/eureka/backend/internal/service/dedup"
	"github.com/eureka-labs/eureka/backend/internal/service/realtime"
	"github.com/eureka-labs/eureka/backend/internal/service/transcript"
	"github.com/eureka-labs/eureka/backend/internal/service/webhook"
)

// User-facing status and event lines.
const (
	MsgReady             = "Lista para conectar"
	MsgConnecting        = "Conectando..."
	MsgRequestingToken   = "Solicitando token de sesión del servidor..."
	MsgTokenReceived     = "Token de sesión recibido"
	MsgOpening           = "Intentando conectar a OpenAI..."
	MsgConnected         = "¡Conectada - Empieza a hablar o escribir!"
	MsgConnectedEvent    = "¡Conexión establecida - Ya puedes hablar o escribir!"
	MsgTimeout           = "Timeout de conexión - revisa la consola"
	MsgTimeoutEvent      = "Timeout de conexión - revisa la consola para más detalles"
	MsgDisconnected      = "Desconectada"
	MsgDisconnectedEvent = "Desconectada por el usuario"
	MsgRemoteClosed      = "Conexión cerrada por el servidor"
)

// Options wire a Controller to its collaborators.
type Options struct {
	Credentials    credential.Source
	Streams        realtime.Factory
	Agents         agent.Store
	Webhook        webhook.Submitter
	Registry       *Registry
	Sink           Sink
	ConnectTimeout time.Duration
	Clock          dedup.Clock
	Logger         *logrus.Entry
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	State     State                 `json:"state"`
	SessionID string                `json:"sessionId,omitempty"`
	AgentID   string                `json:"agentId,omitempty"`
	Status    conversation.Status   `json:"status"`
	Controls  conversation.Controls `json:"controls"`
}

// Controller owns at most one upstream stream at a time. A single mutex serializes state
// transitions, dedup mutations and sink output; it is released around credential
// issuance, stream open, sends and webhook calls.
type Controller struct {
	mu sync.Mutex

	creds    credential.Source
	streams  realtime.Factory
	agents   agent.Store
	webhook  webhook.Submitter
	registry *Registry
	sink     Sink
	timeout  time.Duration
	clock    dedup.Clock
	log      *logrus.Entry

	state    State
	status   conversation.Status
	gen      uint64
	shutdown bool

	stream     realtime.Stream
	profile    agent.Profile
	sessionID  string
	sessionLog *logrus.Entry
	filter     *dedup.MessageFilter
	agg        *transcript.Aggregator
	events     *dedup.EventFilter
	sessionCtx context.Context
	cancel     context.CancelFunc
	sending    bool
	// openErr 记录 Connecting 期间流上报的失败
	openErr error

	pending  *submission.Project
	retrying bool
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = config.DefaultConnectTimeout
	}
	if opts.Clock == nil {
		opts.Clock = dedup.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Webhook == nil {
		opts.Webhook = webhook.NewClient(config.WebhookConfig{}, opts.Logger)
	}
	if opts.Agents == nil {
		opts.Agents = agent.NewMemoryStore(agent.Seed())
	}

	log := opts.Logger.WithField("component", "session")
	return &Controller{
		creds:      opts.Credentials,
		streams:    opts.Streams,
		agents:     opts.Agents,
		webhook:    opts.Webhook,
		registry:   opts.Registry,
		sink:       opts.Sink,
		timeout:    opts.ConnectTimeout,
		clock:      opts.Clock,
		log:        log,
		sessionLog: log,
		state:      StateIdle,
		events:     dedup.NewEventFilter(opts.Clock),
	}
}

// Announce publishes the initial greeting, status and controls.
func (c *Controller) Announce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if greeting := c.agents.Default().Greeting; greeting != "" {
		c.logEventLocked(greeting)
	}
	c.setStatusLocked(MsgReady, conversation.StatusInfo)
	c.publishControlsLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state, status and enabled controls.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		AgentID:   c.profile.ID,
		Status:    c.status,
		Controls:  c.controlsLocked(),
	}
}

// SessionID returns the id of the current or most recent session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect opens a session with the agent profile agentID (empty means the default agent).
func (c *Controller) Connect(ctx context.Context, agentID string) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrShutdown
	}
	if !c.state.canConnect() {
		c.mu.Unlock()
		return ErrInvalidState
	}
	profile, ok := c.agents.FindByID(agentID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	c.gen++
	gen := c.gen
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.sessionCtx = attemptCtx
	c.openErr = nil
	c.state = StateConnecting
	c.profile = profile
	c.beginSessionLocked(ctx, profile)

	c.setStatusLocked(MsgConnecting, conversation.StatusInfo)
	c.publishControlsLocked()
	c.logEventLocked(MsgRequestingToken)
	sessionLog := c.sessionLog
	c.mu.Unlock()

	sessionLog.WithField("agent", profile.ID).Info("connecting realtime session")

	issued, err := c.creds.Issue(attemptCtx)
	if err != nil {
		sessionLog.WithError(err).Error("credential issuance failed")
		c.failConnect(gen, err, false)
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrAborted
	}
	c.logEventLocked(MsgTokenReceived)
	stream := c.streams(profile)
	c.attachLocked(stream, gen)
	c.stream = stream
	c.logEventLocked(MsgOpening)
	c.mu.Unlock()

	openCtx, cancelOpen := context.WithTimeout(attemptCtx, c.timeout)
	defer cancelOpen()

	result := make(chan error, 1)
	go func() { result <- stream.Open(openCtx, issued.Value) }()

	select {
	case err = <-result:
	case <-openCtx.Done():
		err = apperr.Timeout("session.open", openCtx.Err())
		go func() {
			if lateErr := <-result; lateErr == nil {
				sessionLog.Warn("closing stream opened after the connect timer fired")
			}
			_ = stream.Close()
		}()
	}

	if err != nil {
		sessionLog.WithError(err).Error("realtime stream open failed")
		c.failConnect(gen, err, errors.Is(openCtx.Err(), context.DeadlineExceeded))
		return err
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateConnecting {
		c.mu.Unlock()
		_ = stream.Close()
		return ErrAborted
	}
	if openErr := c.openErr; openErr != nil {
		c.mu.Unlock()
		sessionLog.WithError(openErr).Error("realtime stream failed while opening")
		c.failConnect(gen, openErr, false)
		return openErr
	}
	c.state = StateActive
	c.recordStateLocked(StateActive)
	c.setStatusLocked(MsgConnected, conversation.StatusSuccess)
	c.logEventLocked(MsgConnectedEvent)
	c.publishControlsLocked()
	c.mu.Unlock()

	sessionLog.Info("realtime session active")
	return nil
}

// failConnect reports a failed attempt and tears the partial session down.
func (c *Controller) failConnect(gen uint64, err error, timedOut bool) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	stream := c.teardownLocked(StateFailed)
	if timedOut {
		c.logEventLocked(MsgTimeoutEvent)
		c.setStatusLocked(MsgTimeout, conversation.StatusError)
	} else {
		msg := "Error de conexión: " + userMessage(err)
		c.setStatusLocked(msg, conversation.StatusError)
		c.logEventLocked(msg)
	}
	c.publishControlsLocked()
	c.mu.Unlock()

	c.closeStream(stream)
}

// Disconnect ends an active session at the user's request.
func (c *Controller) Disconnect(_ context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateDisconnecting
	c.publishControlsLocked()
	stream := c.detachLocked()
	c.mu.Unlock()

	c.closeStream(stream)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishSessionLocked(StateIdle)
	c.setStatusLocked(MsgDisconnected, conversation.StatusInfo)
	c.logEventLocked(MsgDisconnectedEvent)
	c.publishControlsLocked()
	return nil
}

// SendText renders a typed message and transmits it. Blank input is ignored.
func (c *Controller) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrInvalidState
	}
	stream, gen := c.stream, c.gen
	c.agg.EchoLocal(text)
	c.sending = true
	c.publishControlsLocked()
	c.mu.Unlock()

	err := stream.SendMessage(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return err
	}
	c.sending = false
	if err != nil {
		msg := userMessage(err)
		c.sessionLog.WithError(err).Warn("sending text message failed")
		c.logEventLocked("Error al enviar mensaje: " + msg)
		c.setStatusLocked("Error: "+msg, conversation.StatusError)
	}
	c.publishControlsLocked()
	return err
}

// Shutdown releases everything when the client goes away. An in-flight connect is
// canceled and its stream closed; an active session is torn down.
func (c *Controller) Shutdown(_ context.Context) {
	c.mu.Lock()
	c.shutdown = true
	var stream realtime.Stream
	switch c.state {
	case StateConnecting:
		stream = c.teardownLocked(StateFailed)
	case StateActive:
		stream = c.teardownLocked(StateIdle)
	}
	c.events.Reset()
	c.mu.Unlock()

	c.closeStream(stream)
	c.log.Debug("session controller shut down")
}

// beginSessionLocked starts a fresh transcript, dedup tables and registry entry.
func (c *Controller) beginSessionLocked(ctx context.Context, profile agent.Profile) {
	s, err := c.registry.Create(ctx, profile.ID)
	if err != nil {
		c.log.WithError(err).Warn("session registry rejected new session")
	}
	c.sessionID = s.ID
	c.sessionLog = c.log.WithField("session_id", s.ID)
	if aware, ok := c.sink.(SessionAware); ok {
		aware.SessionStarted(s.ID)
	}
	c.filter = dedup.NewMessageFilter()
	c.agg = transcript.NewAggregator(&recorder{c: c, sessionID: s.ID}, c.filter, transcript.Options{
		AgentName: profile.Name,
		Now:       c.clock.Now,
	})
}

// attachLocked registers one listener per notification kind, each bound to gen so that
// notifications from a torn-down stream are ignored.
func (c *Controller) attachLocked(stream realtime.Stream, gen uint64) {
	stream.On(realtime.KindAgentEnd, c.bound(gen, func(n realtime.Notification) {
		c.agg.OnAgentEnd(n.(realtime.AgentEnd).Text)
	}))
	stream.On(realtime.KindHistoryAdded, c.bound(gen, func(n realtime.Notification) {
		c.agg.OnHistoryAdded(n.(realtime.HistoryAdded).Item)
	}))
	stream.On(realtime.KindHistoryUpdated, c.bound(gen, func(n realtime.Notification) {
		c.agg.OnHistoryUpdated(n.(realtime.HistoryUpdated).History)
	}))
	stream.On(realtime.KindTransport, c.bound(gen, func(n realtime.Notification) {
		c.agg.OnTransport(n.(realtime.TransportEvent).Event)
	}))
	stream.On(realtime.KindToolCall, func(n realtime.Notification) {
		go c.handleToolCall(gen, n.(realtime.ToolCall))
	})
	stream.On(realtime.KindError, func(n realtime.Notification) {
		c.onStreamError(gen, n.(realtime.StreamError))
	})
	stream.On(realtime.KindClosed, func(n realtime.Notification) {
		c.onRemoteClose(gen, n.(realtime.Closed))
	})
}

func (c *Controller) bound(gen uint64, fn realtime.Listener) realtime.Listener {
	return func(n realtime.Notification) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen || c.agg == nil {
			return
		}
		fn(n)
	}
}

func (c *Controller) onStreamError(gen uint64, n realtime.StreamError) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.state == StateConnecting {
		if c.openErr == nil {
			c.openErr = n.Err
		}
		c.mu.Unlock()
		return
	}
	msg := "Error: " + userMessage(n.Err)
	c.sessionLog.WithError(n.Err).Error("realtime stream error")
	c.setStatusLocked(msg, conversation.StatusError)
	c.logEventLocked(msg)

	var stream realtime.Stream
	if c.state == StateActive {
		stream = c.teardownLocked(StateFailed)
		c.publishControlsLocked()
	}
	c.mu.Unlock()

	c.closeStream(stream)
}

func (c *Controller) onRemoteClose(gen uint64, n realtime.Closed) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.state == StateConnecting {
		if c.openErr == nil {
			c.openErr = apperr.Transport("session.open", fmt.Errorf("%w: %s", errRemoteClosed, n.Reason))
		}
		c.mu.Unlock()
		return
	}
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.sessionLog.WithField("reason", n.Reason).Info("realtime stream closed remotely")
	stream := c.teardownLocked(StateDisconnected)
	c.setStatusLocked(MsgDisconnected, conversation.StatusInfo)
	c.logEventLocked(MsgRemoteClosed)
	c.publishControlsLocked()
	c.mu.Unlock()

	c.closeStream(stream)
}

// detachLocked removes every listener and invalidates in-flight notifications. It returns
// the stream for closing outside the lock.
func (c *Controller) detachLocked() realtime.Stream {
	c.gen++
	stream := c.stream
	c.stream = nil
	if stream != nil {
		for _, kind := range realtime.Kinds {
			stream.Off(kind)
		}
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.sessionCtx = nil
	c.openErr = nil
	c.sending = false
	return stream
}

// finishSessionLocked drops the session's dedup tables and records the final state.
func (c *Controller) finishSessionLocked(next State) {
	if c.filter != nil {
		c.filter.Reset()
	}
	c.events.Reset()
	c.agg = nil
	c.state = next
	c.recordStateLocked(next)
}

func (c *Controller) teardownLocked(next State) realtime.Stream {
	stream := c.detachLocked()
	c.finishSessionLocked(next)
	return stream
}

func (c *Controller) closeStream(stream realtime.Stream) {
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		c.log.WithError(err).Warn("closing realtime stream failed")
	}
}

func (c *Controller) recordStateLocked(state State) {
	if c.sessionID == "" {
		return
	}
	if err := c.registry.SetState(context.Background(), c.sessionID, state); err != nil {
		c.sessionLog.WithError(err).Debug("registry state update skipped")
	}
}

func (c *Controller) setStatusLocked(msg string, level conversation.StatusLevel) {
	c.status = conversation.Status{Message: msg, Level: level}
	c.sink.Status(c.status)
}

func (c *Controller) logEventLocked(text string) {
	if c.events.ShouldSuppress(text) {
		return
	}
	c.sink.LogEvent(conversation.EventEntry{Text: text, At: c.clock.Now()})
}

func (c *Controller) controlsLocked() conversation.Controls {
	ctl := conversation.Controls{
		CanRetry: c.pending != nil && !c.retrying,
	}
	switch c.state {
	case StateIdle, StateFailed, StateDisconnected:
		ctl.CanConnect = !c.shutdown
	case StateActive:
		ctl.CanDisconnect = true
		ctl.CanSend = !c.sending
	}
	return ctl
}

func (c *Controller) publishControlsLocked() {
	c.sink.Controls(c.controlsLocked())
}

// recorder stores rendered items in the registry before forwarding them to the sink.
// It runs under the controller mutex.
type recorder struct {
	c         *Controller
	sessionID string
}

func (r *recorder) AppendItem(item conversation.Item) {
	if err := r.c.registry.Append(context.Background(), r.sessionID, item); err != nil {
		r.c.sessionLog.WithError(err).Debug("registry append skipped")
	}
	r.c.sink.AppendItem(item)
}

func (r *recorder) ReviseItem(item conversation.Item) {
	if err := r.c.registry.Revise(context.Background(), r.sessionID, item); err != nil {
		r.c.sessionLog.WithError(err).Debug("registry revise skipped")
	}
	r.c.sink.ReviseItem(item)
}

// userMessage extracts the human-readable part of a classified error.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		if e.Status != 0 {
			return fmt.Sprintf("%s (%d)", msg, e.Status)
		}
		if msg != "" {
			return msg
		}
	}
	return err.Error()
}
