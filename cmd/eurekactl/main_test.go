package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
	"github.com/eureka-labs/eureka/backend/internal/model/submission"
	"github.com/eureka-labs/eureka/backend/internal/service/session"
)

type fakeSession struct {
	mu          sync.Mutex
	state       session.State
	sent        []string
	retries     int
	disconnects int
	retryErr    error
}

func (f *fakeSession) SendText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSession) RetrySubmission(context.Context) (submission.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	return submission.Outcome{}, f.retryErr
}

func (f *fakeSession) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeSession) setState(state session.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

func (f *fakeSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()
	if state == "" {
		state = session.StateActive
	}
	return session.Snapshot{
		State:     state,
		SessionID: "sess-1",
		AgentID:   "eureka",
		Status:    conversation.Status{Message: "Conectado", Level: conversation.StatusSuccess},
	}
}

func TestRunChatCommands(t *testing.T) {
	fake := &fakeSession{retryErr: session.ErrNoPendingSubmission}
	var out bytes.Buffer
	in := strings.NewReader("hola\n\n/status\n/retry\n/quit\nignored\n")

	require.NoError(t, runChat(context.Background(), fake, in, &out))

	assert.Equal(t, []string{"hola"}, fake.sent)
	assert.Equal(t, 1, fake.retries)
	assert.Equal(t, 1, fake.disconnects)
	assert.Contains(t, out.String(), "estado=active sesión=sess-1 agente=eureka")
	assert.Contains(t, out.String(), "error: "+session.ErrNoPendingSubmission.Error())
}

func TestRunChatDisconnectsOnEOF(t *testing.T) {
	fake := &fakeSession{}

	require.NoError(t, runChat(context.Background(), fake, strings.NewReader("uno\n"), &bytes.Buffer{}))

	assert.Equal(t, []string{"uno"}, fake.sent)
	assert.Equal(t, 1, fake.disconnects)
}

func TestRunChatExitsWhenSessionEnds(t *testing.T) {
	statePollInterval = 5 * time.Millisecond
	t.Cleanup(func() { statePollInterval = 250 * time.Millisecond })

	fake := &fakeSession{}
	in, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })
	var out bytes.Buffer

	done := make(chan error, 1)
	go func() { done <- runChat(context.Background(), fake, in, &out) }()
	fake.setState(session.StateDisconnected)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("chat loop kept running after the session ended")
	}
	assert.Zero(t, fake.disconnects)
	assert.Contains(t, out.String(), "sesión terminada (disconnected)")
}

func TestRunChatEOFAfterSessionEndedSkipsDisconnect(t *testing.T) {
	fake := &fakeSession{state: session.StateFailed}
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), fake, strings.NewReader(""), &out))

	assert.Zero(t, fake.disconnects)
	assert.NotContains(t, out.String(), "error:")
}

func TestTerminalSink(t *testing.T) {
	var out bytes.Buffer
	sink := newTerminalSink(&out, false)

	sink.AppendItem(conversation.Item{Speaker: "Tú", Text: "hola"})
	sink.ReviseItem(conversation.Item{Speaker: "Tú", Text: "hola de nuevo"})
	sink.Status(conversation.Status{Message: "Conectado", Level: conversation.StatusSuccess})
	sink.LogEvent(conversation.EventEntry{Text: "hidden", At: time.Now()})
	sink.Controls(conversation.Controls{CanSend: true})

	assert.Equal(t, "Tú: hola\n(corregido) Tú: hola de nuevo\n[success] Conectado\n", out.String())
}

func TestTerminalSinkVerbose(t *testing.T) {
	var out bytes.Buffer
	sink := newTerminalSink(&out, true)

	sink.LogEvent(conversation.EventEntry{Text: "Token de sesión recibido", At: time.Date(2024, 1, 1, 10, 20, 30, 0, time.UTC)})
	sink.Controls(conversation.Controls{CanDisconnect: true, CanSend: true})

	assert.Contains(t, out.String(), "10:20:30 Token de sesión recibido")
	assert.Contains(t, out.String(), "disconnect=true send=true")
}

func TestRedactPayload(t *testing.T) {
	raw := json.RawMessage(`{"value":"ek_1234567890abcdef","expires_at":1,"session":{"client_secret":{"value":"ek_nested_secret_value"}}}`)

	out, err := redactPayload(raw)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "ek_1234567890abcdef")
	assert.NotContains(t, string(out), "ek_nested_secret_value")
	assert.Contains(t, string(out), `"ek_1234567..."`)
	assert.Contains(t, string(out), `"expires_at": 1`)
}

func TestRedactPayloadRejectsInvalidJSON(t *testing.T) {
	_, err := redactPayload(json.RawMessage(`not json`))
	assert.Error(t, err)
}
