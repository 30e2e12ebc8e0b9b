package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
	"github.com/eureka-labs/eureka/backend/internal/service/session"
)

func TestRegistryGetSession(t *testing.T) {
	reg := session.NewRegistry()
	ctx := context.Background()

	s, err := reg.Create(ctx, "eureka")
	require.NoError(t, err)

	got, err := reg.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "eureka", got.AgentID)
	assert.Equal(t, string(session.StateConnecting), got.State)
}

func TestRegistryRequiresAgent(t *testing.T) {
	_, err := session.NewRegistry().Create(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrAgentRequired)
}

func TestRegistryGetSessionNotFound(t *testing.T) {
	reg := session.NewRegistry()
	ctx := context.Background()

	_, err := reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = reg.Transcript(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, reg.Append(ctx, "missing", conversation.Item{}), session.ErrNotFound)
}

func TestRegistryTranscriptAppendAndRevise(t *testing.T) {
	reg := session.NewRegistry()
	ctx := context.Background()
	s, err := reg.Create(ctx, "eureka")
	require.NoError(t, err)

	require.NoError(t, reg.Append(ctx, s.ID, conversation.Item{Seq: 1, Text: "ola"}))
	require.NoError(t, reg.Append(ctx, s.ID, conversation.Item{Seq: 2, Text: "chao"}))
	require.NoError(t, reg.Revise(ctx, s.ID, conversation.Item{Seq: 1, Text: "hola"}))
	assert.ErrorIs(t, reg.Revise(ctx, s.ID, conversation.Item{Seq: 9}), session.ErrNotFound)

	tr, err := reg.Transcript(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, tr.Items, 2)
	assert.Equal(t, "hola", tr.Items[0].Text)
	assert.Equal(t, "chao", tr.Items[1].Text)

	// The returned slice is a copy.
	tr.Items[0].Text = "mutado"
	again, _ := reg.Transcript(ctx, s.ID)
	assert.Equal(t, "hola", again.Items[0].Text)
}

func TestRegistryTerminalStateStampsEnd(t *testing.T) {
	reg := session.NewRegistry()
	ctx := context.Background()
	s, _ := reg.Create(ctx, "eureka")

	require.NoError(t, reg.SetState(ctx, s.ID, session.StateActive))
	got, _ := reg.Get(ctx, s.ID)
	assert.True(t, got.EndedAt.IsZero())

	require.NoError(t, reg.SetState(ctx, s.ID, session.StateIdle))
	got, _ = reg.Get(ctx, s.ID)
	assert.False(t, got.EndedAt.IsZero())
	assert.Equal(t, string(session.StateIdle), got.State)
}

func TestRegistryEvictsOldestEndedSessions(t *testing.T) {
	reg := session.NewRegistryWithLimit(2)
	ctx := context.Background()

	first, err := reg.Create(ctx, "eureka")
	require.NoError(t, err)
	second, err := reg.Create(ctx, "eureka")
	require.NoError(t, err)
	require.NoError(t, reg.SetState(ctx, first.ID, session.StateIdle))
	require.NoError(t, reg.SetState(ctx, second.ID, session.StateFailed))

	third, err := reg.Create(ctx, "eureka")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	_, err = reg.Get(ctx, first.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = reg.Transcript(ctx, first.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = reg.Get(ctx, second.ID)
	assert.NoError(t, err)
	_, err = reg.Get(ctx, third.ID)
	assert.NoError(t, err)
}

func TestRegistryKeepsLiveSessionsOverLimit(t *testing.T) {
	reg := session.NewRegistryWithLimit(1)
	ctx := context.Background()

	live, err := reg.Create(ctx, "eureka")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "eureka")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len(), "sessions still connecting are never evicted")
	require.NoError(t, reg.Append(ctx, live.ID, conversation.Item{Seq: 1, Speaker: "Tú", Text: "hola"}))
}
