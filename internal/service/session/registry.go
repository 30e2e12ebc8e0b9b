package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
)

var (
	ErrAgentRequired = errors.New("agent id is required")
	ErrNotFound      = errors.New("session not found")
)

// DefaultRetention 默认保留的会话数量
const DefaultRetention = 500

// Registry keeps the rendered transcripts of recent sessions in memory. Once more than
// limit sessions are stored, the oldest ended sessions are evicted; live sessions never are.
type Registry struct {
	mu       sync.RWMutex
	limit    int
	order    []string
	sessions map[string]conversation.Session
	items    map[string][]conversation.Item
}

// NewRegistry creates an empty registry keeping DefaultRetention sessions.
func NewRegistry() *Registry {
	return NewRegistryWithLimit(DefaultRetention)
}

// NewRegistryWithLimit creates an empty registry keeping at most limit ended sessions.
// A non-positive limit means DefaultRetention.
func NewRegistryWithLimit(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultRetention
	}
	return &Registry{
		limit:    limit,
		sessions: make(map[string]conversation.Session),
		items:    make(map[string][]conversation.Item),
	}
}

// Create provisions a session bound to an agent.
func (r *Registry) Create(_ context.Context, agentID string) (conversation.Session, error) {
	if agentID == "" {
		return conversation.Session{}, ErrAgentRequired
	}

	s := conversation.Session{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		State:     string(StateConnecting),
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.items[s.ID] = make([]conversation.Item, 0, 16)
	r.order = append(r.order, s.ID)
	r.evictLocked()
	r.mu.Unlock()

	return s, nil
}

// SetState records the lifecycle state of a session. Terminal states stamp EndedAt.
func (r *Registry) SetState(_ context.Context, sessionID string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.State = string(state)
	if state.terminal() && s.EndedAt.IsZero() {
		s.EndedAt = time.Now().UTC()
	}
	r.sessions[sessionID] = s
	return nil
}

// Append stores a newly rendered item.
func (r *Registry) Append(_ context.Context, sessionID string, item conversation.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	r.items[sessionID] = append(r.items[sessionID], item)
	return nil
}

// Revise replaces a stored item with the same sequence number.
func (r *Registry) Revise(_ context.Context, sessionID string, item conversation.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, ok := r.items[sessionID]
	if !ok {
		return ErrNotFound
	}
	for i := range items {
		if items[i].Seq == item.Seq {
			items[i] = item
			return nil
		}
	}
	return ErrNotFound
}

// Get retrieves a session by identifier.
func (r *Registry) Get(_ context.Context, sessionID string) (conversation.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return conversation.Session{}, ErrNotFound
	}
	return s, nil
}

// Transcript returns a copy of the stored items of a session.
func (r *Registry) Transcript(_ context.Context, sessionID string) (conversation.Transcript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return conversation.Transcript{}, ErrNotFound
	}
	items := r.items[sessionID]
	copied := make([]conversation.Item, len(items))
	copy(copied, items)
	return conversation.Transcript{Session: s, Items: copied}, nil
}

// Len returns the number of stored sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// evictLocked drops the oldest ended sessions until the registry fits its limit.
func (r *Registry) evictLocked() {
	excess := len(r.sessions) - r.limit
	if excess <= 0 {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if excess > 0 && !r.sessions[id].EndedAt.IsZero() {
			delete(r.sessions, id)
			delete(r.items, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}
