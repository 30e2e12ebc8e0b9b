package dedup

import (
	"strings"
	"sync"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
)

type contentKey struct {
	role     conversation.Role
	text     string
	modality conversation.Modality
}

// MessageFilter suppresses repeated transcript messages for the lifetime of a session.
// A message is considered seen when either its content key (role, exact text, modality)
// or its upstream item id has been recorded before.
type MessageFilter struct {
	mu      sync.Mutex
	content map[contentKey]struct{}
	ids     map[string]struct{}
}

// NewMessageFilter returns an empty filter.
func NewMessageFilter() *MessageFilter {
	return &MessageFilter{
		content: make(map[contentKey]struct{}),
		ids:     make(map[string]struct{}),
	}
}

// ShouldSuppress reports whether the message must not be rendered. Blank text is always
// suppressed and never recorded. Otherwise the message is suppressed when any of its keys
// was seen; a fresh message has all of its keys recorded.
func (f *MessageFilter) ShouldSuppress(role conversation.Role, text string, modality conversation.Modality, id string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}

	key := contentKey{role: role, text: text, modality: modality}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.content[key]; ok {
		return true
	}
	if id != "" {
		if _, ok := f.ids[id]; ok {
			return true
		}
	}

	f.content[key] = struct{}{}
	if id != "" {
		f.ids[id] = struct{}{}
	}
	return false
}

// Supersede records a new text for an identifier that was already seen. It returns true
// only when the identifier is known and the new content key is not, so a revision of an
// already-rendered item happens at most once per distinct text.
func (f *MessageFilter) Supersede(id string, role conversation.Role, text string, modality conversation.Modality) bool {
	if id == "" || strings.TrimSpace(text) == "" {
		return false
	}

	key := contentKey{role: role, text: text, modality: modality}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ids[id]; !ok {
		return false
	}
	if _, ok := f.content[key]; ok {
		return false
	}
	f.content[key] = struct{}{}
	return true
}

// Len returns the number of recorded keys of both kinds.
func (f *MessageFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.content) + len(f.ids)
}

// Reset forgets every recorded key.
func (f *MessageFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = make(map[contentKey]struct{})
	f.ids = make(map[string]struct{})
}
