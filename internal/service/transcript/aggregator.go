// Package transcript turns the overlapping notification channels of a realtime stream
// into one ordered, duplicate-free list of dialogue items.
package transcript

import (
	"strings"
	"time"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
	realtimemodel "github.com/eureka-labs/eureka/backend/internal/model/realtime"
	"github.com/eureka-labs/eureka/backend/internal/service/dedup"
)

// UserSpeaker 用户发言的展示名
const UserSpeaker = "Tú"

// Sink receives rendered items in arrival order.
type Sink interface {
	AppendItem(item conversation.Item)
	ReviseItem(item conversation.Item)
}

// Options configure an Aggregator.
type Options struct {
	AgentName string
	Now       func() time.Time
}

// Aggregator normalizes agent turns, history additions, history snapshots and
// transcription events into conversation items. It is not safe for concurrent use;
// the session controller serializes every call.
type Aggregator struct {
	sink      Sink
	filter    *dedup.MessageFilter
	agentName string
	now       func() time.Time

	seq      int
	rendered map[string]int
	items    []conversation.Item
}

// NewAggregator creates an aggregator writing to sink and deduplicating through filter.
func NewAggregator(sink Sink, filter *dedup.MessageFilter, opts Options) *Aggregator {
	if filter == nil {
		filter = dedup.NewMessageFilter()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AgentName == "" {
		opts.AgentName = "Agente"
	}
	return &Aggregator{
		sink:      sink,
		filter:    filter,
		agentName: opts.AgentName,
		now:       opts.Now,
		rendered:  make(map[string]int),
	}
}

// OnAgentEnd renders a completed agent turn.
func (a *Aggregator) OnAgentEnd(text string) {
	a.render(conversation.RoleAgent, text, conversation.ModalityVoice, "")
}

// OnHistoryAdded renders a newly appended user item when it already carries content.
func (a *Aggregator) OnHistoryAdded(item realtimemodel.Item) {
	a.renderUserItem(item)
}

// OnHistoryUpdated walks a full history snapshot in order.
func (a *Aggregator) OnHistoryUpdated(history []realtimemodel.Item) {
	for _, item := range history {
		a.renderUserItem(item)
	}
}

// OnTransport handles raw events. Only completed input transcriptions are rendered; they
// are authoritative and revise an item already shown under the same id.
func (a *Aggregator) OnTransport(ev realtimemodel.ServerEvent) {
	if ev.Type != realtimemodel.EventInputTranscriptionDone {
		return
	}
	if strings.TrimSpace(ev.Transcript) == "" {
		return
	}
	if a.render(conversation.RoleUser, ev.Transcript, conversation.ModalityVoice, ev.ItemID) {
		return
	}
	if a.filter.Supersede(ev.ItemID, conversation.RoleUser, ev.Transcript, conversation.ModalityVoice) {
		a.revise(ev.ItemID, ev.Transcript)
	}
}

// EchoLocal renders an outbound typed message before it is sent.
func (a *Aggregator) EchoLocal(text string) {
	a.render(conversation.RoleUser, text, conversation.ModalityText, "")
}

// Items returns a copy of the rendered items.
func (a *Aggregator) Items() []conversation.Item {
	out := make([]conversation.Item, len(a.items))
	copy(out, a.items)
	return out
}

// Reset forgets rendered items and recorded keys.
func (a *Aggregator) Reset() {
	a.filter.Reset()
	a.seq = 0
	a.items = nil
	a.rendered = make(map[string]int)
}

func (a *Aggregator) renderUserItem(item realtimemodel.Item) {
	if item.Role != realtimemodel.RoleUser {
		return
	}
	text, modality, ok := ExtractUserContent(item)
	if !ok {
		return
	}
	a.render(conversation.RoleUser, text, modality, item.ID)
}

// render appends an item unless the filter suppresses it. It reports whether it rendered.
func (a *Aggregator) render(role conversation.Role, text string, modality conversation.Modality, id string) bool {
	if a.filter.ShouldSuppress(role, text, modality, id) {
		return false
	}

	a.seq++
	item := conversation.Item{
		Seq:        a.seq,
		ID:         id,
		Role:       role,
		Speaker:    a.speaker(role),
		Text:       text,
		Modality:   modality,
		ReceivedAt: a.now(),
	}
	a.items = append(a.items, item)
	if id != "" {
		a.rendered[id] = len(a.items) - 1
	}
	if a.sink != nil {
		a.sink.AppendItem(item)
	}
	return true
}

func (a *Aggregator) revise(id, text string) {
	idx, ok := a.rendered[id]
	if !ok {
		return
	}
	item := a.items[idx]
	item.Text = text
	item.RevisedAt = a.now()
	a.items[idx] = item
	if a.sink != nil {
		a.sink.ReviseItem(item)
	}
}

func (a *Aggregator) speaker(role conversation.Role) string {
	if role == conversation.RoleAgent {
		return a.agentName
	}
	return UserSpeaker
}

// ExtractUserContent picks the displayable content of a user item: the first non-blank
// explicit text part, else the first audio part whose transcript is resolved.
func ExtractUserContent(item realtimemodel.Item) (string, conversation.Modality, bool) {
	for _, part := range item.Content {
		if part.Type != realtimemodel.PartInputText && part.Type != realtimemodel.PartText {
			continue
		}
		if strings.TrimSpace(part.Text) != "" {
			return part.Text, conversation.ModalityText, true
		}
	}
	for _, part := range item.Content {
		if part.Type != realtimemodel.PartInputAudio {
			continue
		}
		if part.Transcript != nil && strings.TrimSpace(*part.Transcript) != "" {
			return *part.Transcript, conversation.ModalityVoice, true
		}
	}
	return "", "", false
}
