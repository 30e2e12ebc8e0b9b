package realtime

import "encoding/json"

// Server event types consumed from the upstream realtime stream.
const (
	EventSessionCreated         = "session.created"
	EventSessionUpdated         = "session.updated"
	EventItemCreated            = "conversation.item.created"
	EventItemAdded              = "conversation.item.added"
	EventItemDone               = "conversation.item.done"
	EventInputTranscriptionDone = "conversation.item.input_audio_transcription.completed"
	EventResponseDone           = "response.done"
	EventError                  = "error"
)

// Content part types.
const (
	PartInputText   = "input_text"
	PartText        = "text"
	PartOutputText  = "output_text"
	PartInputAudio  = "input_audio"
	PartAudio       = "audio"
	PartOutputAudio = "output_audio"
)

// Item types and roles.
const (
	ItemMessage            = "message"
	ItemFunctionCall       = "function_call"
	ItemFunctionCallOutput = "function_call_output"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ContentPart 会话条目中的一个内容片段
type ContentPart struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
}

// Item is one entry of the upstream conversation history.
type Item struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Status    string        `json:"status,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

// Clone returns a deep copy so snapshots handed to listeners never alias live history.
func (i Item) Clone() Item {
	out := i
	if i.Content != nil {
		out.Content = make([]ContentPart, len(i.Content))
		for idx, part := range i.Content {
			if part.Transcript != nil {
				t := *part.Transcript
				part.Transcript = &t
			}
			out.Content[idx] = part
		}
	}
	return out
}

// ErrorDetail mirrors the upstream error object.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// Response is the payload of response.done.
type Response struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Output []Item `json:"output,omitempty"`
}

// ServerEvent is the decoded envelope of every inbound frame.
type ServerEvent struct {
	Type         string       `json:"type"`
	EventID      string       `json:"event_id,omitempty"`
	Item         *Item        `json:"item,omitempty"`
	ItemID       string       `json:"item_id,omitempty"`
	ContentIndex int          `json:"content_index,omitempty"`
	Transcript   string       `json:"transcript,omitempty"`
	Response     *Response    `json:"response,omitempty"`
	Error        *ErrorDetail `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// DecodeServerEvent parses one text frame, keeping the raw bytes for transport listeners.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, err
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	return ev, nil
}
