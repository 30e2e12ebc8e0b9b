package realtime

// Client event types sent to the upstream realtime stream.
const (
	ClientSessionUpdate  = "session.update"
	ClientItemCreate     = "conversation.item.create"
	ClientResponseCreate = "response.create"
)

// ToolDefinition 会话可调用的函数工具
type ToolDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Transcription configures input audio transcription.
type Transcription struct {
	Model string `json:"model"`
}

// AudioInput configures inbound audio handling.
type AudioInput struct {
	Transcription *Transcription `json:"transcription,omitempty"`
}

// AudioOutput configures synthesized speech.
type AudioOutput struct {
	Voice string `json:"voice,omitempty"`
}

// Audio groups input and output audio settings.
type Audio struct {
	Input  *AudioInput  `json:"input,omitempty"`
	Output *AudioOutput `json:"output,omitempty"`
}

// SessionConfig is the body of a session.update event.
type SessionConfig struct {
	Type         string           `json:"type"`
	Model        string           `json:"model,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	Audio        *Audio           `json:"audio,omitempty"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// ClientEvent is the envelope of every outbound frame.
type ClientEvent struct {
	Type    string         `json:"type"`
	Session *SessionConfig `json:"session,omitempty"`
	Item    *Item          `json:"item,omitempty"`
}

// UserTextMessage builds the conversation.item.create event for a typed message.
func UserTextMessage(text string) ClientEvent {
	return ClientEvent{
		Type: ClientItemCreate,
		Item: &Item{
			Type:    ItemMessage,
			Role:    RoleUser,
			Content: []ContentPart{{Type: PartInputText, Text: text}},
		},
	}
}

// FunctionCallOutput builds the conversation.item.create event answering a tool call.
func FunctionCallOutput(callID, output string) ClientEvent {
	return ClientEvent{
		Type: ClientItemCreate,
		Item: &Item{Type: ItemFunctionCallOutput, CallID: callID, Output: output},
	}
}

// ClientSecret models the client_secrets response. The full payload is relayed verbatim;
// only the token value is read here.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}
