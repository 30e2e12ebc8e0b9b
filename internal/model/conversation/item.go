package conversation

import (
	"fmt"
	"time"
)

// Role identifies who produced an utterance.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Modality records how an utterance entered the conversation.
type Modality string

const (
	ModalityVoice Modality = "voice"
	ModalityText  Modality = "text"
)

// Label 返回界面上展示的模态标签
func (m Modality) Label() string {
	if m == ModalityText {
		return "texto"
	}
	return "voz"
}

// Item is one displayed line of dialogue.
type Item struct {
	Seq        int       `json:"seq"`
	ID         string    `json:"itemId,omitempty"`
	Role       Role      `json:"role"`
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	Modality   Modality  `json:"modality"`
	ReceivedAt time.Time `json:"receivedAt"`
	RevisedAt  time.Time `json:"revisedAt,omitempty"`
}

// String renders the item the way the transcript panel shows it, e.g. "Tú: hola".
func (i Item) String() string {
	return fmt.Sprintf("%s: %s", i.Speaker, i.Text)
}
