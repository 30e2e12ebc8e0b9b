package conversation

import "time"

// Session 一次实时会话的元数据
type Session struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}

// Transcript is the rendered dialogue of one session.
type Transcript struct {
	Session Session `json:"session"`
	Items   []Item  `json:"items"`
}
