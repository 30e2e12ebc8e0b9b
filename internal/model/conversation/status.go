package conversation

import "time"

// StatusLevel 状态栏的展示级别
type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusSuccess StatusLevel = "success"
	StatusError   StatusLevel = "error"
)

// Status is the single-line connection status shown to the user.
type Status struct {
	Message string      `json:"message"`
	Level   StatusLevel `json:"level"`
}

// EventEntry is one line of the diagnostic event log.
type EventEntry struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Controls describes which user actions are currently enabled.
type Controls struct {
	CanConnect    bool `json:"canConnect"`
	CanDisconnect bool `json:"canDisconnect"`
	CanSend       bool `json:"canSend"`
	CanRetry      bool `json:"canRetry"`
}
