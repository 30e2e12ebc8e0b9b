package realtime

import (
	"context"
	"errors"

	"github.com/eureka-labs/eureka/backend/internal/model/agent"
)

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("realtime stream is closed")

// ErrNotOpen is returned when sending on a stream that was never opened.
var ErrNotOpen = errors.New("realtime stream is not open")

// Stream is the handle of one upstream realtime conversation.
type Stream interface {
	On(kind EventKind, l Listener)
	Off(kind EventKind)
	Open(ctx context.Context, token string) error
	SendMessage(ctx context.Context, text string) error
	SendToolResult(ctx context.Context, callID, output string) error
	Close() error
}

// Factory builds a stream bound to an agent profile.
type Factory func(profile agent.Profile) Stream
