package session

import "errors"

// State is the lifecycle state of a controller's upstream session.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateActive        State = "active"
	StateDisconnecting State = "disconnecting"
	StateDisconnected  State = "disconnected"
	StateFailed        State = "failed"
)

func (s State) canConnect() bool {
	return s == StateIdle || s == StateFailed || s == StateDisconnected
}

func (s State) terminal() bool {
	return s == StateIdle || s == StateFailed || s == StateDisconnected
}

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrUnknownAgent is returned by Connect for an agent id with no profile.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNoPendingSubmission is returned by RetrySubmission when nothing failed.
	ErrNoPendingSubmission = errors.New("no failed submission to retry")
	// ErrShutdown is returned by operations on a controller that was shut down.
	ErrShutdown = errors.New("session controller is shut down")
	// ErrAborted is returned by Connect when the attempt was superseded while in flight.
	ErrAborted = errors.New("connect attempt aborted")

	errRemoteClosed = errors.New("upstream closed the stream while connecting")
)
