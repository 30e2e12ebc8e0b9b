package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
)

// terminalSink prints transcript lines and status changes to a terminal.
type terminalSink struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func newTerminalSink(out io.Writer, verbose bool) *terminalSink {
	return &terminalSink{out: out, verbose: verbose}
}

func (s *terminalSink) AppendItem(item conversation.Item) {
	s.printf("%s\n", item)
}

func (s *terminalSink) ReviseItem(item conversation.Item) {
	s.printf("(corregido) %s\n", item)
}

func (s *terminalSink) Status(status conversation.Status) {
	s.printf("[%s] %s\n", status.Level, status.Message)
}

func (s *terminalSink) LogEvent(entry conversation.EventEntry) {
	if !s.verbose {
		return
	}
	s.printf("  %s %s\n", entry.At.Format("15:04:05"), entry.Text)
}

func (s *terminalSink) Controls(controls conversation.Controls) {
	if !s.verbose {
		return
	}
	s.printf("  controls connect=%t disconnect=%t send=%t retry=%t\n",
		controls.CanConnect, controls.CanDisconnect, controls.CanSend, controls.CanRetry)
}

func (s *terminalSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
