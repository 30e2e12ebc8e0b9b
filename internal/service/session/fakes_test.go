package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eureka-labs/eureka/backend/internal/model/agent"
	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
	"github.com/eureka-labs/eureka/backend/internal/model/submission"
	"github.com/eureka-labs/eureka/backend/internal/service/credential"
	"github.com/eureka-labs/eureka/backend/internal/service/realtime"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	issued credential.Issued
	err    error
}

func (s *fakeSource) Issue(context.Context) (credential.Issued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.issued, s.err
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeStream struct {
	mu        sync.Mutex
	listeners map[realtime.EventKind]realtime.Listener
	attached  map[realtime.EventKind]realtime.Listener
	token     string
	sent      []string
	results   map[string]string
	sendErr   error
	openFn    func(ctx context.Context) error
	closes    atomic.Int32
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		listeners: make(map[realtime.EventKind]realtime.Listener),
		attached:  make(map[realtime.EventKind]realtime.Listener),
		results:   make(map[string]string),
	}
}

func (s *fakeStream) On(kind realtime.EventKind, l realtime.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[kind] = l
	s.attached[kind] = l
}

func (s *fakeStream) Off(kind realtime.EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, kind)
}

func (s *fakeStream) Open(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	fn := s.openFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (s *fakeStream) SendMessage(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeStream) SendToolResult(_ context.Context, callID, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[callID] = output
	return nil
}

func (s *fakeStream) Close() error {
	s.closes.Add(1)
	return nil
}

// emit delivers n like the real stream's read loop would.
func (s *fakeStream) emit(n realtime.Notification) {
	s.mu.Lock()
	l := s.listeners[n.Kind()]
	s.mu.Unlock()
	if l != nil {
		l(n)
	}
}

func (s *fakeStream) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *fakeStream) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeStream) result(callID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.results[callID]
	return out, ok
}

// streamQueue hands out prepared streams in order, creating fresh ones when empty.
type streamQueue struct {
	mu      sync.Mutex
	queue   []*fakeStream
	built   []*fakeStream
	profile agent.Profile
}

func (q *streamQueue) factory(profile agent.Profile) realtime.Stream {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.profile = profile
	var s *fakeStream
	if len(q.queue) > 0 {
		s, q.queue = q.queue[0], q.queue[1:]
	} else {
		s = newFakeStream()
	}
	q.built = append(q.built, s)
	return s
}

func (q *streamQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.built)
}

func (q *streamQueue) last() *fakeStream {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.built) == 0 {
		return nil
	}
	return q.built[len(q.built)-1]
}

type fakeSubmitter struct {
	mu       sync.Mutex
	projects []submission.Project
	outcomes []submission.Outcome
	errs     []error
	// release, when set, holds every Submit until it is closed
	release chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, p submission.Project) (submission.Outcome, error) {
	f.mu.Lock()
	i := len(f.projects)
	f.projects = append(f.projects, p)
	var outcome submission.Outcome
	var err error
	if i < len(f.outcomes) {
		outcome = f.outcomes[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return outcome, err
}

func (f *fakeSubmitter) submitted() []submission.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission.Project(nil), f.projects...)
}

type recordingSink struct {
	mu       sync.Mutex
	items    []conversation.Item
	revised  []conversation.Item
	statuses []conversation.Status
	events   []string
	controls []conversation.Controls
}

func (s *recordingSink) AppendItem(item conversation.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
}

func (s *recordingSink) ReviseItem(item conversation.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revised = append(s.revised, item)
}

func (s *recordingSink) Status(status conversation.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) LogEvent(entry conversation.EventEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, entry.Text)
}

func (s *recordingSink) Controls(c conversation.Controls) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = append(s.controls, c)
}

func (s *recordingSink) rendered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.items))
	for i, item := range s.items {
		out[i] = item.String()
	}
	return out
}

func (s *recordingSink) eventLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) lastStatus() conversation.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return conversation.Status{}
	}
	return s.statuses[len(s.statuses)-1]
}

func (s *recordingSink) lastControls() conversation.Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.controls) == 0 {
		return conversation.Controls{}
	}
	return s.controls[len(s.controls)-1]
}
