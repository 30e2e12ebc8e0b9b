package realtime

import "sync"

// Emitter is a listener registry holding at most one listener per kind. It is safe for
// concurrent use; listeners are invoked without the registry lock held.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[EventKind]Listener
}

// On attaches l to kind, replacing any previous listener.
func (e *Emitter) On(kind EventKind, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[EventKind]Listener)
	}
	e.listeners[kind] = l
}

// Off detaches the listener of kind.
func (e *Emitter) Off(kind EventKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, kind)
}

// Listening reports whether kind has a listener.
func (e *Emitter) Listening(kind EventKind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.listeners[kind]
	return ok
}

// ListenerCount returns the number of attached listeners.
func (e *Emitter) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Emit delivers n to the listener of its kind, if any.
func (e *Emitter) Emit(n Notification) {
	if n == nil {
		return
	}
	e.mu.RLock()
	l := e.listeners[n.Kind()]
	e.mu.RUnlock()
	if l != nil {
		l(n)
	}
}
