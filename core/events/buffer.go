package events

import "sync"

// Buffer holds events emitted during a state transition until the transition
// commits. Flush forwards the queued events to the downstream emitter in
// emission order; Discard drops them when the transition is rolled back.
type Buffer struct {
	mu      sync.Mutex
	pending []Event
	next    Emitter
}

// NewBuffer constructs a buffer that forwards to next on Flush. A nil next
// discards flushed events.
func NewBuffer(next Emitter) *Buffer {
	if next == nil {
		next = NoopEmitter{}
	}
	return &Buffer{next: next}
}

// Emit implements Emitter.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, evt)
	b.mu.Unlock()
}

// Pending returns a copy of the queued events.
func (b *Buffer) Pending() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.pending...)
}

// Flush forwards queued events downstream and clears the queue.
func (b *Buffer) Flush() {
	b.mu.Lock()
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, evt := range queued {
		b.next.Emit(evt)
	}
}

// Discard drops all queued events.
func (b *Buffer) Discard() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}

// Fanout delivers each event to every wrapped emitter.
type Fanout []Emitter

// Emit implements Emitter.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Recorder keeps every event it receives. Tests use it to assert on the
// committed event stream.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}
