package stream

import (
	"context"
	"sync"
)

// Emitter is the per-turn event channel between graph nodes and the
// multiplexer. Nodes obtain it from the context; a turn without an emitter
// (unit tests, batch invocations) silently discards events.
type Emitter struct {
	ch        chan Event
	stop      chan struct{}
	closeOnce sync.Once
	stopOnce  sync.Once
}

func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Emitter{
		ch:   make(chan Event, buffer),
		stop: make(chan struct{}),
	}
}

// Events returns the consumer side of the channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close marks the producer side finished. Safe to call more than once.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() { close(e.ch) })
}

// Abandon releases producers when the consumer goes away mid-stream, so a
// cancelled client cannot wedge the graph goroutine on a full channel.
func (e *Emitter) Abandon() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Emitter) emit(ev Event) {
	select {
	case e.ch <- ev:
	case <-e.stop:
	}
}

// Status emits a status_update event from the given node.
func (e *Emitter) Status(node, text string) {
	e.emit(Event{Type: EventStatusUpdate, Node: node, Payload: StatusPayload{Text: text}})
}

// Thought emits one internal-reasoning token chunk.
func (e *Emitter) Thought(node, delta string) {
	e.emit(Event{Type: EventThoughtDelta, Node: node, Payload: DeltaPayload{Delta: delta}})
}

// Answer emits one user-facing answer token chunk.
func (e *Emitter) Answer(node, delta string) {
	e.emit(Event{Type: EventAnswerDelta, Node: node, Payload: DeltaPayload{Delta: delta}})
}

// ToolStart emits the start of a tool invocation.
func (e *Emitter) ToolStart(node, id, name, input string) {
	e.emit(Event{Type: EventToolStart, Node: node, Payload: ToolPayload{ID: id, Name: name, Input: input, Status: "running"}})
}

// ToolEnd emits the completion of a tool invocation.
func (e *Emitter) ToolEnd(node, id, name, output string) {
	e.emit(Event{Type: EventToolEnd, Node: node, Payload: ToolPayload{ID: id, Name: name, Output: output, Status: "completed"}})
}

// Error emits a top-level failure visible to the client.
func (e *Emitter) Error(message string) {
	e.emit(Event{Type: EventError, Payload: message})
}

type emitterKey struct{}

// NewContext attaches the emitter to the context for the duration of a run.
func NewContext(ctx context.Context, e *Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, e)
}

var discard = func() *Emitter {
	e := NewEmitter(1)
	e.Abandon()
	return e
}()

// FromContext returns the run's emitter, or a discarding emitter when none
// is attached.
func FromContext(ctx context.Context) *Emitter {
	if e, ok := ctx.Value(emitterKey{}).(*Emitter); ok && e != nil {
		return e
	}
	return discard
}
