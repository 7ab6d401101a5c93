package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a session event.
type EventType string

const (
	EventState      EventType = "state"
	EventTranscript EventType = "transcript"
	EventError      EventType = "error"
	EventCapture    EventType = "capture"
)

// Event is delivered to the OnEvent handler in the order it occurred.
type Event struct {
	Type     EventType `json:"type"`
	Time     time.Time `json:"time"`
	State    State     `json:"state"`
	Previous State     `json:"previous"`
	Entry    *Entry    `json:"entry,omitempty"`
	Error    string    `json:"error,omitempty"`
	Active   bool      `json:"active,omitempty"`
}

// eventQueue is an unbounded FIFO drained by a single dispatcher, so
// publishers never block and handlers never run under session locks.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	signal chan struct{}
	done   chan struct{}

	// handling is set while a handler runs on the dispatcher.
	handling atomic.Bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *eventQueue) push(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.wake()
}

func (q *eventQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run(handle func(Event)) {
	defer close(q.done)
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range items {
			q.handling.Store(true)
			handle(e)
			q.handling.Store(false)
		}
		if len(items) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.signal
	}
}

// close stops accepting events and waits for queued ones to be handled.
// While a handler is running it does not wait: the caller may be that
// handler, and the dispatcher drains the rest once the handler returns.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
	if q.handling.Load() {
		return
	}
	<-q.done
}
