// Package eventqueue is the bounded hand-off between the Watcher goroutine
// and the CheckHandler goroutine, grounded on mozalert/events/queue.py's
// EventQueue wrapper around queue.Queue.
package eventqueue

import (
	"time"

	"github.com/afrank/checkoperator/internal/event"
)

// defaultCapacity bounds how many undelivered events may queue up before Put
// blocks the watcher; sized generously since CheckHandler drains far faster
// than a cluster can emit change events in practice.
const defaultCapacity = 256

// Queue is a FIFO of decoded events, safe for one producer (the Watcher) and
// one consumer (the CheckHandler).
type Queue struct {
	ch chan event.Event
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{ch: make(chan event.Event, defaultCapacity)}
}

// Put enqueues evt, blocking if the queue is full. This is the Go analogue
// of EventQueue.put: unlike the Python original we do not construct the
// Event here, since decoding already happened in the watcher.
func (q *Queue) Put(evt event.Event) {
	q.ch <- evt
}

// Get waits up to timeout for the next event, returning ok=false on timeout,
// matching EventQueue.get's queue.Empty handling.
func (q *Queue) Get(timeout time.Duration) (evt event.Event, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case evt = <-q.ch:
		return evt, true
	case <-timer.C:
		return event.Event{}, false
	}
}
