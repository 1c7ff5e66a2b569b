// Package queue implements the bounded, multi-producer/multi-consumer
// inbox the worker pool drains. Enqueue blocks while the queue is
// full; Dequeue blocks while it is empty; Terminate wakes every
// blocked caller and makes the queue permanently closed.
package queue

import (
	"errors"
	"sync"

	"github.com/agora-project/agorad/internal/message"
)

// ErrTerminated is returned by Enqueue and Dequeue once the queue has
// been terminated.
var ErrTerminated = errors.New("queue: terminated")

// Queue is a bounded FIFO of messages.
type Queue struct {
	mu         sync.Mutex
	notEmpty   *sync.Cond
	notFull    *sync.Cond
	items      []message.Message
	capacity   int
	terminated bool
}

// New creates a queue that holds at most capacity items before
// Enqueue starts blocking.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends m, blocking while the queue is full. It returns
// ErrTerminated without enqueueing if the queue has already been
// terminated.
func (q *Queue) Enqueue(m message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.capacity && !q.terminated {
		q.notFull.Wait()
	}
	if q.terminated {
		return ErrTerminated
	}
	q.items = append(q.items, m)
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the oldest message, blocking while the
// queue is empty. It returns ErrTerminated once the queue has been
// drained and terminated.
func (q *Queue) Dequeue() (message.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.terminated {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 && q.terminated {
		return message.Message{}, ErrTerminated
	}
	m := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return m, nil
}

// Len reports the number of items currently queued, for diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Terminate idempotently marks the queue closed and wakes every
// blocked Enqueue/Dequeue caller. Items already queued remain
// available to Dequeue until drained.
func (q *Queue) Terminate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.terminated {
		return
	}
	q.terminated = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
