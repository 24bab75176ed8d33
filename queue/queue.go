package queue

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Enqueue and Dequeue once the queue has been closed
// with Close.
var ErrClosed = errors.New("queue: closed")

// Queue is a concurrency-safe FIFO queue. A queue created with a positive
// capacity blocks Enqueue while full; otherwise it grows without bound.
// Dequeue blocks while the queue is empty.
//
// CloseWrite marks the end of the stream: pending items can still be
// dequeued, after which Dequeue returns io.EOF. Close drops pending items
// and unblocks every waiter with ErrClosed.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items      []T
	capacity   int
	closeWrite bool
	closed     bool
}

// New creates and returns a new Queue instance. A capacity <= 0 means unbounded.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{capacity: capacity}
	if capacity > 0 {
		q.items = make([]T, 0, capacity)
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds an element to the end of the queue, waiting for space if the
// queue is bounded and full.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.capacity > 0 && len(q.items) >= q.capacity && !q.closed && !q.closeWrite {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	if q.closeWrite {
		return errors.Wrap(io.ErrClosedPipe, "queue: enqueue after end of stream")
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the front element of the queue, waiting until
// one is available. It returns io.EOF once CloseWrite was called and every
// pending element was consumed.
func (q *Queue[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	for len(q.items) == 0 && !q.closed && !q.closeWrite {
		q.notEmpty.Wait()
	}
	if q.closed {
		return zero, ErrClosed
	}
	if len(q.items) == 0 {
		return zero, io.EOF
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, nil
}

// CloseWrite signals that no more elements will be enqueued. Calling it more
// than once has no further effect.
func (q *Queue[T]) CloseWrite() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeWrite {
		return
	}
	q.closeWrite = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Close discards pending elements and wakes every blocked caller.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
