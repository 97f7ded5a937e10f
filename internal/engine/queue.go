package engine

import "sync"

// opQueue is a thread-safe FIFO queue of pending submissions.
//
// The queue is unbounded so that a burst of concurrent callers never
// blocks inside Submit while holding nothing; admission ordering is the
// order Enqueue acquired the lock, which becomes the global total order
// of operations.
//
// A buffered signal channel (size 1) coalesces wakeups for the Run loop
// and enables context-aware waiting.
type opQueue struct {
	mu      sync.Mutex
	pending []submission
	closed  bool
	signal  chan struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{
		pending: make([]submission, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a submission to the back of the queue.
// Thread-safe. Returns false if the queue is closed.
func (q *opQueue) Enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.pending = append(q.pending, s)

	// Non-blocking send: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front submission without blocking.
// Returns (zero, false) if the queue is empty.
func (q *opQueue) TryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return submission{}, false
	}

	s := q.pending[0]

	// Nil out the slot so the envelope's blobs and reply channel are
	// collectable before the backing array is reallocated.
	q.pending[0] = submission{}

	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}

	return s, true
}

// Wait returns the signal channel for select-based waiting.
// The channel closes when the queue closes, waking all waiters.
func (q *opQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending submissions.
func (q *opQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close marks the queue closed and wakes all waiters.
// Pending submissions stay dequeueable so the Run loop can drain them.
func (q *opQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether the queue has been closed.
func (q *opQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
