package caption

import "sync"

// Window is a snapshot of recent audio handed to the worker. Ownership of
// Samples transfers to the worker; the windower trims its own copy
// independently afterwards.
type Window struct {
	Samples []float32
	// StartSeconds is the absolute session time of Samples[0], used to map
	// window-relative segment times back onto the session timeline.
	StartSeconds float64
}

// windowQueue is an unbounded FIFO between the capture path and the worker.
// Push never blocks; the real-time capture callback must not wait on
// transcription. Pop blocks until a window arrives or the queue closes.
type windowQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Window
	closed bool
}

func newWindowQueue() *windowQueue {
	q := &windowQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues w. Windows pushed after Close are dropped.
func (q *windowQueue) Push(w Window) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, w)
	q.cond.Signal()
}

// Pop dequeues the oldest window, blocking while the queue is empty.
// Returns false only once the queue is closed AND drained, so windows
// submitted before Close still run to completion.
func (q *windowQueue) Pop() (Window, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Window{}, false
	}
	w := q.items[0]
	q.items = q.items[1:]
	return w, true
}

// Close stops accepting new windows and releases blocked consumers once the
// backlog drains.
func (q *windowQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
