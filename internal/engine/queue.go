package engine

import (
	"sync"

	"github.com/roach88/geonudge/internal/model"
)

// sampleQueue is a thread-safe FIFO queue of location samples.
//
// Every subscription pump and the HTTP intake enqueue here; the engine's Run
// loop is the only consumer, which is what serialises all engine mutation.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type sampleQueue struct {
	mu      sync.Mutex
	samples []model.Sample
	closed  bool
	signal  chan struct{} // Signals sample availability (buffered, size 1)
}

func newSampleQueue() *sampleQueue {
	return &sampleQueue{
		samples: make([]model.Sample, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a sample to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *sampleQueue) Enqueue(s model.Sample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.samples = append(q.samples, s)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (model.Sample{}, false) if the queue is empty.
func (q *sampleQueue) TryDequeue() (model.Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.samples) == 0 {
		return model.Sample{}, false
	}

	s := q.samples[0]
	q.samples[0] = model.Sample{}

	if len(q.samples) == 1 {
		q.samples = q.samples[:0]
	} else {
		q.samples = q.samples[1:]
	}

	return s, true
}

// Wait returns a channel that signals when samples may be available.
// The channel is closed once the queue is closed.
func (q *sampleQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called.
func (q *sampleQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *sampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.samples)
}

// Close signals that no more samples will be enqueued and wakes waiters.
func (q *sampleQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
