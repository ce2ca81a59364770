// Package queue provides the bounded inbound message queue and the fixed
// worker pool that drains it.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Item is one unit of work handed from the transport listener to a worker.
// TraceID is assigned on enqueue purely for log correlation; it never
// appears on the wire.
type Item struct {
	TraceID string
	Payload []byte
	SrcAddr string
}

// Queue is a bounded FIFO. Enqueue never blocks: it fails immediately when
// the queue is full. Dequeue blocks until an item is available or the
// queue is closed.
type Queue struct {
	ch chan Item
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Item, capacity)}
}

// Enqueue stamps item with a trace ID and attempts to add it without
// blocking. It reports false if the queue was full.
func (q *Queue) Enqueue(payload []byte, srcAddr string) bool {
	item := Item{
		TraceID: uuid.New().String(),
		Payload: payload,
		SrcAddr: srcAddr,
	}
	select {
	case q.ch <- item:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an item is available, or until the queue's channel
// is closed, in which case ok is false.
func (q *Queue) Dequeue() (Item, bool) {
	item, ok := <-q.ch
	return item, ok
}

// Chan exposes the underlying channel so callers can select on it alongside
// a context's Done channel.
func (q *Queue) Chan() <-chan Item {
	return q.ch
}

// Close signals workers to stop once the queue drains.
func (q *Queue) Close() {
	close(q.ch)
}

// Pool runs a fixed number of symmetric, stateless worker goroutines that
// each loop dequeue → handle until the queue closes or ctx is canceled.
type Pool struct {
	queue   *Queue
	workers int
	handle  func(Item)
}

// NewPool builds a pool of `workers` goroutines draining q with handle.
func NewPool(q *Queue, workers int, handle func(Item)) *Pool {
	return &Pool{queue: q, workers: workers, handle: handle}
}

// Run starts `workers` worker goroutines and blocks until all of them have
// returned, which happens when ctx is canceled or the queue is closed.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		id := i
		go func() {
			defer wg.Done()
			p.runWorker(ctx, id)
		}()
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.queue.Chan():
			if !ok {
				return
			}
			slog.Debug("[Worker] dequeued message", "worker", id, "trace_id", item.TraceID, "src", item.SrcAddr)
			p.handle(item)
		}
	}
}
