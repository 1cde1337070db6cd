// Package eventqueue is an unbounded in-process FIFO of marketplace events
// with many producers and a blocking consumer.
package eventqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-orderfeed/adapters/gojob"
	"github.com/goliatone/go-orderfeed/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// Queue never blocks producers. Pop blocks until an event is available or
// the context ends.
type Queue struct {
	mu     sync.Mutex
	items  []core.Event
	ready  chan struct{}
	pushed atomic.Int64
}

func New() *Queue {
	return &Queue{ready: make(chan struct{})}
}

func (q *Queue) Push(event core.Event) {
	q.mu.Lock()
	q.items = append(q.items, event)
	// wake every waiting consumer and arm a fresh signal
	close(q.ready)
	q.ready = make(chan struct{})
	q.mu.Unlock()
	q.pushed.Add(1)
}

func (q *Queue) Pop(ctx context.Context) (core.Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			event := q.items[0]
			q.items[0] = core.Event{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return event, nil
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return core.Event{}, ctx.Err()
		case <-ready:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pushed reports the total number of events ever pushed.
func (q *Queue) Pushed() int64 {
	return q.pushed.Load()
}

// Enqueue accepts a go-job message carrying an event.
func (q *Queue) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	event, err := gojob.FromExecutionMessage(msg)
	if err != nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("eventqueue: %w", err)
	}
	q.Push(event)
	return queue.EnqueueReceipt{DispatchID: event.ID, EnqueuedAt: time.Now()}, nil
}

// Dequeue blocks like Pop and wraps the event as a go-job delivery.
func (q *Queue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	event, err := q.Pop(ctx)
	if err != nil {
		return nil, err
	}
	return &delivery{queue: q, event: event, message: gojob.ToExecutionMessage(event)}, nil
}

type delivery struct {
	queue   *Queue
	event   core.Event
	message *job.ExecutionMessage
	settled atomic.Bool
}

func (d *delivery) Message() *job.ExecutionMessage {
	return d.message
}

// Ack settles the delivery; the event already left the queue on Dequeue.
func (d *delivery) Ack(context.Context) error {
	d.settled.Store(true)
	return nil
}

// Nack puts the event back at the tail for a retry disposition and drops it
// otherwise. Delay is not supported by the in-process queue.
func (d *delivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if !d.settled.CompareAndSwap(false, true) {
		return fmt.Errorf("eventqueue: delivery already settled")
	}
	if opts.Disposition == queue.NackDispositionRetry {
		d.queue.Push(d.event)
	}
	return nil
}

var (
	_ core.EventSink = (*Queue)(nil)
	_ queue.Enqueuer = (*Queue)(nil)
	_ queue.Dequeuer = (*Queue)(nil)
	_ queue.Delivery = (*delivery)(nil)
)
