/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package queue implements the bounded per-namespace FIFO that sits
// between the Dispatcher (single producer) and an ActionConsumer (single
// consumer). Its shape mirrors client-go's workqueue: a mutex-guarded
// slice-backed FIFO with condition variables for "not empty" and "not full",
// scoped here to one namespace and carrying typed OperatorActions instead
// of workqueue's opaque rate-limited items.
package queue

import (
	"context"
	"sync"

	"github.com/sap/go-operator-core/pkg/action"
)

// NsQueue is a bounded FIFO of pending actions for a single namespace.
// Enqueue is called by the Dispatcher; Dequeue is called by the owning
// ActionConsumer. Both stop blocking when ctx is cancelled or the queue
// is shut down.
type NsQueue[T, U any] struct {
	namespace string
	capacity  int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []action.OperatorAction[T, U]
	closed   bool
}

// New creates an NsQueue for the given namespace with the given bound.
func New[T, U any](namespace string, capacity int) *NsQueue[T, U] {
	q := &NsQueue[T, U]{namespace: namespace, capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Namespace returns the namespace this queue is scoped to.
func (q *NsQueue[T, U]) Namespace() string {
	return q.namespace
}

// Enqueue appends an action, blocking while the queue is at capacity
// until the consumer has made progress (§4.2/§4.4: "suspend until space
// is available; enqueue exactly once" — the spec's normalization of the
// source's ambiguous put-again-then-recurse back-off). It returns an
// error only if ctx is done or the queue has been shut down first.
func (q *NsQueue[T, U]) Enqueue(ctx context.Context, a action.OperatorAction[T, U]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.closed && ctx.Err() == nil {
		q.waitUnderContext(ctx, q.notFull)
	}
	if q.closed {
		return errQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.items = append(q.items, a)
	q.notEmpty.Signal()
	return nil
}

// Dequeue pops the oldest action, blocking until one is available or the
// queue is shut down (ok is false in the latter case).
func (q *NsQueue[T, U]) Dequeue(ctx context.Context) (action.OperatorAction[T, U], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.waitUnderContext(ctx, q.notEmpty)
	}
	if len(q.items) == 0 {
		var zero action.OperatorAction[T, U]
		return zero, false
	}

	a := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return a, true
}

// Len returns the current queue length.
func (q *NsQueue[T, U]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// NonEmpty reports whether the queue currently holds any action.
func (q *NsQueue[T, U]) NonEmpty() bool {
	return q.Len() > 0
}

// Shutdown wakes any blocked Enqueue/Dequeue callers and causes future
// Dequeue calls to drain remaining items, then report ok=false.
func (q *NsQueue[T, U]) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// waitUnderContext waits on cond, but also wakes up promptly when ctx is
// done, by way of a watcher goroutine that broadcasts on cancellation.
// The mutex is held by the caller, matching sync.Cond.Wait's contract.
func (q *NsQueue[T, U]) waitUnderContext(ctx context.Context, cond *sync.Cond) {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		cond.Broadcast()
		close(done)
	})
	cond.Wait()
	if !stop() {
		<-done
	}
}

type queueClosedError struct{}

func (queueClosedError) Error() string { return "queue shut down" }

var errQueueClosed = queueClosedError{}
