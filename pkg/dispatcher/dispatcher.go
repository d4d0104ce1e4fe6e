/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher implements the routing layer between the decoded
// action stream and the per-namespace ActionConsumers: it maintains the
// namespace -> consumer mapping, lazily and idempotently starting a
// consumer (and its StatusFeedback writer) the first time a namespace is
// observed, and broadcasts a fatal ClosedStream failure to every
// consumer it has ever created.
package dispatcher

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/sap/go-operator-core/internal/metrics"
	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/consumer"
	"github.com/sap/go-operator-core/pkg/controller"
	"github.com/sap/go-operator-core/pkg/statusfeedback"
)

// NewConsumerFunc builds the Consumer and StatusFeedback writer for a
// newly observed namespace. The Dispatcher calls it at most once per
// namespace per pipeline run.
type NewConsumerFunc[T, U any] func(namespace string) (*consumer.Consumer[T, U], *statusfeedback.Writer[U])

type namespaceConsumer[T, U any] struct {
	consumer *consumer.Consumer[T, U]
	writer   *statusfeedback.Writer[U]
}

// Dispatcher owns the namespace -> ActionConsumer map for one pipeline
// run (§3 Ownership). It is safe for concurrent use: the Watcher and the
// Reconciler both call Dispatch from their own goroutines.
type Dispatcher[T, U any] struct {
	mu          sync.Mutex
	consumers   map[string]*namespaceConsumer[T, U]
	newConsumer NewConsumerFunc[T, U]

	wg       sync.WaitGroup
	exitOnce sync.Once
	exitCode controller.ExitCode
	exitCh   chan struct{}
}

// New creates an empty Dispatcher. Consumers are created on demand via
// newConsumer as namespaces are first observed.
func New[T, U any](newConsumer NewConsumerFunc[T, U]) *Dispatcher[T, U] {
	return &Dispatcher[T, U]{
		consumers:   make(map[string]*namespaceConsumer[T, U]),
		newConsumer: newConsumer,
		exitCh:      make(chan struct{}),
	}
}

// Dispatch routes a decoded action to the consumer for its target
// namespace, creating that consumer if this is the first action observed
// for it. A ClosedStreamFailure has no single target namespace and is
// broadcast to every consumer created so far (§4.3 step 1).
func (d *Dispatcher[T, U]) Dispatch(ctx context.Context, log logr.Logger, a action.OperatorAction[T, U]) {
	if failure, ok := a.(action.DecodeFailureAction[T, U]); ok {
		if _, closed := failure.Failure.(action.ClosedStreamFailure); closed {
			d.broadcast(ctx, log, a)
			return
		}
	}

	namespace := namespaceFor(a)
	nc := d.consumerFor(ctx, log, namespace)
	if err := nc.consumer.PutAction(ctx, a); err != nil {
		log.Error(err, "failed to enqueue action", "namespace", namespace)
		return
	}
	metrics.ActionsTotal.WithLabelValues(namespace, verbOf(a)).Inc()
	metrics.QueueLength.WithLabelValues(namespace).Set(float64(nc.consumer.QueueLen()))
}

// verbOf returns the metrics label for an action's kind: the watch verb
// for a ServerAction, "reconcile" for a ReconcileAction, or "decode_failure"
// for anything else (a ClosedStreamFailure never reaches here, since
// Dispatch routes it through broadcast before this point).
func verbOf[T, U any](a action.OperatorAction[T, U]) string {
	switch v := a.(type) {
	case action.ServerAction[T, U]:
		return string(v.Verb)
	case action.ReconcileAction[T, U]:
		return "reconcile"
	default:
		return "decode_failure"
	}
}

// namespaceFor extracts the target namespace of an action. Cluster-scoped
// resources, and any action whose resource is not resolvable (an Error
// watch event, or a decode failure with no parsed resource), map to the
// synthetic namespace key "".
func namespaceFor[T, U any](a action.OperatorAction[T, U]) string {
	switch v := a.(type) {
	case action.ServerAction[T, U]:
		if v.Resource != nil {
			return v.Resource.Metadata.Namespace
		}
	case action.ReconcileAction[T, U]:
		if v.Resource != nil {
			return v.Resource.Metadata.Namespace
		}
	}
	return ""
}

// consumerFor looks up or lazily creates the consumer for namespace,
// starting its Consume and StatusFeedback Run loops exactly once (§4.3
// tie-break: idempotent creation under races).
func (d *Dispatcher[T, U]) consumerFor(ctx context.Context, log logr.Logger, namespace string) *namespaceConsumer[T, U] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if nc, ok := d.consumers[namespace]; ok {
		return nc
	}

	c, w := d.newConsumer(namespace)
	nc := &namespaceConsumer[T, U]{consumer: c, writer: w}
	d.consumers[namespace] = nc

	nsLog := log.WithValues("namespace", namespace)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		go w.Run(ctx, nsLog)
		exit := c.Consume(ctx, nsLog)
		d.reportExit(exit)
	}()

	return nc
}

// broadcast hands a fatal failure to every consumer created so far. If no
// consumer has ever been created (the stream closed before any event was
// routed), the Dispatcher reports its own exit directly so the pipeline
// does not hang waiting for a consumer that never started.
func (d *Dispatcher[T, U]) broadcast(ctx context.Context, log logr.Logger, a action.OperatorAction[T, U]) {
	d.mu.Lock()
	targets := make([]*namespaceConsumer[T, U], 0, len(d.consumers))
	for _, nc := range d.consumers {
		targets = append(targets, nc)
	}
	d.mu.Unlock()

	if len(targets) == 0 {
		d.reportExit(controller.ExitConsumer)
		return
	}
	for _, nc := range targets {
		if err := nc.consumer.PutAction(ctx, a); err != nil {
			log.Error(err, "failed to broadcast closed-stream failure to consumer")
		}
	}
}

func (d *Dispatcher[T, U]) reportExit(code controller.ExitCode) {
	d.exitOnce.Do(func() {
		d.exitCode = code
		close(d.exitCh)
	})
}

// Wait blocks until every consumer this Dispatcher has started has
// exited, then returns the exit code of whichever exited first (they
// agree in practice, since ClosedStream is broadcast to all of them
// together).
func (d *Dispatcher[T, U]) Wait() controller.ExitCode {
	<-d.exitCh
	d.wg.Wait()
	return d.exitCode
}
