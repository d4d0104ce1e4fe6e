/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package consumer implements the per-namespace ActionConsumer: the
// single goroutine that serializes all interaction with the user
// controller for one namespace, drains the namespace's NsQueue in order,
// and hands any resulting status to the namespace's StatusFeedback
// writer.
package consumer

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/controller"
	"github.com/sap/go-operator-core/pkg/queue"
	"github.com/sap/go-operator-core/pkg/statusfeedback"
	"github.com/sap/go-operator-core/pkg/types"
)

// Consumer dispatches decoded actions for one namespace to a Controller
// and forwards any resulting status to a statusfeedback.Writer.
type Consumer[T, U any] struct {
	namespace  string
	queue      *queue.NsQueue[T, U]
	controller controller.Controller[T, U]
	feedback   *statusfeedback.Writer[U]
}

// New creates a Consumer for one namespace. The queue and feedback writer
// are exclusively owned by the returned Consumer (§3 Ownership).
func New[T, U any](namespace string, q *queue.NsQueue[T, U], ctrl controller.Controller[T, U], feedback *statusfeedback.Writer[U]) *Consumer[T, U] {
	return &Consumer[T, U]{namespace: namespace, queue: q, controller: ctrl, feedback: feedback}
}

// PutAction enqueues an action for this namespace. It does not return
// until the action is enqueued: the underlying NsQueue blocks producers
// under backpressure rather than dropping or duplicating the action
// (§4.4, resolving the source's ambiguous "log, put-again, recurse"
// back-off to "suspend until space is available; enqueue exactly once").
func (c *Consumer[T, U]) PutAction(ctx context.Context, a action.OperatorAction[T, U]) error {
	return c.queue.Enqueue(ctx, a)
}

// QueueLen returns the current length of this consumer's namespace queue.
func (c *Consumer[T, U]) QueueLen() int {
	return c.queue.Len()
}

// Consume is the Consumer's run loop. It terminates on a fatal
// ClosedStream failure, or when ctx is cancelled or the queue is shut
// down with nothing left in it, returning the consumer-exit code; any
// other decode failure or controller error is logged and the loop
// continues.
func (c *Consumer[T, U]) Consume(ctx context.Context, log logr.Logger) controller.ExitCode {
	log = log.WithValues("namespace", c.namespace)
	for {
		a, ok := c.queue.Dequeue(ctx)
		if !ok {
			// Reached when ctx is cancelled or the queue has been shut
			// down and drained; treat it the same as an observed
			// ClosedStream.
			c.feedback.Stop()
			return controller.ExitConsumer
		}

		switch a := a.(type) {
		case action.ServerAction[T, U]:
			c.dispatchServer(ctx, log, a)
		case action.ReconcileAction[T, U]:
			c.dispatchReconcile(ctx, log, a)
		case action.DecodeFailureAction[T, U]:
			if exit, done := c.dispatchFailure(log, a.Failure); done {
				return exit
			}
		}
	}
}

func (c *Consumer[T, U]) dispatchServer(ctx context.Context, log logr.Logger, a action.ServerAction[T, U]) {
	switch a.Verb {
	case action.Added:
		status, err := c.callRecovered(ctx, log, "onAdd", a.Resource, c.controller.OnAdd)
		c.maybeSubmitStatus(a.Resource, status, err)
	case action.Modified:
		status, err := c.callRecovered(ctx, log, "onModify", a.Resource, c.controller.OnModify)
		c.maybeSubmitStatus(a.Resource, status, err)
	case action.Deleted:
		c.callDeleteRecovered(ctx, log, a.Resource)
	case action.Error:
		log.Info("watch reported an error event; ignoring")
	}
}

func (c *Consumer[T, U]) dispatchReconcile(ctx context.Context, log logr.Logger, a action.ReconcileAction[T, U]) {
	status, err := c.callRecovered(ctx, log, "reconcile", a.Resource, c.controller.Reconcile)
	c.maybeSubmitStatus(a.Resource, status, err)
}

func (c *Consumer[T, U]) dispatchFailure(log logr.Logger, failure action.DecodeFailure) (controller.ExitCode, bool) {
	if closed, ok := failure.(action.ClosedStreamFailure); ok {
		log.Info("watch stream closed; consumer stopping", "cause", errString(closed.Cause))
		c.feedback.Stop()
		return controller.ExitConsumer, true
	}
	log.Error(failure, "error decoding action; skipping")
	return 0, false
}

// callRecovered invokes one of the controller's resource-returning
// callbacks, recovering any panic so a single misbehaving callback never
// terminates the consumer (§4.4 error policy). A non-nil error from the
// callback itself is treated identically to a recovered panic.
func (c *Consumer[T, U]) callRecovered(ctx context.Context, log logr.Logger, name string, r *action.CustomResource[T, U], fn func(context.Context, *action.CustomResource[T, U]) (*U, error)) (status *U, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(fmt.Errorf("panic in %s", name), "controller callback panicked; action skipped", "panic", rec, "resource", resourceKey(r))
			status, err = nil, nil
		}
	}()
	status, err = fn(ctx, r)
	if err != nil {
		log.Error(err, "controller callback returned error; no status emitted for this action", "callback", name, "resource", resourceKey(r))
		return nil, err
	}
	return status, nil
}

func (c *Consumer[T, U]) callDeleteRecovered(ctx context.Context, log logr.Logger, r *action.CustomResource[T, U]) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(fmt.Errorf("panic in onDelete"), "controller callback panicked; action skipped", "panic", rec, "resource", resourceKey(r))
		}
	}()
	if err := c.controller.OnDelete(ctx, r); err != nil {
		log.Error(err, "controller callback returned error", "callback", "onDelete", "resource", resourceKey(r))
	}
}

// maybeSubmitStatus implements the status update rule (§4.4): a write
// happens iff the callback succeeded and returned a non-empty status.
// The hand-off to the feedback writer happens before Consume dequeues
// the next action, satisfying the ordering guarantee that all status
// updates for action k precede dispatch of action k+1.
func (c *Consumer[T, U]) maybeSubmitStatus(r *action.CustomResource[T, U], status *U, err error) {
	if err != nil || status == nil {
		return
	}
	c.feedback.Submit(action.StatusUpdate[U]{Metadata: r.Metadata, NewStatus: *status})
}

func resourceKey[T, U any](r *action.CustomResource[T, U]) string {
	if r == nil {
		return ""
	}
	return types.ObjectKeyToString(r.Metadata)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
