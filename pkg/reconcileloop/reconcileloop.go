/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package reconcileloop implements the periodic re-scan that heals drift
// independent of any live watch event: it lists the current resource set
// on a schedule and injects one ReconcileAction per resource onto the
// same action stream the Watcher feeds (§4.7).
package reconcileloop

import (
	"container/heap"
	"context"
	"time"

	"github.com/go-logr/logr"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/sap/go-operator-core/internal/backoff"
	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/decoder"
	"github.com/sap/go-operator-core/pkg/dispatcher"
	"github.com/sap/go-operator-core/pkg/types"
)

// listActivity is the single backoff.Backoff item/activity pair tracking
// repeated List failures; the Reconciler has exactly one lister, so one
// key suffices.
const listActivity = "list"

// ReconcileIntervalProvider lets a resource's spec opt out of the global
// reconcile period and request its own cadence instead (supplementing the
// distilled spec, grounded on the teacher's RequeueConfiguration). A
// resource whose spec does not implement this, or returns a non-positive
// interval, reconciles on the Reconciler's global period.
type ReconcileIntervalProvider interface {
	GetReconcileInterval() time.Duration
}

type scheduleItem struct {
	key   string
	dueAt time.Time
	index int
}

// schedule is a container/heap min-heap ordered by dueAt, the same shape
// as the standard library's PriorityQueue example, generalized here to
// track one entry per resource under reconciliation.
type schedule []*scheduleItem

func (s schedule) Len() int            { return len(s) }
func (s schedule) Less(i, j int) bool  { return s[i].dueAt.Before(s[j].dueAt) }
func (s schedule) Swap(i, j int)       { s[i], s[j] = s[j], s[i]; s[i].index = i; s[j].index = j }
func (s *schedule) Push(x interface{}) { item := x.(*scheduleItem); item.index = len(*s); *s = append(*s, item) }
func (s *schedule) Pop() interface{} {
	old := *s
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*s = old[:n-1]
	return item
}

// Reconciler periodically lists the live resource set and enqueues a
// ReconcileAction for each resource found, preserving per-namespace FIFO
// because every action still flows through the same Dispatcher as the
// Watcher's events.
type Reconciler[T, U any] struct {
	lister    cluster.Lister
	kind      schema.GroupVersionKind
	scope     cluster.NamespaceScope
	unmarshal decoder.UnmarshalFunc[T, U]
	period    time.Duration

	heap       schedule
	itemsByKey map[string]*scheduleItem

	listBackoff *backoff.Backoff
}

// New creates a Reconciler. period is the default cadence for resources
// whose spec does not opt into its own interval via
// ReconcileIntervalProvider. A repeatedly failing List backs off
// exponentially up to period, rather than retrying at a fixed period
// regardless of how long the lister has been failing.
func New[T, U any](lister cluster.Lister, kind schema.GroupVersionKind, scope cluster.NamespaceScope, unmarshal decoder.UnmarshalFunc[T, U], period time.Duration) *Reconciler[T, U] {
	return &Reconciler[T, U]{
		lister:      lister,
		kind:        kind,
		scope:       scope,
		unmarshal:   unmarshal,
		period:      period,
		itemsByKey:  make(map[string]*scheduleItem),
		listBackoff: backoff.NewBackoff(period),
	}
}

// Run drives the reconcile schedule until ctx is cancelled. It wakes
// exactly when the earliest tracked resource becomes due, which reduces
// to the plain single-period ticker behavior when no observed resource
// opts into its own cadence, since every entry's interval then equals the
// global period.
func (r *Reconciler[T, U]) Run(ctx context.Context, log logr.Logger, d *dispatcher.Dispatcher[T, U]) {
	log = log.WithValues("kind", r.kind.Kind)
	timer := time.NewTimer(r.period)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("reconcile loop stopping")
			return
		case <-timer.C:
			timer.Reset(r.tick(ctx, log, d))
		}
	}
}

func (r *Reconciler[T, U]) tick(ctx context.Context, log logr.Logger, d *dispatcher.Dispatcher[T, U]) time.Duration {
	payloads, err := r.lister.List(ctx, r.kind, r.scope)
	if err != nil {
		wait := r.listBackoff.Next(listActivity, listActivity)
		log.Error(err, "error listing resources for reconcile; skipping this tick", "retryAfter", wait)
		return wait
	}
	r.listBackoff.Forget(listActivity)

	now := time.Now()
	seen := make(map[string]bool, len(payloads))
	wait := r.period

	for _, payload := range payloads {
		a := decoder.DecodeReconcile(payload, r.unmarshal)
		reconcileAction, ok := a.(action.ReconcileAction[T, U])
		if !ok {
			d.Dispatch(ctx, log, a)
			continue
		}

		key := types.ObjectKeyToString(reconcileAction.Resource.Metadata)
		seen[key] = true
		interval := r.intervalFor(reconcileAction.Resource)

		item, tracked := r.itemsByKey[key]
		if !tracked {
			item = &scheduleItem{key: key, dueAt: now}
			r.itemsByKey[key] = item
			heap.Push(&r.heap, item)
		}

		if !item.dueAt.After(now) {
			d.Dispatch(ctx, log, a)
			item.dueAt = now.Add(interval)
			heap.Fix(&r.heap, item.index)
		}

		if until := item.dueAt.Sub(now); until > 0 && until < wait {
			wait = until
		}
	}

	r.forgetStale(seen)
	return wait
}

func (r *Reconciler[T, U]) intervalFor(resource *action.CustomResource[T, U]) time.Duration {
	if provider, ok := any(&resource.Spec).(ReconcileIntervalProvider); ok {
		if interval := provider.GetReconcileInterval(); interval > 0 {
			return interval
		}
	}
	return r.period
}

func (r *Reconciler[T, U]) forgetStale(seen map[string]bool) {
	for key, item := range r.itemsByKey {
		if seen[key] {
			continue
		}
		heap.Remove(&r.heap, item.index)
		delete(r.itemsByKey, key)
	}
}
