/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package statusfeedback implements the single-producer, single-consumer
// serialized writer that turns controller-produced StatusUpdates into
// cluster status writes, one at a time, in submission order.
package statusfeedback

import (
	"context"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/record"

	"github.com/sap/go-operator-core/internal/events"
	"github.com/sap/go-operator-core/internal/metrics"
	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/types"
)

// MarshalFunc encodes a controller-produced status value into the raw
// payload cluster.StatusUpdater expects. Supplying this is the caller's
// responsibility, mirroring the Decoder's exclusion of the inverse
// operation.
type MarshalFunc[U any] func(U) ([]byte, error)

type item[U any] struct {
	update      *action.StatusUpdate[U]
	isTerminate bool
}

// Writer is the StatusFeedback writer owned by a single ActionConsumer.
// Submit hands off a StatusUpdate without waiting for cluster
// confirmation (§4.4's "fire-and-forward" rule); Run drains the queue
// until Stop is observed.
type Writer[U any] struct {
	namespace string
	kind      schema.GroupVersionKind
	updater   cluster.StatusUpdater
	marshal   MarshalFunc[U]
	recorder  *events.DeduplicatingRecorder

	items chan item[U]
}

// New creates a Writer for one namespace. bufferSize is the same tuning
// knob as the owning NsQueue's capacity (§9: buffer sizes are tuning
// knobs, not contracts).
func New[U any](namespace string, kind schema.GroupVersionKind, updater cluster.StatusUpdater, marshal MarshalFunc[U], recorder record.EventRecorder, bufferSize int) *Writer[U] {
	return &Writer[U]{
		namespace: namespace,
		kind:      kind,
		updater:   updater,
		marshal:   marshal,
		recorder:  events.NewDeduplicatingRecorder(recorder),
		items:     make(chan item[U], bufferSize),
	}
}

// Submit hands a StatusUpdate to the writer. It blocks only if the
// writer's buffer is momentarily full; it never waits for the cluster
// write to complete.
func (w *Writer[U]) Submit(update action.StatusUpdate[U]) {
	w.items <- item[U]{update: &update}
}

// Stop asks the run loop to terminate after any already-submitted items
// have been written.
func (w *Writer[U]) Stop() {
	w.items <- item[U]{isTerminate: true}
}

// Run drains submitted items until Stop is observed or ctx is done,
// writing each StatusUpdate to the cluster in submission order. Transient
// write errors are logged (and recorded as events, deduplicated via
// events.DeduplicatingRecorder) and the
// next item is attempted; they never stop the writer.
func (w *Writer[U]) Run(ctx context.Context, log logr.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-w.items:
			if it.isTerminate {
				return
			}
			w.write(ctx, log, *it.update)
		}
	}
}

func (w *Writer[U]) write(ctx context.Context, log logr.Logger, update action.StatusUpdate[U]) {
	payload, err := w.marshal(update.NewStatus)
	if err != nil {
		log.Error(err, "error marshalling status update", "resource", types.ObjectKeyToString(update.Metadata))
		metrics.StatusUpdatesTotal.WithLabelValues(w.namespace, "error").Inc()
		return
	}

	if err := w.updater.UpdateStatus(ctx, w.kind, update.Metadata, payload); err != nil {
		log.Error(err, "error writing status update, will retry on next update", "resource", types.ObjectKeyToString(update.Metadata))
		w.recorder.Eventf(w.kind, update.Metadata, "Warning", "StatusWriteFailed", "failed to write status: %s", err.Error())
		metrics.StatusUpdatesTotal.WithLabelValues(w.namespace, "error").Inc()
		return
	}
	metrics.StatusUpdatesTotal.WithLabelValues(w.namespace, "success").Inc()
}
