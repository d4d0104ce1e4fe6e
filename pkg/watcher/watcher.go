/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package watcher runs the live side of the pipeline: it opens a watch
// against the cluster transport, decodes every event and hands the
// result to the Dispatcher, until the stream closes or ctx is cancelled.
package watcher

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/decoder"
	"github.com/sap/go-operator-core/pkg/dispatcher"
)

// Watcher subscribes to one resource kind's watch stream and feeds every
// event through the Decoder then the Dispatcher (§4.6). It owns exactly
// one transport Handle at a time (§3 Ownership).
type Watcher[T, U any] struct {
	client    cluster.Client
	kind      schema.GroupVersionKind
	scope     cluster.NamespaceScope
	unmarshal decoder.UnmarshalFunc[T, U]

	checkKubernetesOnStartup bool
}

// New creates a Watcher for one resource kind. unmarshal decodes a single
// resource's raw payload; supplying it is the caller's responsibility,
// matching the Decoder's own exclusion of JSON/YAML decoding (§4.1).
func New[T, U any](client cluster.Client, kind schema.GroupVersionKind, scope cluster.NamespaceScope, unmarshal decoder.UnmarshalFunc[T, U], checkKubernetesOnStartup bool) *Watcher[T, U] {
	return &Watcher[T, U]{
		client:                   client,
		kind:                     kind,
		scope:                    scope,
		unmarshal:                unmarshal,
		checkKubernetesOnStartup: checkKubernetesOnStartup,
	}
}

// Run opens the watch and feeds decoded actions to d until the stream
// closes, ctx is cancelled, or the initial discovery preflight fails. It
// returns the cause of a ClosedStream termination (possibly nil for a
// clean close); a non-nil, non-ClosedStream error means the watch never
// started.
func (w *Watcher[T, U]) Run(ctx context.Context, log logr.Logger, d *dispatcher.Dispatcher[T, U]) error {
	if w.checkKubernetesOnStartup {
		if _, err := w.client.DiscoveryClient().ServerVersion(); err != nil {
			return errors.Wrapf(err, "error reaching kubernetes apiserver for %s discovery preflight", w.kind)
		}
	}

	handle, events, err := w.client.Watch(ctx, w.kind, w.scope)
	if err != nil {
		return errors.Wrapf(err, "error starting watch for %s", w.kind)
	}
	defer handle.Close()

	for {
		select {
		case <-ctx.Done():
			d.Dispatch(context.Background(), log, decoder.DecodeClosedStream[T, U](ctx.Err()))
			return ctx.Err()
		case evt, open := <-events:
			if !open {
				d.Dispatch(context.Background(), log, decoder.DecodeClosedStream[T, U](nil))
				return nil
			}
			d.Dispatch(ctx, log, decoder.Decode(evt, w.unmarshal))
		}
	}
}
