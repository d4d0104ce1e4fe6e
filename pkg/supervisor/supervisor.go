/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package supervisor implements the pipeline's top-level lifecycle: a
// single run attempt that wires Watcher, Reconciler and Dispatcher
// together and races their exits, plus a restart loop driven by a
// retrypolicy.Policy (§4.8).
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/sap/go-operator-core/internal/metrics"
	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/consumer"
	"github.com/sap/go-operator-core/pkg/controller"
	"github.com/sap/go-operator-core/pkg/decoder"
	"github.com/sap/go-operator-core/pkg/dispatcher"
	"github.com/sap/go-operator-core/pkg/queue"
	"github.com/sap/go-operator-core/pkg/reconcileloop"
	"github.com/sap/go-operator-core/pkg/retrypolicy"
	"github.com/sap/go-operator-core/pkg/statusfeedback"
	"github.com/sap/go-operator-core/pkg/watcher"
)

// Params bundles everything one pipeline run needs to construct its
// Watcher, Reconciler, Dispatcher and per-namespace Consumers from
// scratch. Supervisor builds a fresh Dispatcher (and therefore fresh
// Consumers) on every attempt: no state survives a restart.
type Params[T, U any] struct {
	Client                   cluster.Client
	Kind                     schema.GroupVersionKind
	Scope                    cluster.NamespaceScope
	Controller               controller.Controller[T, U]
	Unmarshal                decoder.UnmarshalFunc[T, U]
	Marshal                  statusfeedback.MarshalFunc[U]
	ReconcilePeriod          time.Duration
	QueueCapacity            int
	CheckKubernetesOnStartup bool
}

// Supervisor owns the active Watcher handle for the lifetime of one
// pipeline run (§3 Ownership).
type Supervisor[T, U any] struct {
	params Params[T, U]
}

// New creates a Supervisor from its pipeline parameters.
func New[T, U any](params Params[T, U]) *Supervisor[T, U] {
	return &Supervisor[T, U]{params: params}
}

// Run is a single pipeline attempt (§4.8 run()): initialize the
// controller, start the Watcher and Reconciler, and race the
// consumer-exit signal against the reconciler/watcher exit. Whichever
// completes first determines the result and cancels the rest; the watch
// handle and transport client are released on every exit path.
func (s *Supervisor[T, U]) Run(ctx context.Context, log logr.Logger) (controller.ExitCode, error) {
	defer s.params.Client.Close()

	if err := s.params.Controller.OnInit(ctx); err != nil {
		return controller.ExitError, errors.Wrap(err, "controller initialization failed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := dispatcher.New[T, U](func(namespace string) (*consumer.Consumer[T, U], *statusfeedback.Writer[U]) {
		q := queue.New[T, U](namespace, s.params.QueueCapacity)
		w := statusfeedback.New[U](namespace, s.params.Kind, s.params.Client, s.params.Marshal, s.params.Client.EventRecorder(), s.params.QueueCapacity)
		return consumer.New[T, U](namespace, q, s.params.Controller, w), w
	})

	w := watcher.New[T, U](s.params.Client, s.params.Kind, s.params.Scope, s.params.Unmarshal, s.params.CheckKubernetesOnStartup)
	r := reconcileloop.New[T, U](s.params.Client, s.params.Kind, s.params.Scope, s.params.Unmarshal, s.params.ReconcilePeriod)

	var reported sync.Once
	var exitCode controller.ExitCode
	var exitErr error
	report := func(code controller.ExitCode, err error) {
		reported.Do(func() {
			exitCode, exitErr = code, err
			cancel()
		})
	}

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		err := w.Run(gctx, log, d)
		if err != nil && gctx.Err() == nil {
			report(controller.ExitError, errors.Wrap(err, "watcher exited"))
			return err
		}
		report(controller.ExitConsumer, nil)
		return nil
	})

	g.Go(func() error {
		r.Run(gctx, log, d)
		return nil
	})

	g.Go(func() error {
		exit := d.Wait()
		report(exit, nil)
		return nil
	})

	_ = g.Wait()
	return exitCode, exitErr
}

// RunWithRestart is the restart loop (§4.8 withRestart(policy)): it runs
// the pipeline, and on every exit that is not caused by ctx cancellation
// (ExitError included) consults policy for whether and how long to wait
// before trying again. It returns the outcome of the
// final attempt once the policy gives up (or immediately, for a Policy
// that never restarts).
func (s *Supervisor[T, U]) RunWithRestart(ctx context.Context, log logr.Logger, policy retrypolicy.Policy) (controller.ExitCode, error) {
	for {
		exitCode, err := s.Run(ctx, log)

		if ctx.Err() != nil {
			return exitCode, err
		}

		delay, next, ok := policy.Next()
		if !ok {
			return exitCode, err
		}

		log.Info("pipeline run exited; restarting after delay", "exit", exitCode.String(), "delay", delay)
		metrics.RestartsTotal.Inc()
		select {
		case <-ctx.Done():
			return exitCode, err
		case <-time.After(delay):
		}
		policy = next
	}
}
