/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package controller defines the callback surface applications implement
// to react to resource lifecycle events, and the exit codes a pipeline
// run can terminate with.
package controller

import (
	"context"

	"github.com/sap/go-operator-core/pkg/action"
)

// Controller is the user-provided reaction to resource lifecycle events
// for resources of spec type T and status type U. The framework
// guarantees exactly one goroutine ever invokes these methods for a given
// namespace at a time (see pkg/consumer); invocations for different
// namespaces may happen concurrently, so any state a Controller holds
// across namespaces must be safe for concurrent use.
type Controller[T, U any] interface {
	// OnInit is called exactly once per pipeline run (each
	// Supervisor.Run attempt, so again after every restart), before any
	// event of that run is dispatched.
	OnInit(ctx context.Context) error
	// OnAdd reacts to a newly observed resource. A non-nil returned
	// status becomes a StatusUpdate.
	OnAdd(ctx context.Context, resource *action.CustomResource[T, U]) (*U, error)
	// OnModify reacts to a changed resource. A non-nil returned status
	// becomes a StatusUpdate.
	OnModify(ctx context.Context, resource *action.CustomResource[T, U]) (*U, error)
	// OnDelete reacts to a resource's removal. Any status it might
	// return is discarded: the resource is gone.
	OnDelete(ctx context.Context, resource *action.CustomResource[T, U]) error
	// Reconcile re-examines a resource's observed state, independent of
	// any live event, to heal drift. A non-nil returned status becomes a
	// StatusUpdate.
	Reconcile(ctx context.Context, resource *action.CustomResource[T, U]) (*U, error)
}

// ExitCode is the outcome of a pipeline run.
type ExitCode int

const (
	// ExitSuccess is reserved for run paths that complete without any
	// error or watch closure (currently unused by the core pipeline,
	// which only ever exits via ExitConsumer or ExitError, but kept for
	// callers embedding the Supervisor in a larger lifecycle that can
	// reach a clean stop deliberately).
	ExitSuccess ExitCode = iota
	// ExitConsumer means the watch stream closed gracefully; the
	// Supervisor's retry policy decides whether to restart.
	ExitConsumer
	// ExitError means the run terminated on an error: a failed OnInit,
	// a failed discovery preflight, or a failed watch start.
	// Supervisor.RunWithRestart still consults its retry policy after it.
	ExitError
)

func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "Success"
	case ExitConsumer:
		return "Consumer"
	case ExitError:
		return "Error"
	default:
		return "Unknown"
	}
}
