/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package action defines the data model that flows through the watch
// pipeline: decoded resources, the server/reconcile actions dispatched to
// controllers, decode failures, and the status updates controllers hand
// back to the cluster.
package action

import (
	"fmt"

	"k8s.io/apimachinery/pkg/types"
)

// Metadata is the opaque-to-the-framework identity of a cluster resource.
// It is set by the cluster and never constructed by controller code.
type Metadata struct {
	Name            string
	Namespace       string
	UID             types.UID
	ResourceVersion string
	Labels          map[string]string
}

// GetNamespace implements pkg/types.ObjectKey.
func (m Metadata) GetNamespace() string {
	return m.Namespace
}

// GetName implements pkg/types.ObjectKey.
func (m Metadata) GetName() string {
	return m.Name
}

func (m Metadata) String() string {
	if m.Namespace == "" {
		return m.Name
	}
	return fmt.Sprintf("%s/%s", m.Namespace, m.Name)
}

// CustomResource is the typed domain object the Decoder produces from a
// raw watch payload. Spec is always present; Status may be nil on
// creation (the object was just Added and has not been reconciled yet).
type CustomResource[T, U any] struct {
	Metadata Metadata
	Spec     T
	Status   *U
}

// WatchVerb is the lifecycle verb a watch transport event carries.
type WatchVerb string

const (
	Added    WatchVerb = "Added"
	Modified WatchVerb = "Modified"
	Deleted  WatchVerb = "Deleted"
	Error    WatchVerb = "Error"
)

// OperatorAction is the closed sum of things the ActionConsumer dispatch
// loop knows how to handle: a decoded ServerAction, a synthetic
// ReconcileAction, or a DecodeFailure. It is single-use: once dispatched,
// the action is dropped.
type OperatorAction[T, U any] interface {
	isOperatorAction()
}

// ServerAction wraps a single decoded watch event. Resource is non-nil
// unless Verb is Error.
type ServerAction[T, U any] struct {
	Verb     WatchVerb
	Resource *CustomResource[T, U]
}

func (ServerAction[T, U]) isOperatorAction() {}

// ReconcileAction is injected by the Reconciler; it always carries a live
// resource fetched from the current server-side list.
type ReconcileAction[T, U any] struct {
	Resource *CustomResource[T, U]
}

func (ReconcileAction[T, U]) isOperatorAction() {}

// DecodeFailureAction carries a DecodeFailure down the same action
// channel as ServerAction/ReconcileAction, per the Decoder's contract of
// never dropping events silently.
type DecodeFailureAction[T, U any] struct {
	Failure DecodeFailure
}

func (DecodeFailureAction[T, U]) isOperatorAction() {}

// DecodeFailure is the closed sum of ways the Decoder can fail to produce
// a ServerAction. It is returned alongside, never instead of, an
// OperatorAction so the consumer can log and skip.
type DecodeFailure interface {
	error
	isDecodeFailure()
}

// ClosedStreamFailure signals that the transport terminated the watch
// stream. Cause may be nil for a clean close. This is the only
// DecodeFailure variant that is fatal to the pipeline run.
type ClosedStreamFailure struct {
	Cause error
}

func (f ClosedStreamFailure) Error() string {
	if f.Cause == nil {
		return "watch stream closed"
	}
	return fmt.Sprintf("watch stream closed: %s", f.Cause.Error())
}

func (f ClosedStreamFailure) Unwrap() error { return f.Cause }
func (ClosedStreamFailure) isDecodeFailure() {}

// ParseResourceFailure signals that a single watch event's payload could
// not be decoded into a CustomResource. The offending verb and raw bytes
// are retained for logging.
type ParseResourceFailure struct {
	Verb  WatchVerb
	Cause error
	Raw   []byte
}

func (f ParseResourceFailure) Error() string {
	return fmt.Sprintf("failed to parse %s resource: %s", f.Verb, f.Cause.Error())
}

func (f ParseResourceFailure) Unwrap() error { return f.Cause }
func (ParseResourceFailure) isDecodeFailure() {}

// ParseReconcileFailure signals that a single listed resource could not
// be decoded while building ReconcileActions for a tick.
type ParseReconcileFailure struct {
	Cause error
	Raw   []byte
}

func (f ParseReconcileFailure) Error() string {
	return fmt.Sprintf("failed to parse resource for reconcile: %s", f.Cause.Error())
}

func (f ParseReconcileFailure) Unwrap() error { return f.Cause }
func (ParseReconcileFailure) isDecodeFailure() {}

// StatusUpdate is produced by the ActionConsumer whenever a controller
// callback returns a non-empty status, and consumed by the StatusFeedback
// writer.
type StatusUpdate[U any] struct {
	Metadata  Metadata
	NewStatus U
}
