/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package decoder implements the stateless translation of raw transport
// watch events into the typed OperatorAction domain model. It never
// drops an event silently: anything it cannot turn into a ServerAction
// becomes a DecodeFailureAction carrying the original verb and payload.
package decoder

import (
	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/cluster"
)

// UnmarshalFunc decodes a single resource's raw JSON/YAML payload into a
// CustomResource. Supplying this decode step is the caller's
// responsibility; the Decoder only orchestrates verb dispatch and
// failure wrapping around it.
type UnmarshalFunc[T, U any] func(payload []byte) (*action.CustomResource[T, U], error)

// Decode turns a single raw watch event into an OperatorAction. It never
// returns a nil action: decode failures are themselves wrapped into a
// DecodeFailureAction so the caller can feed the result straight into the
// Dispatcher.
func Decode[T, U any](event cluster.WatchEvent, unmarshal UnmarshalFunc[T, U]) action.OperatorAction[T, U] {
	// Per the data model, a ServerAction's Resource is non-nil unless
	// Verb is Error: an Error event carries no payload to parse, so it
	// becomes a ServerAction with a nil Resource rather than a decode
	// failure. The ActionConsumer logs and skips it without a
	// controller call (§9's Open Question: Error events are treated as
	// logged and ignored, not retried).
	if event.Verb == action.Error {
		return action.ServerAction[T, U]{Verb: action.Error}
	}

	resource, err := unmarshal(event.Payload)
	if err != nil {
		return action.DecodeFailureAction[T, U]{
			Failure: action.ParseResourceFailure{
				Verb:  event.Verb,
				Cause: err,
				Raw:   event.Payload,
			},
		}
	}

	return action.ServerAction[T, U]{Verb: event.Verb, Resource: resource}
}

// DecodeClosedStream builds the DecodeFailureAction reported when the
// transport terminates the watch stream. cause may be nil for a clean
// close.
func DecodeClosedStream[T, U any](cause error) action.OperatorAction[T, U] {
	return action.DecodeFailureAction[T, U]{Failure: action.ClosedStreamFailure{Cause: cause}}
}

// DecodeReconcile turns one raw listed payload into a ReconcileAction,
// for the Reconciler's periodic re-scan.
func DecodeReconcile[T, U any](payload []byte, unmarshal UnmarshalFunc[T, U]) action.OperatorAction[T, U] {
	resource, err := unmarshal(payload)
	if err != nil {
		return action.DecodeFailureAction[T, U]{
			Failure: action.ParseReconcileFailure{Cause: err, Raw: payload},
		}
	}
	return action.ReconcileAction[T, U]{Resource: resource}
}
