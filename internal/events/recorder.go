/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/record"

	"github.com/sap/go-operator-core/pkg/action"
)

// DeduplicatingRecorder wraps a record.EventRecorder and suppresses
// repeated identical events for the same resource within a short window,
// so a run of StatusWriteFailures for one resource doesn't flood the
// cluster's event stream. Controller callback failures are only logged by
// pkg/consumer and are not recorded as events. Adapted from the teacher's
// client.Object-keyed recorder: this framework's pipeline never holds a
// controller-runtime client.Object, only an action.Metadata, so the event
// subject is synthesized as a minimal *unstructured.Unstructured
// reference instead.
type DeduplicatingRecorder struct {
	recorder record.EventRecorder
	mutex    sync.Mutex
	events   map[string]event
}

type event struct {
	digest    string
	timestamp time.Time
}

func NewDeduplicatingRecorder(recorder record.EventRecorder) *DeduplicatingRecorder {
	return &DeduplicatingRecorder{
		recorder: recorder,
		events:   make(map[string]event),
	}
}

// Eventf records an event against the resource identified by kind and
// meta, unless the most recent event recorded for that resource within
// the last five minutes is identical. Only that latest event is compared:
// an older identical event followed by a different one does not suppress
// it.
func (r *DeduplicatingRecorder) Eventf(kind schema.GroupVersionKind, meta action.Metadata, eventType, reason, messageFmt string, args ...any) {
	message := fmt.Sprintf(messageFmt, args...)
	if r.isDuplicate(meta, eventType, reason, message) {
		return
	}
	r.recorder.Eventf(referenceFor(kind, meta), eventType, reason, "%s", message)
}

func referenceFor(kind schema.GroupVersionKind, meta action.Metadata) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(kind)
	obj.SetName(meta.Name)
	obj.SetNamespace(meta.Namespace)
	obj.SetUID(meta.UID)
	obj.SetResourceVersion(meta.ResourceVersion)
	return obj
}

func (r *DeduplicatingRecorder) isDuplicate(meta action.Metadata, eventType, reason, message string) bool {
	key := string(meta.UID)
	if key == "" {
		key = meta.String()
	}
	digest := calculateDigest(eventType, reason, message)
	now := time.Now()
	exp := now.Add(-5 * time.Minute)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	for k, ev := range r.events {
		if ev.timestamp.Before(exp) {
			delete(r.events, k)
		}
	}
	if r.events[key].digest == digest {
		return true
	}
	r.events[key] = event{digest: digest, timestamp: now}
	return false
}
