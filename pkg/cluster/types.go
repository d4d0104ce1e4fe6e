/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package cluster defines the external collaborator surface the pipeline
// consumes: watching, listing and updating the status of resources of a
// configured kind. The concrete implementation in this package wraps
// client-go's dynamic client and discovery client; decoding the raw
// payloads into typed domain objects remains the caller's responsibility
// (see pkg/decoder), matching the framework's explicit non-involvement in
// JSON/YAML decoding.
package cluster

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/tools/record"

	"github.com/sap/go-operator-core/pkg/action"
)

// NamespaceScope selects which namespaces a Watcher/Lister subscribes to.
// It is a closed sum mirroring the Config.NamespaceScope option.
type NamespaceScope interface {
	isNamespaceScope()
}

// AllNamespaces watches/lists across every namespace.
type AllNamespaces struct{}

func (AllNamespaces) isNamespaceScope() {}

// CurrentNamespace watches/lists only the namespace the operator itself
// runs in.
type CurrentNamespace struct{}

func (CurrentNamespace) isNamespaceScope() {}

// Named watches/lists only the given namespace.
type Named struct {
	Name string
}

func (Named) isNamespaceScope() {}

// WatchEvent is a single raw transport event: a lifecycle verb and the
// resource's encoded payload. Payload is nil when Verb is action.Error.
type WatchEvent struct {
	Verb    action.WatchVerb
	Payload []byte
}

// Handle is a closable subscription to a watch stream. Closing it
// terminates the underlying transport connection promptly.
type Handle interface {
	Close()
}

// Watcher subscribes to the cluster's watch endpoint for a resource kind.
type Watcher interface {
	Watch(ctx context.Context, kind schema.GroupVersionKind, scope NamespaceScope) (Handle, <-chan WatchEvent, error)
}

// Lister fetches the current live resource set, for the Reconciler's
// periodic re-scan.
type Lister interface {
	List(ctx context.Context, kind schema.GroupVersionKind, scope NamespaceScope) ([][]byte, error)
}

// StatusUpdater writes a controller-produced status payload back to the
// resource identified by meta.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, kind schema.GroupVersionKind, meta action.Metadata, status []byte) error
}

// Client is the full external collaborator surface consumed by the
// pipeline, extended (in the spirit of the teacher's cluster.Client) with
// discovery and event recording, both needed by ambient concerns
// (checkKubernetesOnStartup, deduplicated failure events).
type Client interface {
	Watcher
	Lister
	StatusUpdater
	// DiscoveryClient returns a client for the startup discovery
	// preflight (see pkg/watcher).
	DiscoveryClient() discovery.DiscoveryInterface
	// EventRecorder returns the recorder used to surface
	// StatusWriteFailure as Kubernetes Events; controller callback
	// failures are not recorded through it.
	EventRecorder() record.EventRecorder
	// Close releases any resources (e.g. the event broadcaster) held by
	// the client for the lifetime of a pipeline run.
	Close()
}
