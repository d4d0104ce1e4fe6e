/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/record"

	"github.com/sap/go-operator-core/pkg/action"
)

// clientImpl is the production Client, grounded on the wiring in the
// teacher's internal/clientfactory.NewClientFor (HTTP client shared
// between a typed clientset and a dynamic client, plus a broadcast event
// recorder), retargeted from a cached controller-runtime client.Client to
// client-go's dynamic.Interface so this package's Watch/List stream raw
// payloads for pkg/decoder and pkg/watcher to turn into the pipeline's
// own event ordering, rather than going through a second, redundant
// informer cache.
type clientImpl struct {
	gvr              schema.GroupVersionResource
	dynamicClient    dynamic.Interface
	discoveryClient  discovery.DiscoveryInterface
	eventRecorder    record.EventRecorder
	eventBroadcaster record.EventBroadcaster
	currentNamespace string
}

// NewClient builds the production Client for the given resource kind.
// currentNamespace is the namespace to scope to when the configuration
// selects cluster.CurrentNamespace; resolving it (from a mounted
// service-account namespace file, an env var, or a flag) is the caller's
// responsibility, per this framework's exclusion of environment probing.
func NewClient(cfg *rest.Config, gvk schema.GroupVersionKind, scheme *runtime.Scheme, name string, currentNamespace string) (Client, error) {
	httpClient, err := rest.HTTPClientFor(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http client")
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfigAndClient(cfg, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "error creating discovery client")
	}

	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))
	mapping, err := mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "error resolving rest mapping for %s", gvk)
	}

	dynamicClient, err := dynamic.NewForConfigAndClient(cfg, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "error creating dynamic client")
	}

	clientset, err := kubernetes.NewForConfigAndClient(cfg, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "error creating clientset")
	}
	eventBroadcaster := record.NewBroadcaster()
	eventBroadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: clientset.CoreV1().Events("")})
	eventRecorder := eventBroadcaster.NewRecorder(scheme, corev1.EventSource{Component: name})

	return &clientImpl{
		gvr:              mapping.Resource,
		dynamicClient:    dynamicClient,
		discoveryClient:  discoveryClient,
		eventRecorder:    eventRecorder,
		eventBroadcaster: eventBroadcaster,
		currentNamespace: currentNamespace,
	}, nil
}

func (c *clientImpl) resourceFor(scope NamespaceScope) dynamic.ResourceInterface {
	resource := c.dynamicClient.Resource(c.gvr)
	switch s := scope.(type) {
	case AllNamespaces:
		return resource
	case CurrentNamespace:
		return resource.Namespace(c.currentNamespace)
	case Named:
		return resource.Namespace(s.Name)
	default:
		return resource
	}
}

func (c *clientImpl) Watch(ctx context.Context, kind schema.GroupVersionKind, scope NamespaceScope) (Handle, <-chan WatchEvent, error) {
	w, err := c.resourceFor(scope).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error starting watch for %s", kind)
	}

	events := make(chan WatchEvent)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, open := <-w.ResultChan():
				if !open {
					return
				}
				wevt, ok := translateEvent(evt)
				if !ok {
					continue
				}
				select {
				case events <- wevt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return watchHandle{w}, events, nil
}

func translateEvent(evt watch.Event) (WatchEvent, bool) {
	var verb action.WatchVerb
	switch evt.Type {
	case watch.Added:
		verb = action.Added
	case watch.Modified:
		verb = action.Modified
	case watch.Deleted:
		verb = action.Deleted
	case watch.Error:
		verb = action.Error
	default:
		return WatchEvent{}, false
	}

	if verb == action.Error {
		return WatchEvent{Verb: verb}, true
	}

	obj, ok := evt.Object.(*unstructured.Unstructured)
	if !ok {
		return WatchEvent{}, false
	}
	payload, err := obj.MarshalJSON()
	if err != nil {
		return WatchEvent{}, false
	}
	return WatchEvent{Verb: verb, Payload: payload}, true
}

type watchHandle struct {
	w watch.Interface
}

func (h watchHandle) Close() {
	h.w.Stop()
}

func (c *clientImpl) List(ctx context.Context, kind schema.GroupVersionKind, scope NamespaceScope) ([][]byte, error) {
	list, err := c.resourceFor(scope).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "error listing %s", kind)
	}
	raw := make([][]byte, 0, len(list.Items))
	for i := range list.Items {
		payload, err := list.Items[i].MarshalJSON()
		if err != nil {
			return nil, errors.Wrap(err, "error marshalling listed resource")
		}
		raw = append(raw, payload)
	}
	return raw, nil
}

func (c *clientImpl) UpdateStatus(ctx context.Context, kind schema.GroupVersionKind, meta action.Metadata, status []byte) error {
	resource := c.resourceFor(namespaceScopeFor(meta))
	obj, err := resource.Get(ctx, meta.Name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return errors.Wrapf(err, "error getting %s for status update", kind)
	}

	var statusValue map[string]any
	if err := json.Unmarshal(status, &statusValue); err != nil {
		return errors.Wrap(err, "error unmarshalling status payload")
	}
	obj.Object["status"] = statusValue

	if _, err := resource.UpdateStatus(ctx, obj, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "error updating status of %s", kind)
	}
	return nil
}

func namespaceScopeFor(meta action.Metadata) NamespaceScope {
	if meta.Namespace == "" {
		return AllNamespaces{}
	}
	return Named{Name: meta.Namespace}
}

func (c *clientImpl) DiscoveryClient() discovery.DiscoveryInterface {
	return c.discoveryClient
}

func (c *clientImpl) EventRecorder() record.EventRecorder {
	return c.eventRecorder
}

func (c *clientImpl) Close() {
	c.eventBroadcaster.Shutdown()
}
