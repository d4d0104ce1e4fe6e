/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package dispatcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/record"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/consumer"
	"github.com/sap/go-operator-core/pkg/controller"
	"github.com/sap/go-operator-core/pkg/dispatcher"
	"github.com/sap/go-operator-core/pkg/queue"
	"github.com/sap/go-operator-core/pkg/statusfeedback"
)

type spec struct{}
type status struct{ Phase string }

var testKind = schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Widget"}

type noopController struct {
	mu        sync.Mutex
	processed []string
}

func (c *noopController) OnInit(ctx context.Context) error { return nil }
func (c *noopController) OnAdd(ctx context.Context, r *action.CustomResource[spec, status]) (*status, error) {
	c.note(r)
	return nil, nil
}
func (c *noopController) OnModify(ctx context.Context, r *action.CustomResource[spec, status]) (*status, error) {
	c.note(r)
	return nil, nil
}
func (c *noopController) OnDelete(ctx context.Context, r *action.CustomResource[spec, status]) error {
	c.note(r)
	return nil
}
func (c *noopController) Reconcile(ctx context.Context, r *action.CustomResource[spec, status]) (*status, error) {
	c.note(r)
	return nil, nil
}

func (c *noopController) note(r *action.CustomResource[spec, status]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = append(c.processed, r.Metadata.Namespace+"/"+r.Metadata.Name)
}

func (c *noopController) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.processed))
	copy(out, c.processed)
	return out
}

type discardUpdater struct{}

func (discardUpdater) UpdateStatus(ctx context.Context, kind schema.GroupVersionKind, meta action.Metadata, status []byte) error {
	return nil
}

func newDispatcher(ctrl *noopController) *dispatcher.Dispatcher[spec, status] {
	return dispatcher.New[spec, status](func(namespace string) (*consumer.Consumer[spec, status], *statusfeedback.Writer[status]) {
		q := queue.New[spec, status](namespace, 8)
		w := statusfeedback.New[status](namespace, testKind, discardUpdater{}, func(s status) ([]byte, error) { return []byte(s.Phase), nil }, record.NewFakeRecorder(10), 8)
		return consumer.New[spec, status](namespace, q, ctrl, w), w
	})
}

func resource(namespace, name string) *action.CustomResource[spec, status] {
	return &action.CustomResource[spec, status]{Metadata: action.Metadata{Namespace: namespace, Name: name}}
}

func TestDispatchRoutesByNamespace(t *testing.T) {
	g := NewWithT(t)
	ctrl := &noopController{}
	d := newDispatcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Added, Resource: resource("team-a", "r1")})
	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Added, Resource: resource("team-b", "r2")})

	g.Eventually(ctrl.snapshot).Should(ConsistOf("team-a/r1", "team-b/r2"))
}

func TestDispatchRoutesClusterScopedToSyntheticNamespace(t *testing.T) {
	g := NewWithT(t)
	ctrl := &noopController{}
	d := newDispatcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Added, Resource: resource("", "cluster-res")})

	g.Eventually(ctrl.snapshot).Should(ConsistOf("/cluster-res"))
}

func TestDispatchReusesExistingConsumerForSameNamespace(t *testing.T) {
	g := NewWithT(t)
	ctrl := &noopController{}
	d := newDispatcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Added, Resource: resource("team-a", "r1")})
	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Modified, Resource: resource("team-a", "r1")})

	g.Eventually(func() int { return len(ctrl.snapshot()) }).Should(Equal(2))
}

func TestClosedStreamBroadcastsToAllConsumersAndDispatcherExits(t *testing.T) {
	g := NewWithT(t)
	ctrl := &noopController{}
	d := newDispatcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Added, Resource: resource("team-a", "r1")})
	d.Dispatch(ctx, logf.Log, action.ServerAction[spec, status]{Verb: action.Added, Resource: resource("team-b", "r2")})
	g.Eventually(func() int { return len(ctrl.snapshot()) }).Should(Equal(2))

	d.Dispatch(ctx, logf.Log, action.DecodeFailureAction[spec, status]{Failure: action.ClosedStreamFailure{}})

	done := make(chan controller.ExitCode, 1)
	go func() { done <- d.Wait() }()

	select {
	case exit := <-done:
		g.Expect(exit).To(Equal(controller.ExitConsumer))
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not report exit after broadcast ClosedStream")
	}
}

func TestClosedStreamWithNoConsumersStillReportsExit(t *testing.T) {
	g := NewWithT(t)
	ctrl := &noopController{}
	d := newDispatcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Dispatch(ctx, logf.Log, action.DecodeFailureAction[spec, status]{Failure: action.ClosedStreamFailure{}})

	done := make(chan controller.ExitCode, 1)
	go func() { done <- d.Wait() }()

	select {
	case exit := <-done:
		g.Expect(exit).To(Equal(controller.ExitConsumer))
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not report exit when no consumer was ever created")
	}
}
