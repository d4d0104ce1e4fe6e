/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package reconcileloop_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/record"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/consumer"
	"github.com/sap/go-operator-core/pkg/dispatcher"
	"github.com/sap/go-operator-core/pkg/queue"
	"github.com/sap/go-operator-core/pkg/reconcileloop"
	"github.com/sap/go-operator-core/pkg/statusfeedback"
)

type spec struct {
	Name              string        `json:"name"`
	Namespace         string        `json:"namespace"`
	ReconcileInterval time.Duration `json:"-"`
}

func (s *spec) GetReconcileInterval() time.Duration { return s.ReconcileInterval }

type status struct{}

var testKind = schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Widget"}

func unmarshal(payload []byte) (*action.CustomResource[spec, status], error) {
	var s spec
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &action.CustomResource[spec, status]{
		Metadata: action.Metadata{Name: s.Name, Namespace: s.Namespace},
		Spec:     s,
	}, nil
}

type fakeLister struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	calls    int
}

func (l *fakeLister) List(ctx context.Context, kind schema.GroupVersionKind, scope cluster.NamespaceScope) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.payloads, nil
}

func (l *fakeLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type recordingController struct {
	mu         sync.Mutex
	reconciles []string
}

func (c *recordingController) OnInit(ctx context.Context) error { return nil }
func (c *recordingController) OnAdd(ctx context.Context, r *action.CustomResource[spec, status]) (*status, error) {
	return nil, nil
}
func (c *recordingController) OnModify(ctx context.Context, r *action.CustomResource[spec, status]) (*status, error) {
	return nil, nil
}
func (c *recordingController) OnDelete(ctx context.Context, r *action.CustomResource[spec, status]) error {
	return nil
}
func (c *recordingController) Reconcile(ctx context.Context, r *action.CustomResource[spec, status]) (*status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconciles = append(c.reconciles, r.Metadata.Namespace+"/"+r.Metadata.Name)
	return nil, nil
}

func (c *recordingController) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reconciles)
}

type discardUpdater struct{}

func (discardUpdater) UpdateStatus(ctx context.Context, kind schema.GroupVersionKind, meta action.Metadata, status []byte) error {
	return nil
}

func newDispatcher(ctrl *recordingController) *dispatcher.Dispatcher[spec, status] {
	return dispatcher.New[spec, status](func(namespace string) (*consumer.Consumer[spec, status], *statusfeedback.Writer[status]) {
		q := queue.New[spec, status](namespace, 8)
		w := statusfeedback.New[status](namespace, testKind, discardUpdater{}, func(status) ([]byte, error) { return nil, nil }, record.NewFakeRecorder(10), 8)
		return consumer.New[spec, status](namespace, q, ctrl, w), w
	})
}

func TestReconcilerEnqueuesOneActionPerListedResource(t *testing.T) {
	g := NewWithT(t)
	p1, _ := json.Marshal(spec{Name: "r1", Namespace: "default"})
	p2, _ := json.Marshal(spec{Name: "r2", Namespace: "default"})
	lister := &fakeLister{payloads: [][]byte{p1, p2}}
	ctrl := &recordingController{}
	d := newDispatcher(ctrl)

	r := reconcileloop.New[spec, status](lister, testKind, cluster.AllNamespaces{}, unmarshal, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, logf.Log, d)

	g.Eventually(ctrl.count, time.Second).Should(BeNumerically(">=", 2))
}

func TestReconcilerSkipsTickOnListFailureAndContinues(t *testing.T) {
	g := NewWithT(t)
	lister := &fakeLister{err: errBoom{}}
	ctrl := &recordingController{}
	d := newDispatcher(ctrl)

	r := reconcileloop.New[spec, status](lister, testKind, cluster.AllNamespaces{}, unmarshal, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, logf.Log, d)

	g.Eventually(lister.callCount, time.Second).Should(BeNumerically(">=", 2))
	g.Expect(ctrl.count()).To(Equal(0))
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
