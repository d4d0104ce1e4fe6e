/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package statusfeedback_test

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
	"github.com/sap/go-operator-core/pkg/statusfeedback"
)

type fakeStatus struct {
	Ready bool `json:"ready"`
}

type fakeUpdater struct {
	mu      sync.Mutex
	written []action.Metadata
	fail    bool
}

func (u *fakeUpdater) UpdateStatus(ctx context.Context, kind schema.GroupVersionKind, meta action.Metadata, status []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail {
		return errBoom
	}
	u.written = append(u.written, meta)
	return nil
}

func (u *fakeUpdater) writtenCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.written)
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}

func marshalStatus(s fakeStatus) ([]byte, error) { return json.Marshal(s) }

var testKind = schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Widget"}

func TestWriterWritesUpdatesInSubmissionOrder(t *testing.T) {
	g := NewWithT(t)
	updater := &fakeUpdater{}
	w := statusfeedback.New[fakeStatus]("default", testKind, updater, marshalStatus, record.NewFakeRecorder(10), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, logf.Log)

	w.Submit(action.StatusUpdate[fakeStatus]{Metadata: action.Metadata{Name: "r1"}, NewStatus: fakeStatus{Ready: true}})
	w.Submit(action.StatusUpdate[fakeStatus]{Metadata: action.Metadata{Name: "r2"}, NewStatus: fakeStatus{Ready: false}})

	g.Eventually(updater.writtenCount).Should(Equal(2))
	g.Expect(updater.written[0].Name).To(Equal("r1"))
	g.Expect(updater.written[1].Name).To(Equal("r2"))
}

func TestWriterContinuesAfterTransientWriteFailure(t *testing.T) {
	g := NewWithT(t)
	updater := &fakeUpdater{fail: true}
	recorder := record.NewFakeRecorder(10)
	w := statusfeedback.New[fakeStatus]("default", testKind, updater, marshalStatus, recorder, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx, logf.Log)
		close(done)
	}()

	w.Submit(action.StatusUpdate[fakeStatus]{Metadata: action.Metadata{Name: "r1"}, NewStatus: fakeStatus{Ready: true}})
	// The failed write of r1 is recorded as an event; wait for it before
	// letting writes succeed again.
	g.Eventually(recorder.Events).Should(Receive())
	updater.mu.Lock()
	updater.fail = false
	updater.mu.Unlock()
	w.Submit(action.StatusUpdate[fakeStatus]{Metadata: action.Metadata{Name: "r2"}, NewStatus: fakeStatus{Ready: true}})

	g.Eventually(updater.writtenCount).Should(Equal(1))
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not stop after Stop")
	}
}
