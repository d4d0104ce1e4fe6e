/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package decoder_test

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/sap/go-operator-core/pkg/action"
	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/decoder"
)

type spec struct {
	Replicas int `json:"replicas"`
}

type status struct {
	Ready bool `json:"ready"`
}

func unmarshal(payload []byte) (*action.CustomResource[spec, status], error) {
	var wire struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
		Spec      spec   `json:"spec"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, err
	}
	return &action.CustomResource[spec, status]{
		Metadata: action.Metadata{Name: wire.Name, Namespace: wire.Namespace},
		Spec:     wire.Spec,
	}, nil
}

func TestDecodeWellFormedEventYieldsServerAction(t *testing.T) {
	g := NewWithT(t)

	payload := []byte(`{"name":"r1","namespace":"default","spec":{"replicas":3}}`)
	result := decoder.Decode(cluster.WatchEvent{Verb: action.Added, Payload: payload}, unmarshal)

	sa, ok := result.(action.ServerAction[spec, status])
	g.Expect(ok).To(BeTrue())
	g.Expect(sa.Verb).To(Equal(action.Added))
	g.Expect(sa.Resource.Metadata.Name).To(Equal("r1"))
	g.Expect(sa.Resource.Spec.Replicas).To(Equal(3))
}

func TestDecodeMalformedPayloadYieldsParseResourceFailure(t *testing.T) {
	g := NewWithT(t)

	result := decoder.Decode(cluster.WatchEvent{Verb: action.Modified, Payload: []byte("not json")}, unmarshal)

	fa, ok := result.(action.DecodeFailureAction[spec, status])
	g.Expect(ok).To(BeTrue())
	prf, ok := fa.Failure.(action.ParseResourceFailure)
	g.Expect(ok).To(BeTrue())
	g.Expect(prf.Verb).To(Equal(action.Modified))
}

func TestDecodeErrorVerbYieldsServerActionWithNilResourceNotSilentDrop(t *testing.T) {
	g := NewWithT(t)

	result := decoder.Decode[spec, status](cluster.WatchEvent{Verb: action.Error}, unmarshal)

	sa, ok := result.(action.ServerAction[spec, status])
	g.Expect(ok).To(BeTrue())
	g.Expect(sa.Verb).To(Equal(action.Error))
	g.Expect(sa.Resource).To(BeNil())
}

func TestDecodeClosedStreamCarriesCause(t *testing.T) {
	g := NewWithT(t)
	cause := errBoom{}

	result := decoder.DecodeClosedStream[spec, status](cause)

	fa, ok := result.(action.DecodeFailureAction[spec, status])
	g.Expect(ok).To(BeTrue())
	csf, ok := fa.Failure.(action.ClosedStreamFailure)
	g.Expect(ok).To(BeTrue())
	g.Expect(csf.Cause).To(Equal(cause))
}

func TestDecodeClosedStreamAllowsNilCause(t *testing.T) {
	g := NewWithT(t)

	result := decoder.DecodeClosedStream[spec, status](nil)

	fa := result.(action.DecodeFailureAction[spec, status])
	csf := fa.Failure.(action.ClosedStreamFailure)
	g.Expect(csf.Cause).To(BeNil())
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
