/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package operator is the top-level entry point: it validates a Config,
// wires a cluster.Client, Watcher, Reconciler and Supervisor together for
// a given resource kind and Controller, and exposes a single Run call
// that drives the pipeline to completion (or indefinitely, under a
// restart policy).
package operator

import (
	"time"

	"github.com/pkg/errors"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/retrypolicy"
	"github.com/sap/go-operator-core/pkg/types"
)

// DefaultReconcilePeriod is used when Config.ReconcilePeriod is zero.
const DefaultReconcilePeriod = 60 * time.Second

// DefaultQueueCapacity is used when Config.QueueCapacity is zero.
const DefaultQueueCapacity = 64

// Config is the full set of options a pipeline run needs, beyond the
// Controller implementation itself.
type Config struct {
	// Kind identifies the resource kind this operator is responsible
	// for. Required.
	Kind schema.GroupVersionKind
	// NamespaceScope selects which namespaces are watched and listed.
	// Required.
	NamespaceScope cluster.NamespaceScope
	// Prefix is the API group prefix this operator's custom resources
	// live under. Required, non-empty.
	Prefix string
	// ReconcilePeriod is the Reconciler's default tick period. Defaults
	// to DefaultReconcilePeriod when zero.
	ReconcilePeriod time.Duration
	// QueueCapacity bounds each namespace's NsQueue and StatusFeedback
	// buffer. Defaults to DefaultQueueCapacity when zero.
	QueueCapacity int
	// CheckKubernetesOnStartup runs a discovery preflight before the
	// first watch. NewConfig sets it to true; Validate does not change
	// it, so a bare zero-value Config leaves it false.
	CheckKubernetesOnStartup bool
	// Retry decides whether and how long to wait before restarting a
	// failed pipeline run. Required.
	Retry retrypolicy.Policy
}

// NewConfig returns a Config with every default applied, ready for the
// caller to override individual fields before calling Validate.
func NewConfig(kind schema.GroupVersionKind, namespaceScope cluster.NamespaceScope, prefix string, retry retrypolicy.Policy) Config {
	return Config{
		Kind:                     kind,
		NamespaceScope:           namespaceScope,
		Prefix:                   prefix,
		ReconcilePeriod:          DefaultReconcilePeriod,
		QueueCapacity:            DefaultQueueCapacity,
		CheckKubernetesOnStartup: true,
		Retry:                    retry,
	}
}

// Validate checks the configuration rules of §6: kind and namespaceScope
// must be set to a recognized value, prefix must be non-empty, and
// reconcilePeriod/queueCapacity must be positive once defaulted.
func (c Config) Validate() error {
	if c.Kind.Empty() {
		return types.NewConfigError(errors.New("kind must be specified"))
	}
	if c.Prefix == "" {
		return types.NewConfigError(errors.New("prefix must be non-empty"))
	}
	switch c.NamespaceScope.(type) {
	case cluster.AllNamespaces, cluster.CurrentNamespace, cluster.Named:
	default:
		return types.NewConfigError(errors.New("namespaceScope must be one of AllNamespaces, CurrentNamespace or Named"))
	}
	if c.ReconcilePeriod < 0 {
		return types.NewConfigError(errors.New("reconcilePeriod must not be negative"))
	}
	if c.QueueCapacity < 0 {
		return types.NewConfigError(errors.New("queueCapacity must not be negative"))
	}
	if c.Retry == nil {
		return types.NewConfigError(errors.New("retry policy must be specified"))
	}
	return nil
}

// reconcilePeriod returns ReconcilePeriod with the default applied.
func (c Config) reconcilePeriod() time.Duration {
	if c.ReconcilePeriod == 0 {
		return DefaultReconcilePeriod
	}
	return c.ReconcilePeriod
}

// queueCapacity returns QueueCapacity with the default applied.
func (c Config) queueCapacity() int {
	if c.QueueCapacity == 0 {
		return DefaultQueueCapacity
	}
	return c.QueueCapacity
}
