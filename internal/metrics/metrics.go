/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	prefix = "operator_core"
)

var (
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_actions_total",
			Help: "Total number of actions dispatched to a consumer, per namespace and watch verb",
		},
		[]string{"namespace", "verb"},
	)
	StatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_status_updates_total",
			Help: "Total number of status updates written to the cluster, per namespace and result",
		},
		[]string{"namespace", "result"},
	)
	QueueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_queue_length",
			Help: "Current number of actions pending in a namespace's queue",
		},
		[]string{"namespace"},
	)
	RestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_restarts_total",
			Help: "Total number of pipeline restarts performed by the supervisor",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		ActionsTotal,
		StatusUpdatesTotal,
		QueueLength,
		RestartsTotal,
	)
}
