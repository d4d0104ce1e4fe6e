/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package operator

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"

	"github.com/sap/go-operator-core/pkg/cluster"
	"github.com/sap/go-operator-core/pkg/controller"
	"github.com/sap/go-operator-core/pkg/decoder"
	"github.com/sap/go-operator-core/pkg/statusfeedback"
	"github.com/sap/go-operator-core/pkg/supervisor"
)

// Pipeline is the fully wired, ready-to-run operator for one resource
// kind: a validated Config, a production cluster.Client, and a
// Supervisor driving the Watcher/Reconciler/Dispatcher/Consumer chain.
type Pipeline[T, U any] struct {
	config     Config
	supervisor *supervisor.Supervisor[T, U]
}

// NewPipeline validates cfg, builds the production cluster.Client for
// cfg.Kind, and wires the Supervisor around ctrl. currentNamespace is
// forwarded to cluster.NewClient for the CurrentNamespace scope;
// resolving it is the caller's responsibility.
func NewPipeline[T, U any](
	cfg Config,
	restConfig *rest.Config,
	scheme *runtime.Scheme,
	currentNamespace string,
	ctrl controller.Controller[T, U],
	unmarshal decoder.UnmarshalFunc[T, U],
	marshal statusfeedback.MarshalFunc[U],
) (*Pipeline[T, U], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := cluster.NewClient(restConfig, cfg.Kind, scheme, cfg.Prefix, currentNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "error building cluster client")
	}

	sup := supervisor.New[T, U](supervisor.Params[T, U]{
		Client:                   client,
		Kind:                     cfg.Kind,
		Scope:                    cfg.NamespaceScope,
		Controller:               ctrl,
		Unmarshal:                unmarshal,
		Marshal:                  marshal,
		ReconcilePeriod:          cfg.reconcilePeriod(),
		QueueCapacity:            cfg.queueCapacity(),
		CheckKubernetesOnStartup: cfg.CheckKubernetesOnStartup,
	})

	return &Pipeline[T, U]{config: cfg, supervisor: sup}, nil
}

// Run drives the pipeline under the configured retry policy until ctx is
// cancelled or the policy gives up, returning the final attempt's exit
// code and error (§6 Exit codes).
func (p *Pipeline[T, U]) Run(ctx context.Context, log logr.Logger) (controller.ExitCode, error) {
	return p.supervisor.RunWithRestart(ctx, log, p.config.Retry)
}
