/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

// Package retrypolicy implements the Supervisor's restart decision: how
// long to wait before restarting a failed pipeline run, and how many
// times (if ever) to give up.
package retrypolicy

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Policy is the closed sum of retry strategies a Supervisor can be
// configured with.
type Policy interface {
	// Next returns the delay to sleep before the next restart attempt,
	// the policy to use for the attempt after that, and whether a
	// restart should happen at all. When ok is false, delay and next are
	// meaningless and the Supervisor gives up.
	Next() (delay time.Duration, next Policy, ok bool)
}

// Times restarts up to Remaining more times, waiting Delay before the
// first of those restarts and multiplying Delay by Multiplier after each
// one.
type Times struct {
	Remaining  int
	Delay      time.Duration
	Multiplier float64
}

func (p Times) Next() (time.Duration, Policy, bool) {
	if p.Remaining <= 0 {
		return 0, nil, false
	}
	next := Times{
		Remaining:  p.Remaining - 1,
		Delay:      time.Duration(float64(p.Delay) * p.Multiplier),
		Multiplier: p.Multiplier,
	}
	return p.Delay, next, true
}

// Infinite always restarts, waiting a jittered duration in roughly
// [MinDelay, MaxDelay] each time. The policy itself never changes.
type Infinite struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

func (p Infinite) Next() (time.Duration, Policy, bool) {
	if p.MinDelay <= 0 || p.MaxDelay <= p.MinDelay {
		return p.MinDelay, p, true
	}
	factor := float64(p.MaxDelay-p.MinDelay) / float64(p.MinDelay)
	return wait.Jitter(p.MinDelay, factor), p, true
}
