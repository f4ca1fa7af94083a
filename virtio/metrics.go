// Copyright (C) 2019 Alibaba Cloud Computing. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0 AND BSD-3-Clause

package virtio

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the transport-level counters the domain stack adds on top
// of the bare register model: how often the state machine fails and how
// many interrupts the transport has injected, exposed the way
// sandbox.Metrics registers its own collectors.
type Metrics struct {
	StateMachineFailures prometheus.Counter
	InterruptsInjected   prometheus.Counter
}

// NewMetrics constructs and optionally registers the transport's
// counters. A nil registry is fine for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateMachineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kata_virtio_mmio_state_machine_failures_total",
			Help: "Total number of illegal device-status transitions observed.",
		}),
		InterruptsInjected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kata_virtio_mmio_interrupts_injected_total",
			Help: "Total number of interrupt status bits raised by the transport.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StateMachineFailures, m.InterruptsInjected)
	}
	return m
}
