// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the sandbox-level counters SPEC_FULL.md §3 adds. NewSandbox
// builds them with NewMetrics(nil), so a sandbox's counters are not
// registered anywhere; NewMetrics registers them only when given a
// registry, the way the teacher's pkg/kata-monitor registers its own
// collectors against a shared prometheus.Registry.
type Metrics struct {
	CPUsOnlinedTotal    prometheus.Counter
	MemoryOnlinedTotal  prometheus.Counter
	OOMEventsTotal      prometheus.Counter
	SharedMountFailures prometheus.Counter
}

// NewMetrics constructs and registers the sandbox's counters against reg.
// Passing a nil registry is allowed for tests that don't care about
// exposition.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CPUsOnlinedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_cpus_onlined_total",
			Help: "Total number of guest CPUs brought online.",
		}),
		MemoryOnlinedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_memory_blocks_onlined_total",
			Help: "Total number of guest memory blocks brought online.",
		}),
		OOMEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_oom_events_total",
			Help: "Total number of OOM events forwarded to the event channel.",
		}),
		SharedMountFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_shared_mount_failures_total",
			Help: "Total number of per-mount failures in setup_shared_mounts.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.CPUsOnlinedTotal, m.MemoryOnlinedTotal, m.OOMEventsTotal, m.SharedMountFailures)
	}

	return m
}
