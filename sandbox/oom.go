// Copyright (c) 2019 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

// RunOOMEventMonitor implements spec.md §3/§4's OOM event fan-out: for
// every notification received off rx it forwards containerID onto the
// sandbox's bounded event channel, incrementing Metrics.OOMEventsTotal per
// delivery. It
// returns once rx is closed, the way original_source/src/agent/src/
// sandbox.rs's watcher task exits when its cgroup notification source is
// torn down.
func (s *Sandbox) RunOOMEventMonitor(rx <-chan struct{}, containerID string) {
	for range rx {
		s.mu.Lock()
		ch := s.eventTx
		s.mu.Unlock()

		if ch == nil {
			continue
		}

		select {
		case ch <- containerID:
			if s.Metrics != nil {
				s.Metrics.OOMEventsTotal.Inc()
			}
		default:
			// Bounded channel full: drop rather than block the monitor,
			// matching spec.md's "bounded channel" semantics.
		}
	}
}

// Events exposes the sandbox's OOM event channel for consumption by the
// component forwarding them over vsock/gRPC.
func (s *Sandbox) Events() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventTx
}
