// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import "time"

// Config carries the tunables SPEC_FULL.md §3 adds on top of spec.md: the
// hot-online retry/backoff constants and shared-mount timing that
// original_source/src/agent/src/sandbox.rs hard-codes as constants, plus
// the OOM event channel capacity spec.md §3 fixes at 100. Loaded via
// pkg/katautils.LoadToml, following the teacher's TOML config idiom.
type Config struct {
	// HotplugPollInterval is the sleep between online_cpus retries.
	// Rust source: ONLINE_CPUMEM_WAIT_MILLIS = 50.
	HotplugPollInterval time.Duration `toml:"hotplug_poll_interval"`
	// HotplugMaxRetries bounds online_cpus' retry loop.
	// Rust source: ONLINE_CPUMEM_MAX_RETRIES = 100.
	HotplugMaxRetries int `toml:"hotplug_max_retries"`

	// SharedMountPollInterval is the poll period while waiting for a
	// shared-mount source path to appear in /proc/<pid>/mounts.
	SharedMountPollInterval time.Duration `toml:"shared_mount_poll_interval"`
	// SharedMountTimeout bounds the total wait (spec.md §4.1.1: "retrying
	// every 100 ms for up to 10 s").
	SharedMountTimeout time.Duration `toml:"shared_mount_timeout"`

	// OOMEventChannelCapacity is the bounded channel size for OOM event
	// fan-out (spec.md §3: "bounded channel (capacity 100)").
	OOMEventChannelCapacity int `toml:"oom_event_channel_capacity"`
}

// DefaultConfig returns the constants the Rust source hard-codes.
func DefaultConfig() Config {
	return Config{
		HotplugPollInterval:     50 * time.Millisecond,
		HotplugMaxRetries:       100,
		SharedMountPollInterval: 100 * time.Millisecond,
		SharedMountTimeout:      10 * time.Second,
		OOMEventChannelCapacity: 100,
	}
}
