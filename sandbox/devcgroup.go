// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import "sync"

// DeviceCgroupInfo is the shared, interior-mutable device-cgroup
// aggregator spec.md §3 names (devcg_info): many readers, rare writers,
// so it is backed by a plain RWMutex per spec.md §5 ("reader-writer lock;
// device registrations are writers, lookups are readers").
type DeviceCgroupInfo struct {
	mu      sync.RWMutex
	devices map[string]string // guest PCI address -> cgroup device rule
}

// NewDeviceCgroupInfo returns an empty aggregator.
func NewDeviceCgroupInfo() *DeviceCgroupInfo {
	return &DeviceCgroupInfo{devices: make(map[string]string)}
}

// Register records a device cgroup rule for a guest PCI address.
func (d *DeviceCgroupInfo) Register(pciAddr, rule string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices[pciAddr] = rule
}

// Lookup returns the cgroup rule registered for pciAddr, if any.
func (d *DeviceCgroupInfo) Lookup(pciAddr string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rule, ok := d.devices[pciAddr]
	return rule, ok
}
