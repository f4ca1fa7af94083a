// Copyright (c) 2016 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"github.com/kata-containers/kata-containers-sub013/pkg/refcount"
)

// StorageDevice is the capability a storage backend (typically a blob
// cache mount) exposes to the sandbox controller: a single idempotent
// teardown hook, invoked exactly once on the 1->0 refcount transition.
type StorageDevice interface {
	Cleanup() error
}

// StorageState is spec.md §3's { count: atomic u32, device: shared owner
// of StorageDevice }, implemented directly on top of refcount.Handle.
type StorageState = refcount.Handle[StorageDevice]

// AddSandboxStorage implements spec.md §4.1's add_sandbox_storage: if path
// is already present, increments its count and returns the existing
// state; otherwise inserts a new state with count 1. Callers detect a
// freshly created storage by state.Count() == 1.
func (s *Sandbox) AddSandboxStorage(path string, device StorageDevice) *StorageState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.storages[path]; ok {
		existing.Inc()
		return existing
	}

	state := refcount.New(device)
	s.storages[path] = state
	return state
}

// UpdateSandboxStorage implements spec.md §4.1's update_sandbox_storage:
// replaces the storage device for an existing path and hands back the
// previously installed device so its lifecycle can continue. Fails
// (returning the rejected device) if path is unknown.
func (s *Sandbox) UpdateSandboxStorage(path string, device StorageDevice) (StorageDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.storages[path]
	if !ok {
		return device, errStorageNotFound
	}

	old := state.Payload
	state.Payload = device
	return old, nil
}

// RemoveSandboxStorage implements spec.md §4.1's remove_sandbox_storage:
// fails with errStorageNotFound if path is unknown; otherwise decrements
// the count. On the 1->0 transition it removes the entry, calls
// device.Cleanup() exactly once, and returns true. A non-terminal
// decrement returns false.
func (s *Sandbox) RemoveSandboxStorage(path string) (bool, error) {
	s.mu.Lock()
	state, ok := s.storages[path]
	if !ok {
		s.mu.Unlock()
		return false, errStorageNotFound
	}

	terminal := state.DecAndTest()
	if terminal {
		delete(s.storages, path)
	}
	s.mu.Unlock()

	if !terminal {
		return false, nil
	}

	if err := state.Payload.Cleanup(); err != nil {
		return true, err
	}
	return true, nil
}
