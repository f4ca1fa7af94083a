// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package refcount implements the "shared ownership with reference
// counting" pattern called out in the design notes: an atomic counter
// decides when to drop, while the payload stays alive until the last
// holder releases it. It grounds sandbox.StorageState
// (add/update/remove_sandbox_storage), which follows the
// inc(Acquire)/dec-and-test(AcqRel) shape of
// original_source/src/agent/src/sandbox.rs's StorageState.
package refcount

import "sync/atomic"

// Handle wraps a payload of type T behind an atomic reference count. The
// zero value is not usable; construct with New.
type Handle[T any] struct {
	count   atomic.Uint32
	Payload T
}

// New creates a Handle with an initial count of 1, matching
// StorageState::new() which starts count at 1 for the inserting caller.
func New[T any](payload T) *Handle[T] {
	h := &Handle[T]{Payload: payload}
	h.count.Store(1)
	return h
}

// Inc increments the reference count with acquire ordering, mirroring
// StorageState::inc_ref_count's Ordering::Acquire fetch_add. Returns the
// count after the increment.
func (h *Handle[T]) Inc() uint32 {
	return h.count.Add(1)
}

// DecAndTest decrements the reference count with acq-rel ordering and
// reports whether this decrement performed the 1->0 transition, mirroring
// StorageState::dec_and_test_ref_count. Callers must invoke cleanup logic
// exactly once, only when DecAndTest returns true.
func (h *Handle[T]) DecAndTest() bool {
	return h.count.Add(^uint32(0)) == 0
}

// Count returns a point-in-time snapshot of the reference count.
func (h *Handle[T]) Count() uint32 {
	return h.count.Load()
}
