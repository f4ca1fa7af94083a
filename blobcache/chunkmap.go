// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package blobcache implements a local cache file mirroring portions of a
// remote blob, chunk readiness tracked by a CAS-based chunk map. Grounded
// on original_source/.../cache/cachedfile.rs.
package blobcache

import (
	"sync/atomic"
	"time"
)

// chunkState mirrors the three observable states cachedfile.rs's
// chunk_map entries carry: idle, pending (a fetch is in flight), ready
// (bytes are valid on the cache file).
type chunkState uint32

const (
	chunkIdle chunkState = iota
	chunkPending
	chunkReady
)

// ChunkMap tracks readiness for every chunk of one blob, backed by a CAS
// state per chunk so concurrent readers and prefetch workers can race
// without a lock (spec.md §5: "each chunk has three observable states...
// transitions are CAS-based").
type ChunkMap struct {
	states []atomic.Uint32
}

// NewChunkMap allocates a chunk map for a blob with the given chunk count.
func NewChunkMap(chunkCount int) *ChunkMap {
	return &ChunkMap{states: make([]atomic.Uint32, chunkCount)}
}

func (m *ChunkMap) get(i int) chunkState {
	return chunkState(m.states[i].Load())
}

// IsReady reports whether chunk i is ready.
func (m *ChunkMap) IsReady(i int) bool {
	return m.get(i) == chunkReady
}

// CheckAndMarkPending atomically transitions chunk i from idle to
// pending and reports whether it did (false if already pending or
// ready), the single-chunk analogue of check_range_ready_and_mark_pending.
func (m *ChunkMap) CheckAndMarkPending(i int) bool {
	return m.states[i].CompareAndSwap(uint32(chunkIdle), uint32(chunkPending))
}

// SetReady flips chunk i to ready unconditionally, clearing pending.
func (m *ChunkMap) SetReady(i int) {
	m.states[i].Store(uint32(chunkReady))
}

// ClearPending resets chunk i back to idle so a later reader may retry,
// the failure path cachedfile.rs takes when a backend fetch fails.
func (m *ChunkMap) ClearPending(i int) {
	m.states[i].CompareAndSwap(uint32(chunkPending), uint32(chunkIdle))
}

// CheckRangeReadyAndMarkPending makes every non-ready chunk in
// [start, start+count) pending atomically and returns the indices that
// were newly pended (spec.md §5's range-variant invariant).
func (m *ChunkMap) CheckRangeReadyAndMarkPending(start, count int) []int {
	var pended []int
	for i := start; i < start+count; i++ {
		if m.get(i) == chunkReady {
			continue
		}
		if m.CheckAndMarkPending(i) {
			pended = append(pended, i)
		}
	}
	return pended
}

// WaitForRangeReady blocks until every chunk in [start, start+count) is
// ready or the timeout elapses, returning false if any remains not ready.
func (m *ChunkMap) WaitForRangeReady(start, count int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	const pollInterval = 5 * time.Millisecond
	for {
		allReady := true
		for i := start; i < start+count; i++ {
			if !m.IsReady(i) {
				allReady = false
				break
			}
		}
		if allReady {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
