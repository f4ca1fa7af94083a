// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

// dataBuffer is the reuse-vs-allocate abstraction cachedfile.rs's
// DataBuffer enum provides: a Backend-classified read needs its fetched
// bytes both persisted to the cache file and copied into the user's
// buffer, so this lets dispatch_backend do both without a double
// allocation — either it borrows the caller's destination slice
// directly (Reused) or owns a freshly fetched buffer (Allocated).
type dataBuffer struct {
	bytes  []byte
	reused bool
}

func reusedBuffer(dst []byte) dataBuffer {
	return dataBuffer{bytes: dst, reused: true}
}

func allocatedBuffer(raw []byte) dataBuffer {
	return dataBuffer{bytes: raw, reused: false}
}

func (b dataBuffer) slice() []byte { return b.bytes }
