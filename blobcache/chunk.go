// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

// ChunkInfo describes one chunk's placement within the blob's compressed
// and uncompressed address spaces, the fields read_chunks/persist_chunk
// need regardless of which backend or compression algorithm produced
// them. Compression and digest verification are injected (spec.md's
// Non-goals treat them as opaque `compress.Algorithm`/`digest.Algorithm`
// enums with no bodies here).
type ChunkInfo struct {
	Index              int
	CompressedOffset   uint64
	CompressedSize     uint32
	UncompressedOffset uint64
	UncompressedSize   uint32
	Compressed         bool
}

// contiguous reports whether b immediately follows a in the compressed
// address space, the grouping test prefetch_range uses to batch pending
// chunks into one backend call.
func contiguous(a, b ChunkInfo) bool {
	return a.CompressedOffset+uint64(a.CompressedSize) == b.CompressedOffset
}

// groupContiguous partitions chunks (already sorted by compressed
// offset) into runs of mutually contiguous chunks: prefetch_range's
// grouping step, done here by compressed-offset adjacency (see
// contiguous) rather than by chunk index.
func groupContiguous(chunks []ChunkInfo) [][]ChunkInfo {
	if len(chunks) == 0 {
		return nil
	}
	var groups [][]ChunkInfo
	start := 0
	for i := 1; i < len(chunks); i++ {
		if !contiguous(chunks[i-1], chunks[i]) {
			groups = append(groups, chunks[start:i])
			start = i
		}
	}
	groups = append(groups, chunks[start:])
	return groups
}
