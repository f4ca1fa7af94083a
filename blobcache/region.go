// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import "sort"

// RegionType classifies how a merged run of chunks will be satisfied,
// mirroring cachedfile.rs's dispatch_one_range three-way split.
type RegionType int

const (
	// RegionCacheFast: ready, uncompressed, no validation needed — read
	// directly from the cache file into the user buffer.
	RegionCacheFast RegionType = iota
	// RegionCacheSlow: ready but validation or decompression needed, or
	// the chunk map is lossy — read+validate into a temp buffer, then
	// copy to the user.
	RegionCacheSlow
	// RegionBackend: not ready — fetch from backend, copy to user,
	// persist asynchronously.
	RegionBackend
)

// Region is one contiguous, same-type run of chunks a single I/O call
// can satisfy.
type Region struct {
	Type   RegionType
	Chunks []ChunkInfo
}

func classify(chunks *ChunkMap, c ChunkInfo, needsValidation bool) RegionType {
	if !chunks.IsReady(c.Index) {
		return RegionBackend
	}
	if c.Compressed || needsValidation {
		return RegionCacheSlow
	}
	return RegionCacheFast
}

// mergeForUser sorts chunks by uncompressed blob offset and merges
// adjacent ones into runs no larger than mergingSize, the Go analogue of
// merge_requests_for_user.
func mergeForUser(chunks []ChunkInfo, mergingSize uint64) [][]ChunkInfo {
	if len(chunks) == 0 {
		return nil
	}
	sorted := make([]ChunkInfo, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UncompressedOffset < sorted[j].UncompressedOffset })

	var runs [][]ChunkInfo
	start := 0
	runSize := uint64(sorted[0].UncompressedSize)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		contiguous := prev.UncompressedOffset+uint64(prev.UncompressedSize) == cur.UncompressedOffset
		if contiguous && runSize+uint64(cur.UncompressedSize) <= mergingSize {
			runSize += uint64(cur.UncompressedSize)
			continue
		}
		runs = append(runs, sorted[start:i])
		start = i
		runSize = uint64(cur.UncompressedSize)
	}
	runs = append(runs, sorted[start:])
	return runs
}

// BuildRegions classifies a merged run of chunks into typed Regions. A
// new Region begins whenever the chunk's type differs from the
// in-progress one or it does not continue the previous chunk's offset —
// the "last_region_joinable" rule cachedfile.rs's FileIoMergeState
// enforces.
func BuildRegions(chunks *ChunkMap, run []ChunkInfo, needsValidation func(ChunkInfo) bool) []Region {
	var regions []Region
	for _, c := range run {
		t := classify(chunks, c, needsValidation(c))
		if len(regions) > 0 {
			last := &regions[len(regions)-1]
			lastChunk := last.Chunks[len(last.Chunks)-1]
			joinable := last.Type == t && lastChunk.UncompressedOffset+uint64(lastChunk.UncompressedSize) == c.UncompressedOffset
			if joinable {
				last.Chunks = append(last.Chunks, c)
				continue
			}
		}
		regions = append(regions, Region{Type: t, Chunks: []ChunkInfo{c}})
	}
	return regions
}
