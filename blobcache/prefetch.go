// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"context"
	"sort"
)

// PrefetchRange prefetches a contiguous set of chunks into entry's cache
// file, grounded on cachedfile.rs's prefetch_range:
//  1. For each chunk, check chunk_map; already-ready chunks are skipped
//     entirely (Scenario S8: zero backend calls, no writes).
//  2. Not-ready chunks are marked pending and grouped by adjacency in the
//     compressed address space.
//  3. Groups are fetched from the backend in order, one call each, and
//     persisted (Scenario S9: exactly one backend fetch covering the
//     single not-ready chunk). The first failing group stops the
//     prefetch, and every chunk this call still holds pending (the failed
//     group and any group not yet fetched) is reset to idle so later
//     requests can retry.
func PrefetchRange(ctx context.Context, entry *FileCacheEntry, chunks []ChunkInfo, backend Backend) error {
	sorted := make([]ChunkInfo, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CompressedOffset < sorted[j].CompressedOffset })

	var pending []ChunkInfo
	for _, c := range sorted {
		if entry.chunks.IsReady(c.Index) {
			continue
		}
		if entry.chunks.CheckAndMarkPending(c.Index) {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	for _, group := range groupContiguous(pending) {
		if err := fetchAndPersistGroup(ctx, entry, group, backend); err != nil {
			for _, c := range pending {
				entry.chunks.ClearPending(c.Index)
			}
			blobcacheLog.WithError(err).WithField("group_size", len(group)).Warn("prefetch group failed, chunks reset to idle")
			return err
		}
	}
	return nil
}

func fetchAndPersistGroup(ctx context.Context, entry *FileCacheEntry, group []ChunkInfo, backend Backend) error {
	first, last := group[0], group[len(group)-1]
	compOffset := first.CompressedOffset
	compSize := uint32(last.CompressedOffset + uint64(last.CompressedSize) - compOffset)

	raw, err := backend.ReadChunks(ctx, compOffset, compSize, group, true)
	if err != nil {
		return err
	}
	if entry.metrics != nil {
		entry.metrics.BackendFetches.Inc()
	}

	for _, c := range group {
		start := c.CompressedOffset - compOffset
		end := start + uint64(c.CompressedSize)
		if end > uint64(len(raw)) {
			return errShortBackendRead(compSize, len(raw))
		}
		if err := entry.PersistChunk(c, raw[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func errShortBackendRead(want uint32, got int) error {
	return &shortReadError{want: want, got: got}
}

type shortReadError struct {
	want uint32
	got  int
}

func (e *shortReadError) Error() string {
	return "backend returned fewer bytes than requested"
}
