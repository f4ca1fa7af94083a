// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"context"
	"fmt"
)

// Reader serves user reads against a cache entry, classifying each
// merged chunk run into CacheFast/CacheSlow/Backend dispatch, the Go
// analogue of cachedfile.rs's read_iter/dispatch_one_range.
type Reader struct {
	entry     *FileCacheEntry
	backend   Backend
	validator Validator
	metrics   *Metrics
	// MergingSize bounds how large a contiguous run of chunks may grow
	// before a read is split; NewReader takes it from the caller as is.
	MergingSize uint64
}

func NewReader(entry *FileCacheEntry, backend Backend, validator Validator, metrics *Metrics, mergingSize uint64) *Reader {
	return &Reader{entry: entry, backend: backend, validator: validator, metrics: metrics, MergingSize: mergingSize}
}

// needsValidation reports whether a ready chunk still requires
// decompression/validation before it can be copied straight to the
// user — true exactly when the chunk is compressed. The in-memory
// ChunkMap is never lossy, so no other case applies.
func (r *Reader) needsValidation(c ChunkInfo) bool {
	return c.Compressed
}

// Read serves the given chunk set, in offset order, returning the
// concatenated uncompressed bytes.
func (r *Reader) Read(ctx context.Context, chunks []ChunkInfo) ([]byte, error) {
	runs := mergeForUser(chunks, r.MergingSize)

	var out []byte
	for _, run := range runs {
		regions := BuildRegions(r.entry.chunks, run, r.needsValidation)
		for _, region := range regions {
			buf, err := r.dispatch(ctx, region)
			if err != nil {
				return nil, err
			}
			out = append(out, buf...)
		}
	}
	return out, nil
}

func (r *Reader) dispatch(ctx context.Context, region Region) ([]byte, error) {
	switch region.Type {
	case RegionCacheFast:
		return r.dispatchCacheFast(region)
	case RegionCacheSlow:
		return r.dispatchCacheSlow(region)
	case RegionBackend:
		return r.dispatchBackend(ctx, region)
	default:
		return nil, fmt.Errorf("unknown region type %d", region.Type)
	}
}

// dispatchCacheFast reads directly from the cache file: ready,
// uncompressed, no validation needed.
func (r *Reader) dispatchCacheFast(region Region) ([]byte, error) {
	var out []byte
	for _, c := range region.Chunks {
		buf, err := r.entry.readAt(int64(c.UncompressedOffset), int(c.UncompressedSize))
		if err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	if r.metrics != nil {
		r.metrics.WholeHits.Inc()
	}
	return out, nil
}

// dispatchCacheSlow reads the chunk's raw bytes and validates/decompresses
// into a temp buffer before copying to the user.
func (r *Reader) dispatchCacheSlow(region Region) ([]byte, error) {
	var out []byte
	for _, c := range region.Chunks {
		offset := int64(c.CompressedOffset)
		size := int(c.CompressedSize)
		if !c.Compressed {
			offset, size = int64(c.UncompressedOffset), int(c.UncompressedSize)
		}
		raw, err := r.entry.readAt(offset, size)
		if err != nil {
			return nil, err
		}
		if r.validator != nil {
			raw, err = r.validator.Validate(c, raw)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, raw...)
	}
	if r.metrics != nil {
		r.metrics.PartialHits.Inc()
	}
	return out, nil
}

// dispatchBackend fetches the region from the backend, copies it to the
// user, and persists it asynchronously — a dropped user read does not
// cancel the outstanding fetch (spec.md §5: "prefetch workers honor...
// a dropped user-read does not cancel outstanding backend fetches").
func (r *Reader) dispatchBackend(ctx context.Context, region Region) ([]byte, error) {
	first, last := region.Chunks[0], region.Chunks[len(region.Chunks)-1]
	compOffset := first.CompressedOffset
	compSize := uint32(last.CompressedOffset + uint64(last.CompressedSize) - compOffset)

	for _, c := range region.Chunks {
		r.entry.chunks.CheckAndMarkPending(c.Index)
	}

	raw, err := r.backend.ReadChunks(ctx, compOffset, compSize, region.Chunks, false)
	if err != nil {
		for _, c := range region.Chunks {
			r.entry.chunks.ClearPending(c.Index)
		}
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.BackendFetches.Inc()
		r.metrics.BufferedBackendSize.Add(float64(len(raw)))
	}

	var out []byte
	for _, c := range region.Chunks {
		start := c.CompressedOffset - compOffset
		end := start + uint64(c.CompressedSize)
		if end > uint64(len(raw)) {
			for _, cc := range region.Chunks {
				r.entry.chunks.ClearPending(cc.Index)
			}
			return nil, fmt.Errorf("backend returned fewer bytes than requested for chunk %d", c.Index)
		}
		chunkBuf := raw[start:end]
		out = append(out, chunkBuf...)

		persistBuf := allocatedBuffer(append([]byte(nil), chunkBuf...))
		go func(chunk ChunkInfo, buf dataBuffer) {
			if err := r.entry.PersistChunk(chunk, buf.slice()); err == nil && r.metrics != nil {
				r.metrics.BufferedBackendSize.Add(-float64(len(buf.slice())))
			}
		}(c, persistBuf)
	}
	return out, nil
}
