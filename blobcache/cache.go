// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileCacheEntry is a plain file holding either compressed or
// uncompressed chunk bytes at their respective offsets, no header — the
// Go analogue of cachedfile.rs's FileCacheEntry. The descriptor is
// shared and needs no locking since every access uses positional I/O
// (spec.md §5: "the cache file descriptor is shared... requires no
// locking because all writes use positional I/O").
type FileCacheEntry struct {
	file       *os.File
	chunks     *ChunkMap
	compressed bool
	metrics    *Metrics
}

// NewFileCacheEntry opens (creating if necessary) the backing cache file
// for a blob with chunkCount chunks.
func NewFileCacheEntry(path string, chunkCount int, compressed bool, metrics *Metrics) (*FileCacheEntry, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file %s: %w", path, err)
	}
	return &FileCacheEntry{file: f, chunks: NewChunkMap(chunkCount), compressed: compressed, metrics: metrics}, nil
}

// Close releases the underlying file descriptor.
func (e *FileCacheEntry) Close() error {
	return e.file.Close()
}

// Chunks exposes the entry's chunk readiness map.
func (e *FileCacheEntry) Chunks() *ChunkMap { return e.chunks }

// persistChunk writes buffer at offset using a positional write, retrying
// on EINTR, and fails on a short write — the Go analogue of
// persist_chunk(file, offset, buffer).
func persistChunk(file *os.File, offset int64, buffer []byte) error {
	for {
		n, err := unix.Pwrite(int(file.Fd()), buffer, offset)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("pwrite at offset %d failed: %w", offset, err)
		}
		if n != len(buffer) {
			return fmt.Errorf("short write at offset %d: wrote %d of %d bytes", offset, n, len(buffer))
		}
		return nil
	}
}

// PersistChunk writes a single chunk's bytes to its cache-file offset
// (compressed offset if the cache stores compressed data, uncompressed
// offset otherwise) and flips its readiness bit on success.
func (e *FileCacheEntry) PersistChunk(chunk ChunkInfo, buf []byte) error {
	offset := int64(chunk.UncompressedOffset)
	if e.compressed {
		offset = int64(chunk.CompressedOffset)
	}
	if err := persistChunk(e.file, offset, buf); err != nil {
		e.chunks.ClearPending(chunk.Index)
		return err
	}
	e.chunks.SetReady(chunk.Index)
	return nil
}

// readAt reads size bytes at offset directly from the cache file via
// pread, the CacheFast/CacheSlow path's raw-bytes source.
func (e *FileCacheEntry) readAt(offset int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := unix.Pread(int(e.file.Fd()), buf, offset)
	if err != nil {
		return nil, fmt.Errorf("pread at offset %d failed: %w", offset, err)
	}
	return buf[:n], nil
}
