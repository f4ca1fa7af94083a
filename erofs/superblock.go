// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub013/pkg/katautils"
)

// Meta carries the bootstrap-wide fields the original's RafsSuperMeta
// struct bundles: the block address the inode table starts at and the
// configured chunk size.
type Meta struct {
	MetaBlkAddr uint32
	ChunkSize   uint32
}

// mapping is a single mmap'd snapshot of a bootstrap file, equivalent to
// DirectMappingState. Immutable once constructed; a new one replaces it
// wholesale on reload.
type mapping struct {
	data []byte
	meta Meta
	fd   int
}

func (m *mapping) unmap() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if m.fd >= 0 {
		_ = unix.Close(m.fd)
		m.fd = -1
	}
	return err
}

// byteRange validates and returns data[offset:offset+size], the Go
// analogue of DirectMappingState::cast_to_ref's bounds check (without the
// pointer arithmetic — Go slicing already bounds-checks, but the explicit
// check keeps the error message and intent identical to the source).
func (m *mapping) byteRange(offset, size uint64) ([]byte, error) {
	end := offset + size
	if end < offset || end > uint64(len(m.data)) {
		return nil, fmt.Errorf("invalid mmap range [%d, %d)", offset, end)
	}
	return m.data[offset:end], nil
}

// SuperBlock is the directly mapped RAFS v6 super block. Readers obtain a
// short-lived snapshot via Load(); Reload() installs a fresh mapping with
// a single atomic pointer swap, so in-flight readers keep working against
// their already-loaded snapshot (spec.md §9: "RCU-like state swap ... an
// atomic pointer swap is sufficient; readers take a short-lived
// snapshot").
type SuperBlock struct {
	state atomic.Pointer[mapping]
}

// NewSuperBlock mmaps path read-only and installs it as the initial
// snapshot.
func NewSuperBlock(path string, meta Meta) (*SuperBlock, error) {
	sb := &SuperBlock{}
	if err := sb.Reload(path, meta); err != nil {
		return nil, err
	}
	return sb, nil
}

// Reload mmaps path afresh and atomically swaps it in, releasing the
// previous mapping.
func (sb *SuperBlock) Reload(path string, meta Meta) error {
	resolved, err := katautils.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("failed to resolve bootstrap path %s: %w", path, err)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return fmt.Errorf("failed to open bootstrap %s: %w", resolved, err)
	}
	defer f.Close()

	size, err := bootstrapSize(f, resolved)
	if err != nil {
		return err
	}
	if size < EROFSBlockSize {
		return fmt.Errorf("bootstrap %s too small: %d bytes", resolved, size)
	}

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return fmt.Errorf("failed to dup bootstrap fd: %w", err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("failed to mmap bootstrap %s: %w", resolved, err)
	}

	next := &mapping{data: data, meta: meta, fd: fd}
	prev := sb.state.Swap(next)
	if prev != nil {
		_ = prev.unmap()
	}
	return nil
}

// bootstrapSize returns the mmap-able length of the bootstrap at path. A
// virtio-blk-backed RAFS bootstrap exposed straight to the guest as a block
// device has no filesystem around it, so regular os.Stat().Size() reports 0
// instead of the device's real extent; BLKGETSIZE64 is the only way to
// learn it.
func bootstrapSize(f *os.File, path string) (int, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat bootstrap %s: %w", path, err)
	}

	if !katautils.IsBlockDevice(path) {
		return int(info.Size()), nil
	}

	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, fmt.Errorf("failed to read block device size for bootstrap %s: %w", path, err)
	}
	return size, nil
}

// Close releases the current mapping.
func (sb *SuperBlock) Close() error {
	prev := sb.state.Swap(nil)
	if prev == nil {
		return nil
	}
	return prev.unmap()
}

// snapshot returns the currently installed mapping; callers must not
// retain it across a Reload if they need the newest data, but the bytes
// behind a previously loaded snapshot stay valid until that snapshot is
// unmapped (nothing unmaps a mapping while any Go reference into its byte
// slice could plausibly still execute inline within one request).
func (sb *SuperBlock) snapshot() (*mapping, error) {
	m := sb.state.Load()
	if m == nil {
		return nil, fmt.Errorf("super block not loaded")
	}
	return m, nil
}

// Inode constructs a handle for the given inode number.
func (sb *SuperBlock) Inode(nid uint64) (*Inode, error) {
	m, err := sb.snapshot()
	if err != nil {
		return nil, err
	}
	offset := uint64(m.meta.MetaBlkAddr)*EROFSBlockSize + nid*InodeSlotSize
	return newInode(m, offset, nid)
}
