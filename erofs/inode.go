// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Inode is a handle onto a single on-disk inode, the Go analogue of
// OndiskInodeWrapper. ParentInode and Name are the "interior-mutable
// lazily computed fields" spec.md §9 calls out: single-writer cells
// initialized once, read many times, never torn — implemented here with
// sync.Once rather than Rust's Cell/RefCell since Go has no cheap
// single-threaded cell and the source itself notes "implementations
// without cheap cells may use a lock plus a flag".
type Inode struct {
	mapping *mapping
	offset  uint64
	nid     uint64

	blocksCount uint64

	parentOnce sync.Once
	parentVal  uint64
	parentSet  bool

	nameOnce sync.Once
	nameVal  string
}

func newInode(m *mapping, offset, nid uint64) (*Inode, error) {
	raw, extended, err := decodeRawInode(m, offset)
	if err != nil {
		return nil, err
	}
	size := raw.size(extended)
	return &Inode{
		mapping:     m,
		offset:      offset,
		nid:         nid,
		blocksCount: divRoundUp(size, EROFSBlockSize),
	}, nil
}

// WithParent returns a copy of in with its parent-inode cell pre-filled,
// the equivalent of inode_wrapper_with_info: for non-directory children
// discovered via a directory walk, the on-disk inode carries no parent
// pointer, so the caller supplies it once at construction.
func (in *Inode) WithParent(parent uint64, name string) *Inode {
	clone := *in
	clone.parentOnce = sync.Once{}
	clone.nameOnce = sync.Once{}
	clone.parentOnce.Do(func() {})
	clone.parentVal = parent
	clone.parentSet = true
	clone.nameOnce.Do(func() {})
	clone.nameVal = name
	return &clone
}

// ParentInode returns the cached parent inode number, if one was set via
// WithParent.
func (in *Inode) ParentInode() (uint64, bool) {
	return in.parentVal, in.parentSet
}

// Name returns the cached name, if one was set via WithParent.
func (in *Inode) Name() string {
	return in.nameVal
}

// NID is the inode number this handle addresses.
func (in *Inode) NID() uint64 { return in.nid }

// rawInode is the decoded subset of fields both compact and extended
// on-disk layouts share, read without unsafe pointer casts.
type rawInode struct {
	format     uint16
	xattrCount uint16
	size32     uint32
	size64     uint64
	nlink      uint32
	mode       uint16
	rawBlkAddr uint32
}

func (r rawInode) isExtended() bool {
	return r.format&versionBit != 0
}

func (r rawInode) layout() uint16 {
	return r.format & dataLayoutMask
}

func (r rawInode) size(extended bool) uint64 {
	if extended {
		return r.size64
	}
	return uint64(r.size32)
}

// decodeRawInode reads the compact or extended inode header at offset,
// selected by the version bit in the format field exactly as
// DirectSuperBlockV6::disk_inode does.
func decodeRawInode(m *mapping, offset uint64) (rawInode, bool, error) {
	head, err := m.byteRange(offset, 2)
	if err != nil {
		return rawInode{}, false, err
	}
	format := binary.LittleEndian.Uint16(head)
	extended := format&versionBit != 0

	size := uint64(compactInodeSize)
	if extended {
		size = extendedInodeSize
	}
	buf, err := m.byteRange(offset, size)
	if err != nil {
		return rawInode{}, false, err
	}

	r := rawInode{format: format, xattrCount: binary.LittleEndian.Uint16(buf[2:4])}
	if extended {
		// RafsV6InodeExtended: format(2) xattr_count(2) mode(2)
		// reserved2(2) size(8) u(4) ino(4) uid(4) gid(4) mtime(8)
		// mtime_nsec(4) nlink(4) reserved(16)
		r.mode = binary.LittleEndian.Uint16(buf[4:6])
		r.size64 = binary.LittleEndian.Uint64(buf[8:16])
		r.rawBlkAddr = binary.LittleEndian.Uint32(buf[16:20])
		r.nlink = binary.LittleEndian.Uint32(buf[44:48])
	} else {
		// RafsV6InodeCompact: format(2) xattr_count(2) mode(2) nlink(2)
		// size(4) reserved(4) u(4) ino(4) uid(2) gid(2) reserved2(4)
		r.mode = binary.LittleEndian.Uint16(buf[4:6])
		r.nlink = uint32(binary.LittleEndian.Uint16(buf[6:8]))
		r.size32 = binary.LittleEndian.Uint32(buf[8:12])
		r.rawBlkAddr = binary.LittleEndian.Uint32(buf[16:20])
	}
	return r, extended, nil
}

// IsDir reports whether this inode is a directory, derived from the POSIX
// mode bits the same way disk_inode().mode() is interpreted upstream.
func (in *Inode) IsDir() (bool, error) {
	r, ext, err := decodeRawInode(in.mapping, in.offset)
	if err != nil {
		return false, err
	}
	_ = ext
	const sIFDIR = 0o040000
	const sIFMT = 0o170000
	return r.mode&sIFMT == sIFDIR, nil
}

// Size returns the inode's on-disk size field (file length for regular
// files, directory block bytes for directories).
func (in *Inode) Size() (uint64, error) {
	r, ext, err := decodeRawInode(in.mapping, in.offset)
	if err != nil {
		return 0, err
	}
	return r.size(ext), nil
}

// layoutInfo returns the inode's data layout and, for FLAT_PLAIN/
// FLAT_INLINE directories, the starting block address of its data —
// the fields GetChildByName/GetChildByIndex need to locate dirent blocks.
func (in *Inode) layoutInfo() (layout uint16, blkAddr uint32, size uint64, err error) {
	r, ext, err := decodeRawInode(in.mapping, in.offset)
	if err != nil {
		return 0, 0, 0, err
	}
	return r.layout(), r.rawBlkAddr, r.size(ext), nil
}

// Validate enforces the invariants spec.md §4.3 states: the mapping must
// fully contain the inode's compact or extended header, and names/inode
// numbers stay within bounds.
func (in *Inode) Validate() error {
	if in.nid > MaxInodeNumber {
		return fmt.Errorf("inode number %d exceeds maximum %d", in.nid, MaxInodeNumber)
	}
	if _, _, err := decodeRawInode(in.mapping, in.offset); err != nil {
		return fmt.Errorf("invalid inode mapping range: %w", err)
	}
	if len(in.nameVal) > MaxNameLen {
		return fmt.Errorf("inode %d name exceeds %d bytes", in.nid, MaxNameLen)
	}
	return nil
}

func divRoundUp(n, d uint64) uint64 {
	return (n + d - 1) / d
}
