// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package erofs implements a direct, mmap-backed reader for the EROFS
// (RAFS v6) bootstrap format spec.md §4.3 describes: metadata is read
// straight out of the mapped bytes rather than copied into a parallel
// runtime representation. Grounded on
// original_source/.../nydus-rafs/src/metadata/direct_v6.rs, translated
// from Rust's raw-pointer-plus-ArcSwap design into a safe, unsafe-free Go
// shape: fixed-width fields are decoded with encoding/binary against byte
// slices from a mmap'd region (golang.org/x/sys/unix.Mmap) instead of the
// source's `&*(ptr as *const T)` struct overlay, and the RCU-like
// super-block swap becomes an atomic.Pointer rather than arc-swap.
package erofs

// EROFSBlockSize is the fixed on-disk block size; all metadata offsets
// are block-aligned multiples of it.
const EROFSBlockSize = 4096

// InodeSlotSize is the on-disk stride between inode numbers.
const InodeSlotSize = 32

// Inode data-layout values, packed into the low bits of the raw `format`
// field (spec.md §4.3: "{FLAT_PLAIN=0, FLAT_INLINE=2, CHUNK_BASED=4}").
const (
	LayoutFlatPlain  = 0
	LayoutFlatInline = 2
	LayoutChunkBased = 4
)

// format field bit layout: low bits are the data-layout, the next bit
// selects compact (0) vs extended (1) inode width.
const (
	dataLayoutBits  = 1
	dataLayoutMask  = 0x7
	versionBit      = 0x1 << 3
)

// Compact and extended on-disk inode encoded sizes, matching
// RafsV6InodeCompact/RafsV6InodeExtended.
const (
	compactInodeSize  = 32
	extendedInodeSize = 64
)

// RafsV6Dirent is 12 bytes on disk: { nid u64, nameoff u16, file_type u8,
// reserved u8 }.
const direntSize = 12

// MaxNameLen bounds a dirent/xattr name, per spec.md §4.3's invariant
// "Names must be <= 255 bytes".
const MaxNameLen = 255

// MaxInodeNumber is the largest legal inode number, per spec.md §4.3:
// "inode number <= 0xff_ffff_ffff_fffe".
const MaxInodeNumber = 0xff_ffff_ffff_fffe
