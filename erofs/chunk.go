// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import (
	"encoding/binary"
	"fmt"
)

// chunkAddrSize is the on-disk size of a RafsV6InodeChunkAddr record:
// { blob_ci_index u32:24, blob_index u8:8 } packed into 4 bytes, followed
// by a 4-byte block address.
const chunkAddrSize = 8

// RafsV6InodeChunkAddr resolves one logical chunk of a CHUNK_BASED inode
// to a blob and a compressed-data block address within it.
type RafsV6InodeChunkAddr struct {
	// BlobIndex is 1-based; 0 means "no blob", per spec.md §3.
	BlobIndex     uint8
	BlobCompIndex uint32
	BlockAddr     uint32
}

// Valid reports whether the address identifies real backing data. Blob
// indices are 1-based, so an address with BlobIndex 0 names no blob and
// is rejected whatever its BlockAddr; the all-zero address is invalid.
func (a RafsV6InodeChunkAddr) Valid() bool {
	return a.BlobIndex != 0
}

// decodeChunkAddr reads a RafsV6InodeChunkAddr from buf, matching
// RafsV6InodeChunkAddr::from_slice: the first 4 bytes pack a 24-bit
// comp-index with an 8-bit blob index, the next 4 bytes are the block
// address.
func decodeChunkAddr(buf []byte) (RafsV6InodeChunkAddr, error) {
	if len(buf) < chunkAddrSize {
		return RafsV6InodeChunkAddr{}, fmt.Errorf("chunk address buffer too small: %d bytes", len(buf))
	}
	packed := binary.LittleEndian.Uint32(buf[0:4])
	addr := RafsV6InodeChunkAddr{
		BlobCompIndex: packed & 0x00ff_ffff,
		BlobIndex:     uint8(packed >> 24),
		BlockAddr:     binary.LittleEndian.Uint32(buf[4:8]),
	}
	return addr, nil
}

// ChunkAddr returns the chunkIndex'th chunk address of a CHUNK_BASED
// inode. Chunk addresses for such inodes are stored as a flat array
// immediately following the compact/extended inode header.
func (in *Inode) ChunkAddr(chunkIndex uint32) (RafsV6InodeChunkAddr, error) {
	layout, _, _, err := in.layoutInfo()
	if err != nil {
		return RafsV6InodeChunkAddr{}, err
	}
	if layout != LayoutChunkBased {
		return RafsV6InodeChunkAddr{}, fmt.Errorf("inode %d is not chunk-based (layout %d)", in.nid, layout)
	}
	extended := in.isExtended()
	headerSize := uint64(compactInodeSize)
	if extended {
		headerSize = extendedInodeSize
	}
	offset := in.offset + headerSize + uint64(chunkIndex)*chunkAddrSize
	buf, err := in.mapping.byteRange(offset, chunkAddrSize)
	if err != nil {
		return RafsV6InodeChunkAddr{}, err
	}
	return decodeChunkAddr(buf)
}

func (in *Inode) isExtended() bool {
	r, ext, err := decodeRawInode(in.mapping, in.offset)
	if err != nil {
		return false
	}
	_ = r
	return ext
}
