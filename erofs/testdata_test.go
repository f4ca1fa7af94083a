// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import "encoding/binary"

// buildCompactInode encodes a 32-byte RafsV6InodeCompact header matching
// decodeRawInode's compact-layout offsets.
func buildCompactInode(layout uint16, mode uint16, nlink uint16, size uint32, rawBlkAddr uint32) []byte {
	buf := make([]byte, compactInodeSize)
	binary.LittleEndian.PutUint16(buf[0:2], layout) // format, version bit unset
	binary.LittleEndian.PutUint16(buf[4:6], mode)
	binary.LittleEndian.PutUint16(buf[6:8], nlink)
	binary.LittleEndian.PutUint32(buf[8:12], size)
	binary.LittleEndian.PutUint32(buf[16:20], rawBlkAddr)
	return buf
}

type direntSpec struct {
	name     string
	nid      uint64
	fileType uint8
}

// buildDirentBlock lays out entries as a sorted dirent array followed by
// their packed names, matching the on-disk directory block format: the
// first entry's nameoff equals len(entries)*direntSize.
func buildDirentBlock(blockSize int, entries []direntSpec) []byte {
	block := make([]byte, blockSize)
	headerLen := len(entries) * direntSize
	nameOff := headerLen
	for i, e := range entries {
		off := i * direntSize
		binary.LittleEndian.PutUint64(block[off:off+8], e.nid)
		binary.LittleEndian.PutUint16(block[off+8:off+10], uint16(nameOff))
		block[off+10] = e.fileType
		block[off+11] = 0
		copy(block[nameOff:], e.name)
		nameOff += len(e.name)
	}
	return block
}

func rootDirEntries() []direntSpec {
	return []direntSpec{
		{".", 1, fileTypeDot},
		{"..", 1, fileTypeDotDot},
		{"a", 2, 1},
		{"b", 3, 1},
		{"c", 4, 1},
	}
}

// newDirInode builds a mapping holding a directory inode at nid 1 plus
// one 4096-byte block of entries starting at block address blkAddr, and
// returns the Inode handle for it.
func newDirInode(t interface{ Fatalf(string, ...interface{}) }, blkAddr uint32, entries []direntSpec) (*Inode, *mapping) {
	const metaBlkAddr = 0
	block := buildDirentBlock(EROFSBlockSize, entries)

	dataLen := uint64(blkAddr)*EROFSBlockSize + EROFSBlockSize
	inodeOff := uint64(metaBlkAddr)*EROFSBlockSize + 1*InodeSlotSize
	total := dataLen
	if inodeOff+compactInodeSize > total {
		total = inodeOff + compactInodeSize
	}
	data := make([]byte, total)
	copy(data[uint64(blkAddr)*EROFSBlockSize:], block)

	inode := buildCompactInode(LayoutFlatPlain, 0o040000, 2, EROFSBlockSize, blkAddr)
	copy(data[inodeOff:], inode)

	m := &mapping{data: data, meta: Meta{MetaBlkAddr: metaBlkAddr, ChunkSize: EROFSBlockSize}, fd: -1}
	in, err := newInode(m, inodeOff, 1)
	if err != nil {
		t.Fatalf("newInode: %v", err)
	}
	return in, m
}
