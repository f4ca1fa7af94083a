// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import "fmt"

// BlobIoDesc addresses one chunk-sized (or partial) slice of data within
// a single chunk, the Go analogue of BlobIoChunk plus its offset/size.
type BlobIoDesc struct {
	ChunkIndex uint32
	Offset     uint32
	Size       uint32
	UserIO     bool
}

// BlobIoVec groups one or more contiguous BlobIoDesc entries that a
// caller can satisfy with a single backend read, the Go analogue of
// BlobIoVec/BlobIoMerge. ContentOffset is the offset within the vec's
// first chunk; Size is the combined length across all of Descs.
type BlobIoVec struct {
	Descs         []BlobIoDesc
	ContentOffset uint64
	Size          uint64
}

// AllocBioVecs partitions the byte range [offset, offset+size) into
// chunk-aligned descriptors, grounded on direct_v6.rs's alloc_bio_vecs
// (Testable Property #8). Only the leading chunk can be partially
// aligned (a nonzero content offset arises solely from the read's start
// not landing on a chunk boundary); every chunk after it starts at
// content offset 0, so the algorithm flushes a new BlobIoVec exactly
// once — after the leading partial chunk, if there is one — and merges
// everything from there into a single trailing vec.
//
// Scenario S6: alloc_bio_vecs(offset=0x1800, size=0x2000) with 4 KiB
// chunks yields two vecs: {content_offset: 0x800, len: 0x800} for the
// tail of the chunk the read starts in, then {content_offset: 0, len:
// 0x1800} for the fully chunk-aligned remainder.
func (in *Inode) AllocBioVecs(offset uint64, size int, userIO bool) ([]BlobIoVec, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid read size %d", size)
	}
	chunkSize := uint64(in.mapping.meta.ChunkSize)
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size not configured")
	}

	remaining := uint64(size)
	chunkIndex := uint32(offset / chunkSize)
	contentOffset := offset % chunkSize

	var vecs []BlobIoVec

	if contentOffset != 0 {
		segLen := chunkSize - contentOffset
		if segLen > remaining {
			segLen = remaining
		}
		vecs = append(vecs, BlobIoVec{
			ContentOffset: contentOffset,
			Size:          segLen,
			Descs: []BlobIoDesc{{
				ChunkIndex: chunkIndex,
				Offset:     uint32(contentOffset),
				Size:       uint32(segLen),
				UserIO:     userIO,
			}},
		})
		remaining -= segLen
		chunkIndex++
	}

	if remaining == 0 {
		return vecs, nil
	}

	merged := BlobIoVec{ContentOffset: 0}
	for remaining > 0 {
		segLen := chunkSize
		if segLen > remaining {
			segLen = remaining
		}
		merged.Descs = append(merged.Descs, BlobIoDesc{
			ChunkIndex: chunkIndex,
			Offset:     0,
			Size:       uint32(segLen),
			UserIO:     userIO,
		})
		merged.Size += segLen
		remaining -= segLen
		chunkIndex++
	}
	vecs = append(vecs, merged)
	return vecs, nil
}
